package domain

// GeocodeStatus classifies the outcome of a single geocoding attempt.
// Retryability is decided here, never by matching message strings.
type GeocodeStatus int

const (
	// GeocodeOK means the provider returned a usable result.
	GeocodeOK GeocodeStatus = iota
	// GeocodeZeroResults means the address matched nothing.
	GeocodeZeroResults
	// GeocodeOverQueryLimit means the provider is rate limiting us.
	GeocodeOverQueryLimit
	// GeocodeRequestDenied means the key or request was rejected.
	GeocodeRequestDenied
	// GeocodeInvalidRequest means the request itself was malformed.
	GeocodeInvalidRequest
	// GeocodeNotInUS means the result resolved outside the United States.
	GeocodeNotInUS
	// GeocodeOutOfBounds means the coordinate fell outside the service area.
	GeocodeOutOfBounds
	// GeocodeInvalidCoords means the provider returned non-finite numbers.
	GeocodeInvalidCoords
	// GeocodeTimeout means the attempt exceeded its deadline.
	GeocodeTimeout
	// GeocodeNetworkError means the request failed before a provider answer.
	GeocodeNetworkError
	// GeocodeUnknown covers provider statuses we do not recognize.
	GeocodeUnknown
)

var geocodeStatusNames = map[GeocodeStatus]string{
	GeocodeOK:             "ok",
	GeocodeZeroResults:    "zero_results",
	GeocodeOverQueryLimit: "over_query_limit",
	GeocodeRequestDenied:  "request_denied",
	GeocodeInvalidRequest: "invalid_request",
	GeocodeNotInUS:        "not_in_us",
	GeocodeOutOfBounds:    "out_of_bounds",
	GeocodeInvalidCoords:  "invalid_coords",
	GeocodeTimeout:        "timeout",
	GeocodeNetworkError:   "network_error",
	GeocodeUnknown:        "unknown",
}

func (s GeocodeStatus) String() string {
	if n, ok := geocodeStatusNames[s]; ok {
		return n
	}
	return "unknown"
}

// Retryable reports whether another attempt could plausibly succeed.
// Rate limiting, timeouts and transport failures are transient; every
// other status is a property of the address or the request and will not
// change on retry.
func (s GeocodeStatus) Retryable() bool {
	switch s {
	case GeocodeOverQueryLimit, GeocodeTimeout, GeocodeNetworkError:
		return true
	}
	return false
}

// GeocodeOutcome is the classified result of one provider attempt.
// Coordinate is only meaningful when Status == GeocodeOK.
type GeocodeOutcome struct {
	Status     GeocodeStatus
	Coordinate Coordinate
}
