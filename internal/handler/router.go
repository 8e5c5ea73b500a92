package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mkelleher/territory-console-go/internal/domain"
	"github.com/mkelleher/territory-console-go/internal/infra/observability"
	"github.com/mkelleher/territory-console-go/internal/port"
	"github.com/mkelleher/territory-console-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// Routes follow the API contract defined for the territory console frontend.
func NewRouter(
	customerSvc *service.CustomerService,
	dashSvc *service.DashboardService,
	boundarySvc *service.BoundaryService,
	pipeline *service.MarkerPipeline,
	health port.HealthChecker,
	metrics *observability.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(health, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// Customers
		// =============================================
		r.Get("/customers", listCustomersHandler(customerSvc, logger))
		r.Get("/customers/{customerId}", getCustomerHandler(customerSvc, logger))
		r.Patch("/customers/{customerId}/status", updateStatusHandler(customerSvc, logger))

		// Address invalidation after an edit: the next marker run re-geocodes.
		r.Delete("/addresses/{addressId}/location", invalidateAddressHandler(customerSvc, logger))

		// =============================================
		// Dashboard
		// =============================================
		r.Get("/dashboard/territories", territoryRollupsHandler(dashSvc, logger))
		r.Get("/dashboard/accounts", accountRollupsHandler(dashSvc, logger))
		r.Get("/dashboard/stats", accountStatsHandler(dashSvc, logger))

		// =============================================
		// Notes & Images
		// =============================================
		r.Get("/notes/recent", recentNotesHandler(dashSvc, logger))
		r.Post("/notes", createNoteHandler(dashSvc, logger))
		r.Get("/images/recent", recentImagesHandler(dashSvc, logger))

		// =============================================
		// Map: boundaries, markers, legend
		// =============================================
		r.Get("/territories/boundaries", boundariesHandler(boundarySvc, logger))
		r.Post("/map/markers", runMarkersHandler(pipeline, logger))
		r.Get("/map/markers/progress", markerProgressHandler(pipeline))
		r.Get("/map/legend", legendHandler())

		// =============================================
		// Metrics
		// =============================================
		r.Get("/metrics/pipeline", pipelineMetricsHandler(metrics))
	})

	return r
}

// ============================================================
// Customers
// ============================================================

func listCustomersHandler(svc *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/customers")
		defer span.End()

		list, err := svc.List(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func getCustomerHandler(svc *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/customers/{customerId}")
		defer span.End()

		customerID := chi.URLParam(r, "customerId")
		if customerID == "" {
			writeError(w, http.StatusBadRequest, "customer_id is required")
			return
		}
		span.SetAttributes(attribute.String("customer.id", customerID))

		customer, err := svc.Get(ctx, customerID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, customer)
	}
}

func updateStatusHandler(svc *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/customers/{customerId}/status")
		defer span.End()

		customerID := chi.URLParam(r, "customerId")
		if customerID == "" {
			writeError(w, http.StatusBadRequest, "customer_id is required")
			return
		}
		span.SetAttributes(attribute.String("customer.id", customerID))

		var upd domain.StatusUpdate
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		customer, err := svc.UpdateStatus(ctx, customerID, &upd)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, customer)
	}
}

func invalidateAddressHandler(svc *service.CustomerService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/addresses/{addressId}/location")
		defer span.End()

		addressID := chi.URLParam(r, "addressId")
		if err := svc.InvalidateAddress(ctx, addressID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ============================================================
// Dashboard
// ============================================================

func territoryRollupsHandler(svc *service.DashboardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard/territories")
		defer span.End()

		rollups, err := svc.TerritoryRollups(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		current, prior := svc.ReportYears()
		writeJSON(w, http.StatusOK, map[string]any{
			"current_year": current,
			"prior_year":   prior,
			"territories":  rollups,
		})
	}
}

func accountRollupsHandler(svc *service.DashboardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard/accounts")
		defer span.End()

		q := r.URL.Query()
		rollups, err := svc.AccountRollups(ctx, q.Get("territory"), q.Get("classification"), q.Get("search"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		current, prior := svc.ReportYears()
		writeJSON(w, http.StatusOK, map[string]any{
			"current_year": current,
			"prior_year":   prior,
			"accounts":     rollups,
		})
	}
}

func accountStatsHandler(svc *service.DashboardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/dashboard/stats")
		defer span.End()

		stats, err := svc.Stats(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// ============================================================
// Notes & Images
// ============================================================

func recentNotesHandler(svc *service.DashboardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/notes/recent")
		defer span.End()

		notes, err := svc.RecentNotes(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if notes == nil {
			notes = []domain.CustomerNote{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
	}
}

func createNoteHandler(svc *service.DashboardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/notes")
		defer span.End()

		var req struct {
			CustomerID string `json:"customer_id"`
			Content    string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		note, err := svc.AddNote(ctx, req.CustomerID, req.Content)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, note)
	}
}

func recentImagesHandler(svc *service.DashboardService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/images/recent")
		defer span.End()

		images, err := svc.RecentImages(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if images == nil {
			images = []domain.CustomerImage{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"images": images})
	}
}

// ============================================================
// Map
// ============================================================

func boundariesHandler(svc *service.BoundaryService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/territories/boundaries")
		defer span.End()

		set, err := svc.Boundaries(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, set)
	}
}

func runMarkersHandler(pipeline *service.MarkerPipeline, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/map/markers")
		defer span.End()

		var filter domain.MarkerFilter
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&filter); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}

		run, err := pipeline.Run(ctx, filter, nil)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, run)
	}
}

func markerProgressHandler(pipeline *service.MarkerPipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, pipeline.Progress())
	}
}

func legendHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := make([]domain.LegendEntry, 0, len(domain.Classifications)+1)
		for _, c := range domain.Classifications {
			entries = append(entries, domain.LegendEntry{
				Classification: c,
				Color:          domain.ClassificationColors[c],
			})
		}
		entries = append(entries, domain.LegendEntry{
			Classification: "unclassified",
			Color:          domain.DefaultMarkerColor,
		})
		writeJSON(w, http.StatusOK, map[string]any{"legend": entries})
	}
}

// ============================================================
// Metrics & Health
// ============================================================

func pipelineMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetPipelineSnapshot())
	}
}

func healthzHandler(health port.HealthChecker, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "console-api", Status: "healthy", LatencyMs: 0, LastChecked: now},
		}

		if health != nil {
			start := time.Now()
			err := health.Ping(ctx)
			latency := time.Since(start).Milliseconds()
			status := "healthy"
			if err != nil {
				status = "degraded"
				logger.Warn("store health check failed", zap.Error(err))
			}
			services = append(services, domain.ServiceHealth{
				Name: "supabase", Status: status, LatencyMs: latency, LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
