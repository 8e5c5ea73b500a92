package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mkelleher/territory-console-go/internal/domain"
	"github.com/mkelleher/territory-console-go/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
)

type noteRow struct {
	NoteID    string    `json:"note_id"`
	Content   string    `json:"content"`
	Hidden    bool      `json:"hidden"`
	CreatedAt time.Time `json:"created_at"`
	Customer  *struct {
		CustomerName  string `json:"customer_name"`
		AccountNumber string `json:"account_number"`
	} `json:"customers"`
}

func (r noteRow) toDomain() domain.CustomerNote {
	n := domain.CustomerNote{
		NoteID:    r.NoteID,
		Content:   r.Content,
		Hidden:    r.Hidden,
		CreatedAt: r.CreatedAt,
	}
	if r.Customer != nil {
		n.Customer = domain.CustomerRef{
			CustomerName:  r.Customer.CustomerName,
			AccountNumber: r.Customer.AccountNumber,
		}
	}
	return n
}

// ListRecentNotes returns the newest visible notes with the owning
// customer's name and account number.
func (c *Client) ListRecentNotes(ctx context.Context, limit int) ([]domain.CustomerNote, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListRecentNotes")
	defer span.End()

	var notes []domain.CustomerNote

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf(
				"customer_notes?select=note_id,content,hidden,created_at,customers(customer_name,account_number)&hidden=eq.false&order=created_at.desc&limit=%d",
				limit,
			)
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				notes = []domain.CustomerNote{}
				return nil
			}

			var rows []noteRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode notes: %w", err)
			}

			notes = make([]domain.CustomerNote, 0, len(rows))
			for _, r := range rows {
				notes = append(notes, r.toDomain())
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/notes", Err: err}
	}

	return notes, nil
}

// CreateNote inserts a note for a customer. The note id is generated by
// the caller so the operation is idempotent on retry.
func (c *Client) CreateNote(ctx context.Context, note *domain.CustomerNote, customerID string) (*domain.CustomerNote, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateNote")
	defer span.End()
	span.SetAttributes(attribute.String("customer.id", customerID))

	var created domain.CustomerNote

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			data := map[string]any{
				"note_id":     note.NoteID,
				"customer_id": customerID,
				"content":     note.Content,
				"hidden":      note.Hidden,
			}
			body, err := c.doUpsert(ctx, "customer_notes?on_conflict=note_id", data)
			if err != nil {
				return err
			}

			var rows []noteRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode created note: %w", err)
			}
			if len(rows) == 0 {
				return fmt.Errorf("note insert returned no rows")
			}
			created = rows[0].toDomain()
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/notes", Err: err}
	}

	return &created, nil
}

type imageRow struct {
	ImageID     string    `json:"image_id"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	Customer    *struct {
		CustomerName  string `json:"customer_name"`
		AccountNumber string `json:"account_number"`
	} `json:"customers"`
}

// ListRecentImages returns the newest stored customer images. The image
// binaries live in the hosted blob store; rows carry only the public URL.
func (c *Client) ListRecentImages(ctx context.Context, limit int) ([]domain.CustomerImage, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListRecentImages")
	defer span.End()

	var images []domain.CustomerImage

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			path := fmt.Sprintf(
				"customer_images?select=image_id,url,description,created_at,customers(customer_name,account_number)&order=created_at.desc&limit=%d",
				limit,
			)
			body, err := c.doRequest(ctx, http.MethodGet, path)
			if err != nil {
				return err
			}

			if body == nil || string(body) == "[]" {
				images = []domain.CustomerImage{}
				return nil
			}

			var rows []imageRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("failed to decode images: %w", err)
			}

			images = make([]domain.CustomerImage, 0, len(rows))
			for _, r := range rows {
				img := domain.CustomerImage{
					ImageID:     r.ImageID,
					URL:         r.URL,
					Description: r.Description,
					CreatedAt:   r.CreatedAt,
				}
				if r.Customer != nil {
					img.Customer = domain.CustomerRef{
						CustomerName:  r.Customer.CustomerName,
						AccountNumber: r.Customer.AccountNumber,
					}
				}
				images = append(images, img)
			}
			return nil
		})
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/images", Err: err}
	}

	return images, nil
}
