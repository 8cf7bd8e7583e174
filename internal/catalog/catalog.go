// ABOUTME: Plan catalog operations over the backend row API
// ABOUTME: Listing, lookup, and advisor-side create/update/deactivate/delete

package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/movilplan/movilchat/internal/backend"
)

const table = "planes_moviles"

// ErrPlanNotFound is returned when a plan id resolves to no row.
var ErrPlanNotFound = errors.New("plan not found")

// Plan is a row of the planes_moviles table.
type Plan struct {
	ID              string  `json:"id,omitempty"`
	NombreComercial string  `json:"nombre_comercial"`
	Descripcion     string  `json:"descripcion"`
	Precio          float64 `json:"precio"`
	DatosMoviles    string  `json:"datos_moviles"`
	MinutosVoz      string  `json:"minutos_voz"`
	Segmento        string  `json:"segmento,omitempty"`
	PublicoObjetivo string  `json:"publico_objetivo,omitempty"`
	SMS             string  `json:"sms,omitempty"`
	Velocidad4G     string  `json:"velocidad_4g,omitempty"`
	Velocidad5G     string  `json:"velocidad_5g,omitempty"`
	RedesSociales   string  `json:"redes_sociales,omitempty"`
	Whatsapp        string  `json:"whatsapp,omitempty"`
	Roaming         string  `json:"roaming,omitempty"`
	Activo          bool    `json:"activo"`
	ImagenURL       string  `json:"imagen_url,omitempty"`
	CreatedAt       string  `json:"created_at,omitempty"`
	UpdatedAt       string  `json:"updated_at,omitempty"`
	CreatedBy       string  `json:"created_by,omitempty"`
}

// Service exposes plan catalog operations.
type Service struct {
	client *backend.Client
	logger *slog.Logger
}

// NewService creates a catalog service over the given backend client.
func NewService(client *backend.Client) *Service {
	return &Service{
		client: client,
		logger: slog.Default().With("component", "catalog"),
	}
}

// List returns plans ordered by price ascending. When activeOnly is
// set, deactivated plans are excluded; the client-facing catalog always
// passes true, advisor tooling passes false to see everything.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]Plan, error) {
	q := backend.Query{OrderBy: "precio"}
	if activeOnly {
		q.Filters = []backend.Filter{backend.Eq("activo", "true")}
	}

	var plans []Plan
	if err := s.client.Select(ctx, table, q, &plans); err != nil {
		return nil, fmt.Errorf("listing plans: %w", err)
	}
	return plans, nil
}

// Get returns a single plan by id, or ErrPlanNotFound.
func (s *Service) Get(ctx context.Context, id string) (*Plan, error) {
	var plans []Plan
	q := backend.Query{Filters: []backend.Filter{backend.Eq("id", id)}, Limit: 1}
	if err := s.client.Select(ctx, table, q, &plans); err != nil {
		return nil, fmt.Errorf("fetching plan %s: %w", id, err)
	}
	if len(plans) == 0 {
		return nil, ErrPlanNotFound
	}
	return &plans[0], nil
}

// Create inserts a new plan. New plans are always created active; the
// backend assigns id and timestamps.
func (s *Service) Create(ctx context.Context, plan Plan) (*Plan, error) {
	plan.ID = ""
	plan.CreatedAt = ""
	plan.UpdatedAt = ""
	plan.Activo = true

	var created []Plan
	if err := s.client.Insert(ctx, table, plan, &created); err != nil {
		return nil, fmt.Errorf("creating plan: %w", err)
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("creating plan: backend returned no row")
	}

	s.logger.Info("plan created", "plan_id", created[0].ID, "name", created[0].NombreComercial)
	return &created[0], nil
}

// Update patches the given columns on a plan and stamps updated_at.
// Returns the updated row, or ErrPlanNotFound when the id matches
// nothing.
func (s *Service) Update(ctx context.Context, id string, updates map[string]any) (*Plan, error) {
	patch := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		patch[k] = v
	}
	patch["updated_at"] = time.Now().UTC().Format(time.RFC3339)

	var updated []Plan
	filters := []backend.Filter{backend.Eq("id", id)}
	if err := s.client.Update(ctx, table, patch, filters, &updated); err != nil {
		return nil, fmt.Errorf("updating plan %s: %w", id, err)
	}
	if len(updated) == 0 {
		return nil, ErrPlanNotFound
	}

	s.logger.Info("plan updated", "plan_id", id)
	return &updated[0], nil
}

// SetImage records the public URL of an uploaded plan image.
func (s *Service) SetImage(ctx context.Context, id, imageURL string) (*Plan, error) {
	return s.Update(ctx, id, map[string]any{"imagen_url": imageURL})
}

// Deactivate hides a plan from the client-facing catalog without
// deleting it. Existing contracts keep their join.
func (s *Service) Deactivate(ctx context.Context, id string) (*Plan, error) {
	return s.Update(ctx, id, map[string]any{"activo": false})
}

// Delete removes a plan outright.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, table, backend.Eq("id", id)); err != nil {
		return fmt.Errorf("deleting plan %s: %w", id, err)
	}
	s.logger.Info("plan deleted", "plan_id", id)
	return nil
}
