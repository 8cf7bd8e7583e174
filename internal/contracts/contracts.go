// ABOUTME: Contract lifecycle operations over the backend row API
// ABOUTME: Create, client/advisor listings, and approve/reject/cancel transitions

package contracts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/movilplan/movilchat/internal/backend"
)

const table = "contrataciones"

// Contract statuses as stored in the estado column.
const (
	StatusPending   = "pendiente"
	StatusApproved  = "aprobada"
	StatusRejected  = "rechazada"
	StatusCancelled = "cancelada"
)

// Service errors
var (
	ErrContractNotFound = errors.New("contract not found")
	ErrNotPending       = errors.New("contract is not pending")
)

// PlanSummary is the joined subset of the plan row carried on listings.
type PlanSummary struct {
	ID              string  `json:"id"`
	NombreComercial string  `json:"nombre_comercial"`
	Precio          float64 `json:"precio"`
	DatosMoviles    string  `json:"datos_moviles"`
	MinutosVoz      string  `json:"minutos_voz"`
}

// Contract is a row of the contrataciones table.
type Contract struct {
	ID                string       `json:"id"`
	UsuarioID         string       `json:"usuario_id"`
	PlanID            string       `json:"plan_id"`
	Estado            string       `json:"estado"`
	FechaContratacion time.Time    `json:"fecha_contratacion"`
	FechaAprobacion   *time.Time   `json:"fecha_aprobacion,omitempty"`
	AprobadoPor       string       `json:"aprobado_por,omitempty"`
	Plan              *PlanSummary `json:"plan,omitempty"`
}

const listColumns = "id,usuario_id,plan_id,estado,fecha_contratacion,fecha_aprobacion,aprobado_por," +
	"plan:plan_id(id,nombre_comercial,precio,datos_moviles,minutos_voz)"

// Service exposes contract operations.
type Service struct {
	client *backend.Client
	logger *slog.Logger
}

// NewService creates a contract service over the given backend client.
func NewService(client *backend.Client) *Service {
	return &Service{
		client: client,
		logger: slog.Default().With("component", "contracts"),
	}
}

// Create requests a plan for the given user. New contracts always start
// pending; an advisor moves them on from there.
func (s *Service) Create(ctx context.Context, userID, planID string) (*Contract, error) {
	row := map[string]any{
		"usuario_id": userID,
		"plan_id":    planID,
		"estado":     StatusPending,
	}

	var created []Contract
	if err := s.client.Insert(ctx, table, []map[string]any{row}, &created); err != nil {
		return nil, fmt.Errorf("creating contract: %w", err)
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("creating contract: backend returned no row")
	}

	s.logger.Info("contract requested", "contract_id", created[0].ID, "plan_id", planID)
	return &created[0], nil
}

// ListMine returns the user's own contracts with plan details, newest
// first.
func (s *Service) ListMine(ctx context.Context, userID string) ([]Contract, error) {
	q := backend.Query{
		Columns:    listColumns,
		Filters:    []backend.Filter{backend.Eq("usuario_id", userID)},
		OrderBy:    "fecha_contratacion",
		Descending: true,
	}

	var contracts []Contract
	if err := s.client.Select(ctx, table, q, &contracts); err != nil {
		return nil, fmt.Errorf("listing contracts: %w", err)
	}
	return contracts, nil
}

// ListAll returns every contract with plan details, newest first.
// Advisor-side: the backend's row policies decide what the caller may
// actually see.
func (s *Service) ListAll(ctx context.Context) ([]Contract, error) {
	q := backend.Query{
		Columns:    listColumns,
		OrderBy:    "fecha_contratacion",
		Descending: true,
	}

	var contracts []Contract
	if err := s.client.Select(ctx, table, q, &contracts); err != nil {
		return nil, fmt.Errorf("listing contracts: %w", err)
	}
	return contracts, nil
}

// ListPending returns contracts still awaiting an advisor decision,
// oldest first so the queue drains in order.
func (s *Service) ListPending(ctx context.Context) ([]Contract, error) {
	q := backend.Query{
		Columns: listColumns,
		Filters: []backend.Filter{backend.Eq("estado", StatusPending)},
		OrderBy: "fecha_contratacion",
	}

	var contracts []Contract
	if err := s.client.Select(ctx, table, q, &contracts); err != nil {
		return nil, fmt.Errorf("listing pending contracts: %w", err)
	}
	return contracts, nil
}

// Approve marks a pending contract approved, recording the deciding
// advisor and the decision time.
func (s *Service) Approve(ctx context.Context, contractID, advisorID string) (*Contract, error) {
	return s.decide(ctx, contractID, advisorID, StatusApproved)
}

// Reject marks a pending contract rejected, recording the deciding
// advisor and the decision time.
func (s *Service) Reject(ctx context.Context, contractID, advisorID string) (*Contract, error) {
	return s.decide(ctx, contractID, advisorID, StatusRejected)
}

func (s *Service) decide(ctx context.Context, contractID, advisorID, status string) (*Contract, error) {
	patch := map[string]any{
		"estado":           status,
		"fecha_aprobacion": time.Now().UTC().Format(time.RFC3339),
		"aprobado_por":     advisorID,
	}
	filters := []backend.Filter{
		backend.Eq("id", contractID),
		backend.Eq("estado", StatusPending),
	}

	var updated []Contract
	if err := s.client.Update(ctx, table, patch, filters, &updated); err != nil {
		return nil, fmt.Errorf("updating contract %s: %w", contractID, err)
	}
	if len(updated) == 0 {
		// Either the id is unknown or someone decided first.
		return nil, ErrNotPending
	}

	s.logger.Info("contract decided", "contract_id", contractID, "estado", status, "advisor_id", advisorID)
	return &updated[0], nil
}

// Cancel lets a client withdraw their own pending request. The owner
// filter keeps users from cancelling contracts that are not theirs.
func (s *Service) Cancel(ctx context.Context, contractID, userID string) (*Contract, error) {
	patch := map[string]any{"estado": StatusCancelled}
	filters := []backend.Filter{
		backend.Eq("id", contractID),
		backend.Eq("usuario_id", userID),
		backend.Eq("estado", StatusPending),
	}

	var updated []Contract
	if err := s.client.Update(ctx, table, patch, filters, &updated); err != nil {
		return nil, fmt.Errorf("cancelling contract %s: %w", contractID, err)
	}
	if len(updated) == 0 {
		return nil, ErrNotPending
	}

	s.logger.Info("contract cancelled", "contract_id", contractID)
	return &updated[0], nil
}

// Get returns a single contract with plan details.
func (s *Service) Get(ctx context.Context, contractID string) (*Contract, error) {
	q := backend.Query{
		Columns: listColumns,
		Filters: []backend.Filter{backend.Eq("id", contractID)},
		Limit:   1,
	}

	var contracts []Contract
	if err := s.client.Select(ctx, table, q, &contracts); err != nil {
		return nil, fmt.Errorf("fetching contract %s: %w", contractID, err)
	}
	if len(contracts) == 0 {
		return nil, ErrContractNotFound
	}
	return &contracts[0], nil
}
