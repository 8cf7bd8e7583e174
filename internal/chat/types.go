// ABOUTME: Data types for the chat core: contracts, messages, and the derived conversation view
// ABOUTME: JSON tags follow the backend's Spanish column names

package chat

import (
	"fmt"
	"time"
)

// Contract statuses as stored in the backend.
const (
	StatusPending   = "pendiente"
	StatusApproved  = "aprobada"
	StatusRejected  = "rechazada"
	StatusCancelled = "cancelada"
)

// Plan is the contracted plan's commercial summary, embedded in contract
// queries.
type Plan struct {
	NombreComercial string  `json:"nombre_comercial"`
	Precio          float64 `json:"precio"`
}

// Contract anchors a conversation: a commercial relationship between a
// client and the advisor who approved it. AprobadoPor stays empty until
// a request has been approved.
type Contract struct {
	ID                string    `json:"id"`
	Estado            string    `json:"estado"`
	FechaContratacion time.Time `json:"fecha_contratacion"`
	UsuarioID         string    `json:"usuario_id"`
	AprobadoPor       string    `json:"aprobado_por"`
	Plan              *Plan     `json:"plan"`
}

// Message is one chat message within a contract. Messages are created by
// either participant and mutated only to flip the read flag.
type Message struct {
	ID             string    `json:"id"`
	ContratacionID string    `json:"contratacion_id"`
	UsuarioID      string    `json:"usuario_id"`
	Mensaje        string    `json:"mensaje"`
	Leido          bool      `json:"leido"`
	CreatedAt      time.Time `json:"created_at"`
}

// Profile is the read-only projection used to label a participant.
type Profile struct {
	ID    string
	Name  string
	Email string
}

// Viewer is the signed-in user as the chat layer sees them.
type Viewer struct {
	ID      string
	Name    string
	Email   string
	Advisor bool
}

// LastMessage summarizes the newest message of a conversation.
type LastMessage struct {
	Text   string
	SentAt time.Time
	IsMine bool
}

// Party describes the other participant of a conversation.
type Party struct {
	ID    string
	Name  string
	Email string
}

// Conversation is the derived, in-memory view of one contract's chat.
// It has no identity of its own and is rebuilt whenever its inputs change.
type Conversation struct {
	ID           string
	PlanName     string
	LastMessage  *LastMessage
	UnreadCount  int
	OtherParty   Party
	Status       string
	LastActivity time.Time
}

// SendError reports a failed message send. The controller has already
// restored the draft when one surfaces; the user retries manually.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("sending message: %v", e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}
