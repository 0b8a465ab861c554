package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/savpilot/messaging-service/internal/messaging_service/domain"
)

// MessageRepository is the storage interface for case conversation messages.
type MessageRepository interface {
	// Create inserts a new message record.
	Create(ctx context.Context, msg *domain.Message) error

	// GetByID fetches a single message. Returns domain.ErrNotFound when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)

	// ListByCase returns all messages of a case ordered by created_at
	// ascending, with a stable id tie-break for equal timestamps.
	ListByCase(ctx context.Context, caseID uuid.UUID) ([]*domain.Message, error)

	// MarkAllRead flips party's read flag to true for every message in the
	// case. Idempotent; never un-reads.
	MarkAllRead(ctx context.Context, caseID uuid.UUID, party domain.Party) error

	// Delete permanently removes a message record. Returns domain.ErrNotFound
	// when no row was deleted.
	Delete(ctx context.Context, id uuid.UUID) error

	// UnreadCounts returns, per case, how many messages authored by the
	// opposite party are still unread by party. Computed in a single batch
	// query; cases without unread messages are absent from the map.
	UnreadCounts(ctx context.Context, caseIDs []uuid.UUID, party domain.Party) (map[uuid.UUID]int, error)

	// LatestByCase returns the most recent message of a case, or
	// domain.ErrNotFound for an empty conversation.
	LatestByCase(ctx context.Context, caseID uuid.UUID) (*domain.Message, error)
}

// CaseRepository reads SAV cases owned by the external case-management
// service. This service never writes cases.
type CaseRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Case, error)
	GetByTrackingToken(ctx context.Context, token string) (*domain.Case, error)
}

// ShopConfigRepository loads the per-shop policy snapshot (terminal statuses,
// case-type policies, notification preferences, review link).
type ShopConfigRepository interface {
	GetShopPolicy(ctx context.Context, shopID uuid.UUID) (*domain.ShopPolicy, error)
}
