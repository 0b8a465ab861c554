package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/savpilot/messaging-service/internal/messaging_service/domain"
	"github.com/savpilot/messaging-service/internal/messaging_service/repository"
)

type PgCaseRepository struct {
	db     PgxIface
	logger *slog.Logger
}

// NewPgCaseRepository creates a read-only PostgreSQL view over SAV cases.
// The sav_cases table is owned by the case-management service.
func NewPgCaseRepository(db PgxIface, logger *slog.Logger) repository.CaseRepository {
	return &PgCaseRepository{db: db, logger: logger.With("component", "case_repository_pg")}
}

const caseColumns = `id, shop_id, case_number, status, case_type, client_name, client_phone, tracking_token`

func (r *PgCaseRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM sav_cases WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PgCaseRepository) GetByTrackingToken(ctx context.Context, token string) (*domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM sav_cases WHERE tracking_token = $1`
	return r.getOne(ctx, query, token)
}

func (r *PgCaseRepository) getOne(ctx context.Context, query string, arg any) (*domain.Case, error) {
	var c domain.Case
	var clientName, clientPhone, trackingToken sql.NullString

	err := r.db.QueryRow(ctx, query, arg).Scan(
		&c.ID,
		&c.ShopID,
		&c.CaseNumber,
		&c.Status,
		&c.CaseType,
		&clientName,
		&clientPhone,
		&trackingToken,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting SAV case", "error", err)
		return nil, err
	}

	c.ClientName = clientName.String
	c.ClientPhone = clientPhone.String
	c.TrackingToken = trackingToken.String
	return &c, nil
}
