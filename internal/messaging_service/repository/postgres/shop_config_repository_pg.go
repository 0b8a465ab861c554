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

type PgShopConfigRepository struct {
	db     PgxIface
	logger *slog.Logger
}

// NewPgShopConfigRepository creates the PostgreSQL implementation of
// ShopConfigRepository. It assembles the ShopPolicy snapshot from the shop
// row plus its status, case-type and notification configuration tables.
func NewPgShopConfigRepository(db PgxIface, logger *slog.Logger) repository.ShopConfigRepository {
	return &PgShopConfigRepository{db: db, logger: logger.With("component", "shop_config_repository_pg")}
}

func (r *PgShopConfigRepository) GetShopPolicy(ctx context.Context, shopID uuid.UUID) (*domain.ShopPolicy, error) {
	policy := &domain.ShopPolicy{
		ShopID:           shopID,
		TerminalStatuses: make(map[string]struct{}),
		CaseTypePolicies: make(map[string]domain.CaseTypePolicy),
		Preferences:      make(map[domain.NotificationKind]domain.NotificationPreference),
	}

	var reviewLink, trackingBaseURL, shopPhone sql.NullString
	err := r.db.QueryRow(ctx,
		`SELECT name, phone, review_link, tracking_base_url FROM shops WHERE id = $1`,
		shopID,
	).Scan(&policy.ShopName, &shopPhone, &reviewLink, &trackingBaseURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error loading shop row", "error", err, "shop_id", shopID)
		return nil, err
	}
	policy.ShopPhone = shopPhone.String
	policy.ReviewLink = reviewLink.String
	policy.TrackingBaseURL = trackingBaseURL.String

	if err := r.loadTerminalStatuses(ctx, shopID, policy); err != nil {
		return nil, err
	}
	if err := r.loadCaseTypePolicies(ctx, shopID, policy); err != nil {
		return nil, err
	}
	if err := r.loadPreferences(ctx, shopID, policy); err != nil {
		return nil, err
	}

	return policy, nil
}

func (r *PgShopConfigRepository) loadTerminalStatuses(ctx context.Context, shopID uuid.UUID, policy *domain.ShopPolicy) error {
	rows, err := r.db.Query(ctx,
		`SELECT status_key FROM shop_case_statuses WHERE shop_id = $1 AND is_terminal = TRUE`,
		shopID,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error loading terminal statuses", "error", err, "shop_id", shopID)
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return err
		}
		policy.TerminalStatuses[key] = struct{}{}
	}
	return rows.Err()
}

func (r *PgShopConfigRepository) loadCaseTypePolicies(ctx context.Context, shopID uuid.UUID, policy *domain.ShopPolicy) error {
	rows, err := r.db.Query(ctx,
		`SELECT type_key, pause_timer, max_processing_days FROM shop_case_types WHERE shop_id = $1`,
		shopID,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error loading case type policies", "error", err, "shop_id", shopID)
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var p domain.CaseTypePolicy
		if err := rows.Scan(&key, &p.PauseTimer, &p.MaxProcessingDays); err != nil {
			return err
		}
		policy.CaseTypePolicies[key] = p
	}
	return rows.Err()
}

func (r *PgShopConfigRepository) loadPreferences(ctx context.Context, shopID uuid.UUID, policy *domain.ShopPolicy) error {
	rows, err := r.db.Query(ctx,
		`SELECT kind, in_app_enabled, sms_enabled, sms_message_template FROM shop_notification_preferences WHERE shop_id = $1`,
		shopID,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error loading notification preferences", "error", err, "shop_id", shopID)
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var pref domain.NotificationPreference
		var tpl sql.NullString
		if err := rows.Scan(&kind, &pref.InAppEnabled, &pref.SMSEnabled, &tpl); err != nil {
			return err
		}
		pref.SMSTemplate = tpl.String
		policy.Preferences[domain.NotificationKind(kind)] = pref
	}
	return rows.Err()
}
