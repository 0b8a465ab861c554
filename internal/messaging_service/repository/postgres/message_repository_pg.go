package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/savpilot/messaging-service/internal/messaging_service/domain"
	"github.com/savpilot/messaging-service/internal/messaging_service/repository"
)

// PgxIface is the subset of pgxpool.Pool the repositories need. It is also
// satisfied by pgxmock pools in tests.
type PgxIface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgMessageRepository struct {
	db     PgxIface
	logger *slog.Logger
}

// NewPgMessageRepository creates the PostgreSQL implementation of MessageRepository.
func NewPgMessageRepository(db PgxIface, logger *slog.Logger) repository.MessageRepository {
	return &PgMessageRepository{db: db, logger: logger.With("component", "message_repository_pg")}
}

const messageColumns = `id, case_id, sender_type, sender_name, body, attachments, is_sms_mirror, read_by_shop, read_by_client, created_at`

// readColumn maps a party to its read-flag column. Party is validated before
// being interpolated; only the two fixed column names can result.
func readColumn(party domain.Party) (string, error) {
	switch party {
	case domain.PartyShop:
		return "read_by_shop", nil
	case domain.PartyClient:
		return "read_by_client", nil
	default:
		return "", fmt.Errorf("unknown party %q", party)
	}
}

func (r *PgMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	attachmentsJSON, err := json.Marshal(msg.Attachments)
	if err != nil {
		return fmt.Errorf("failed to marshal attachments: %w", err)
	}

	query := `
		INSERT INTO case_messages (
			id, case_id, sender_type, sender_name, body, attachments,
			is_sms_mirror, read_by_shop, read_by_client, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`
	_, err = r.db.Exec(ctx, query,
		msg.ID,
		msg.CaseID,
		string(msg.SenderType),
		msg.SenderName,
		msg.Body,
		attachmentsJSON,
		msg.IsSMSMirror,
		msg.ReadByShop,
		msg.ReadByClient,
		msg.CreatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error inserting case message", "error", err, "message_id", msg.ID, "case_id", msg.CaseID)
		return err
	}

	r.logger.DebugContext(ctx, "Case message inserted", "message_id", msg.ID, "case_id", msg.CaseID, "sender_type", msg.SenderType)
	return nil
}

func (r *PgMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM case_messages WHERE id = $1`

	msg, err := scanMessageRow(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting case message by ID", "error", err, "message_id", id)
		return nil, err
	}
	return msg, nil
}

func (r *PgMessageRepository) ListByCase(ctx context.Context, caseID uuid.UUID) ([]*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM case_messages WHERE case_id = $1 ORDER BY created_at ASC, id ASC`

	rows, err := r.db.Query(ctx, query, caseID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing case messages", "error", err, "case_id", caseID)
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		msg, err := scanMessageRow(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PgMessageRepository) MarkAllRead(ctx context.Context, caseID uuid.UUID, party domain.Party) error {
	col, err := readColumn(party)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE case_messages SET %s = TRUE WHERE case_id = $1 AND %s = FALSE`, col, col)
	tag, err := r.db.Exec(ctx, query, caseID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error marking case messages read", "error", err, "case_id", caseID, "party", party)
		return err
	}

	r.logger.DebugContext(ctx, "Marked case messages read", "case_id", caseID, "party", party, "rows_affected", tag.RowsAffected())
	return nil
}

func (r *PgMessageRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM case_messages WHERE id = $1`, id)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error deleting case message", "error", err, "message_id", id)
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgMessageRepository) UnreadCounts(ctx context.Context, caseIDs []uuid.UUID, party domain.Party) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(caseIDs))
	if len(caseIDs) == 0 {
		return counts, nil
	}

	col, err := readColumn(party)
	if err != nil {
		return nil, err
	}

	// One batch query for the whole case list; the badge rendering path must
	// not issue a query per case.
	query := fmt.Sprintf(`
		SELECT case_id, COUNT(*)
		FROM case_messages
		WHERE case_id = ANY($1) AND sender_type = $2 AND %s = FALSE
		GROUP BY case_id
	`, col)

	rows, err := r.db.Query(ctx, query, caseIDs, string(party.Opposite()))
	if err != nil {
		r.logger.ErrorContext(ctx, "Error counting unread messages", "error", err, "party", party, "case_count", len(caseIDs))
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var caseID uuid.UUID
		var count int
		if err := rows.Scan(&caseID, &count); err != nil {
			return nil, err
		}
		counts[caseID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *PgMessageRepository) LatestByCase(ctx context.Context, caseID uuid.UUID) (*domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM case_messages WHERE case_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`

	msg, err := scanMessageRow(r.db.QueryRow(ctx, query, caseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting latest case message", "error", err, "case_id", caseID)
		return nil, err
	}
	return msg, nil
}

// scanMessageRow scans one message from a row following messageColumns order.
func scanMessageRow(row pgx.Row) (*domain.Message, error) {
	var msg domain.Message
	var senderType string
	var attachmentsJSON []byte

	err := row.Scan(
		&msg.ID,
		&msg.CaseID,
		&senderType,
		&msg.SenderName,
		&msg.Body,
		&attachmentsJSON,
		&msg.IsSMSMirror,
		&msg.ReadByShop,
		&msg.ReadByClient,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	msg.SenderType = domain.Party(senderType)
	if len(attachmentsJSON) > 0 {
		if err := json.Unmarshal(attachmentsJSON, &msg.Attachments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attachments for message %s: %w", msg.ID, err)
		}
	}
	return &msg, nil
}
