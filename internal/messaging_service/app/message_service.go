package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/savpilot/messaging-service/internal/messaging_service/domain"
	"github.com/savpilot/messaging-service/internal/messaging_service/repository"
	"github.com/savpilot/messaging-service/internal/platform/messagebroker"
)

// SubjectCaseAppended is the NATS subject carrying append notifications.
// UI layers subscribe to it to refresh open conversations.
const SubjectCaseAppended = "messaging.case.appended"

// CaseAppendedEvent is the payload published on SubjectCaseAppended.
type CaseAppendedEvent struct {
	CaseID     uuid.UUID    `json:"case_id"`
	MessageID  uuid.UUID    `json:"message_id"`
	SenderType domain.Party `json:"sender_type"`
	CreatedAt  time.Time    `json:"created_at"`
}

// SendMessageParams carries one append request.
type SendMessageParams struct {
	CaseID     uuid.UUID
	Party      domain.Party
	SenderName string
	Body       string
	Files      []FileUpload
}

// MessageService orchestrates the case conversation: appends, listing,
// read-state flips and retractions.
type MessageService struct {
	messageRepo    repository.MessageRepository
	caseRepo       repository.CaseRepository
	shopConfigRepo repository.ShopConfigRepository
	attachments    *AttachmentService
	events         messagebroker.Publisher // nil disables append events
	tracker        *ReadTracker
	logger         *slog.Logger
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	caseRepo repository.CaseRepository,
	shopConfigRepo repository.ShopConfigRepository,
	attachments *AttachmentService,
	events messagebroker.Publisher,
	tracker *ReadTracker,
	logger *slog.Logger,
) *MessageService {
	return &MessageService{
		messageRepo:    messageRepo,
		caseRepo:       caseRepo,
		shopConfigRepo: shopConfigRepo,
		attachments:    attachments,
		events:         events,
		tracker:        tracker,
		logger:         logger.With("service", "message"),
	}
}

// SendMessage appends a message to a case conversation. The case-lifecycle
// gate is enforced here on every append, regardless of what the UI rendered.
func (s *MessageService) SendMessage(ctx context.Context, p SendMessageParams) (*domain.Message, error) {
	savCase, err := s.caseRepo.GetByID(ctx, p.CaseID)
	if err != nil {
		return nil, err
	}

	policy, err := s.shopConfigRepo.GetShopPolicy(ctx, savCase.ShopID)
	if err != nil {
		return nil, err
	}
	if !policy.CanAcceptNewMessage(savCase.Status) {
		s.logger.InfoContext(ctx, "Append blocked by case lifecycle gate", "case_id", p.CaseID, "status", savCase.Status)
		return nil, domain.ErrCaseClosed
	}

	if p.Body == "" && len(p.Files) == 0 {
		return nil, domain.ErrEmptyMessage
	}

	attachments, err := s.attachments.UploadBatch(ctx, p.Files)
	if err != nil {
		return nil, err
	}

	msg := domain.NewMessage(uuid.New(), p.CaseID, p.Party, p.SenderName, p.Body, attachments)
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		// The message record is the source of truth; orphaned objects are
		// cleaned up so a failed insert leaves no trace.
		s.attachments.RemoveAll(ctx, msg.StorageRefs())
		return nil, err
	}

	messagesAppendedCounter.WithLabelValues(string(p.Party), strconv.FormatBool(false)).Inc()
	s.publishAppended(ctx, msg)
	if s.tracker != nil {
		s.tracker.InvalidateCase(ctx, p.CaseID)
	}

	s.logger.InfoContext(ctx, "Message appended", "message_id", msg.ID, "case_id", p.CaseID, "sender_type", p.Party, "attachment_count", len(attachments))
	return msg, nil
}

// ListConversation returns the case transcript in chronological order.
func (s *MessageService) ListConversation(ctx context.Context, caseID uuid.UUID) ([]*domain.Message, error) {
	return s.messageRepo.ListByCase(ctx, caseID)
}

// MarkConversationRead flips party's read flag on every message of the case.
// Idempotent; called when the conversation view mounts.
func (s *MessageService) MarkConversationRead(ctx context.Context, caseID uuid.UUID, party domain.Party) error {
	if err := s.messageRepo.MarkAllRead(ctx, caseID, party); err != nil {
		return err
	}
	if s.tracker != nil {
		s.tracker.InvalidateCase(ctx, caseID)
	}
	return nil
}

// RetractMessage deletes a message if the requester is its sender and the
// retraction window is still open. The message must belong to caseID so a
// caller can never reach across conversations. The record delete is
// authoritative; attachment objects are removed best-effort afterwards.
func (s *MessageService) RetractMessage(ctx context.Context, caseID, messageID uuid.UUID, party domain.Party) error {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		messagesRetractedCounter.WithLabelValues("not_found").Inc()
		return err
	}
	if msg.CaseID != caseID {
		messagesRetractedCounter.WithLabelValues("not_found").Inc()
		return domain.ErrNotFound
	}

	if err := domain.CanRetract(msg, party, time.Now().UTC()); err != nil {
		outcome := "denied"
		if err == domain.ErrRetractionExpired {
			outcome = "expired"
		}
		messagesRetractedCounter.WithLabelValues(outcome).Inc()
		s.logger.InfoContext(ctx, "Retraction refused", "message_id", messageID, "party", party, "reason", err)
		return err
	}

	if err := s.messageRepo.Delete(ctx, messageID); err != nil {
		return err
	}
	s.attachments.RemoveAll(ctx, msg.StorageRefs())

	messagesRetractedCounter.WithLabelValues("deleted").Inc()
	if s.tracker != nil {
		s.tracker.InvalidateCase(ctx, msg.CaseID)
	}
	s.logger.InfoContext(ctx, "Message retracted", "message_id", messageID, "case_id", msg.CaseID, "party", party)
	return nil
}

// ResolveTrackingCase resolves a public tracking token to its case. Used by
// the unauthenticated tracking routes, which act as party=client.
func (s *MessageService) ResolveTrackingCase(ctx context.Context, token string) (*domain.Case, error) {
	return s.caseRepo.GetByTrackingToken(ctx, token)
}

// GetCase loads a case for handlers needing status or shop context.
func (s *MessageService) GetCase(ctx context.Context, caseID uuid.UUID) (*domain.Case, error) {
	return s.caseRepo.GetByID(ctx, caseID)
}

// GetShopPolicy loads the policy snapshot for a shop.
func (s *MessageService) GetShopPolicy(ctx context.Context, shopID uuid.UUID) (*domain.ShopPolicy, error) {
	return s.shopConfigRepo.GetShopPolicy(ctx, shopID)
}

// AttachmentPreviewURL returns a signed, time-limited URL for one attachment
// of an existing message. The message must belong to caseID, the same scoping
// rule as RetractMessage: a caller resolved for one case cannot mint URLs for
// attachments of another.
func (s *MessageService) AttachmentPreviewURL(ctx context.Context, caseID, messageID uuid.UUID, storageRef string) (string, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return "", err
	}
	if msg.CaseID != caseID {
		return "", domain.ErrNotFound
	}
	for _, a := range msg.Attachments {
		if a.StorageRef == storageRef {
			return s.attachments.PreviewURL(ctx, storageRef)
		}
	}
	return "", domain.ErrNotFound
}

func (s *MessageService) publishAppended(ctx context.Context, msg *domain.Message) {
	if s.events == nil {
		return
	}
	event := CaseAppendedEvent{
		CaseID:     msg.CaseID,
		MessageID:  msg.ID,
		SenderType: msg.SenderType,
		CreatedAt:  msg.CreatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to marshal append event", "error", err, "message_id", msg.ID)
		return
	}
	if err := s.events.Publish(ctx, SubjectCaseAppended, payload); err != nil {
		// Subscribers poll as fallback; a lost event is a delay, not data loss.
		s.logger.WarnContext(ctx, "Failed to publish append event", "error", err, "message_id", msg.ID)
	}
}
