package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/savpilot/messaging-service/internal/messaging_service/app"
	"github.com/savpilot/messaging-service/internal/messaging_service/domain"
)

const (
	// maxMultipartMemory bounds the in-memory portion of multipart parsing.
	// Attachments themselves are capped per file by the application layer.
	maxMultipartMemory = 32 << 20
	// maxRequestBodyBytes caps a whole append request before any part is
	// read: three attachments at the per-file limit plus text and framing.
	maxRequestBodyBytes = 3*app.MaxAttachmentBytes + 1<<20
)

// MessageAppService is the conversation surface the handlers depend on.
type MessageAppService interface {
	SendMessage(ctx context.Context, p app.SendMessageParams) (*domain.Message, error)
	ListConversation(ctx context.Context, caseID uuid.UUID) ([]*domain.Message, error)
	MarkConversationRead(ctx context.Context, caseID uuid.UUID, party domain.Party) error
	RetractMessage(ctx context.Context, caseID, messageID uuid.UUID, party domain.Party) error
	ResolveTrackingCase(ctx context.Context, token string) (*domain.Case, error)
	GetCase(ctx context.Context, caseID uuid.UUID) (*domain.Case, error)
	AttachmentPreviewURL(ctx context.Context, caseID, messageID uuid.UUID, storageRef string) (string, error)
}

// ReadTrackerService answers unread badge queries.
type ReadTrackerService interface {
	UnreadCountsAcrossCases(ctx context.Context, caseIDs []uuid.UUID, party domain.Party) (map[uuid.UUID]int, error)
	AwaitingReply(ctx context.Context, caseID uuid.UUID) (bool, error)
}

// NotifierService dispatches outbound case notifications.
type NotifierService interface {
	Notify(ctx context.Context, p app.NotifyParams) (*app.DeliveryResult, error)
}

// MessageHandler serves the authenticated shop-side conversation API. Every
// route here acts as party=shop; the public client side lives on
// TrackingHandler.
type MessageHandler struct {
	service  MessageAppService
	tracker  ReadTrackerService
	notifier NotifierService
	logger   *slog.Logger
	validate *validator.Validate
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(service MessageAppService, tracker ReadTrackerService, notifier NotifierService, logger *slog.Logger, validate *validator.Validate) *MessageHandler {
	return &MessageHandler{
		service:  service,
		tracker:  tracker,
		notifier: notifier,
		logger:   logger,
		validate: validate,
	}
}

// RegisterRoutes sets up the routing for shop-side conversation operations.
func (h *MessageHandler) RegisterRoutes(r chi.Router) {
	r.Post("/cases/unread-counts", h.UnreadCounts)

	r.Route("/cases/{caseID}", func(r chi.Router) {
		r.Get("/messages", h.ListMessages)
		r.Post("/messages", h.SendMessage)
		r.Delete("/messages/{messageID}", h.RetractMessage)
		r.Get("/messages/{messageID}/attachments/{storageRef}/url", h.AttachmentURL)
		r.Post("/read", h.MarkRead)
		r.Get("/awaiting-reply", h.AwaitingReply)
		r.Post("/notifications", h.Notify)
	})
}

func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, ok := parseUUIDParam(w, r, "caseID")
	if !ok {
		return
	}

	params, ok := decodeSendRequest(w, r, h.validate)
	if !ok {
		return
	}
	params.CaseID = caseID
	params.Party = domain.PartyShop

	msg, err := h.service.SendMessage(ctx, params)
	if err != nil {
		h.logger.ErrorContext(ctx, "SendMessage failed", "error", err, "case_id", caseID)
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, messageToResponseDTO(msg))
}

// decodeSendRequest accepts either a JSON body (text only) or
// multipart/form-data carrying sender_name, body and attachment files.
func decodeSendRequest(w http.ResponseWriter, r *http.Request, validate *validator.Validate) (app.SendMessageParams, bool) {
	ctx := r.Context()
	var params app.SendMessageParams

	if r.ContentLength > maxRequestBodyBytes {
		respondWithError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return params, false
	}
	// Chunked bodies carry no Content-Length; the reader enforces the same cap.
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "multipart/") {
		var reqDTO SendMessageRequestDTO
		if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
			return params, false
		}
		defer r.Body.Close()
		if err := validate.StructCtx(ctx, reqDTO); err != nil {
			respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
			return params, false
		}
		params.SenderName = reqDTO.SenderName
		params.Body = reqDTO.Body
		return params, true
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return params, false
		}
		respondWithError(w, http.StatusBadRequest, "Invalid multipart payload: "+err.Error())
		return params, false
	}
	params.SenderName = r.FormValue("sender_name")
	params.Body = r.FormValue("body")
	if params.SenderName == "" {
		respondWithError(w, http.StatusBadRequest, "Validation failed: sender_name is required")
		return params, false
	}

	for _, fh := range r.MultipartForm.File["attachments"] {
		f, err := fh.Open()
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Failed to read attachment "+fh.Filename+": "+err.Error())
			return params, false
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Failed to read attachment "+fh.Filename+": "+err.Error())
			return params, false
		}
		params.Files = append(params.Files, app.FileUpload{
			DisplayName: fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     content,
		})
	}
	return params, true
}

func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, ok := parseUUIDParam(w, r, "caseID")
	if !ok {
		return
	}

	msgs, err := h.service.ListConversation(ctx, caseID)
	if err != nil {
		h.logger.ErrorContext(ctx, "ListConversation failed", "error", err, "case_id", caseID)
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, ConversationResponseDTO{
		Messages:   messagesToResponseDTOs(msgs),
		TotalCount: len(msgs),
	})
}

func (h *MessageHandler) RetractMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, ok := parseUUIDParam(w, r, "caseID")
	if !ok {
		return
	}
	messageID, ok := parseUUIDParam(w, r, "messageID")
	if !ok {
		return
	}

	if err := h.service.RetractMessage(ctx, caseID, messageID, domain.PartyShop); err != nil {
		h.logger.InfoContext(ctx, "RetractMessage refused", "error", err, "case_id", caseID, "message_id", messageID)
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, ok := parseUUIDParam(w, r, "caseID")
	if !ok {
		return
	}

	if err := h.service.MarkConversationRead(ctx, caseID, domain.PartyShop); err != nil {
		h.logger.ErrorContext(ctx, "MarkConversationRead failed", "error", err, "case_id", caseID)
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

func (h *MessageHandler) UnreadCounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reqDTO UnreadCountsRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()
	if err := h.validate.StructCtx(ctx, reqDTO); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	caseIDs := make([]uuid.UUID, len(reqDTO.CaseIDs))
	for i, raw := range reqDTO.CaseIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid case ID: "+raw)
			return
		}
		caseIDs[i] = id
	}

	counts, err := h.tracker.UnreadCountsAcrossCases(ctx, caseIDs, domain.PartyShop)
	if err != nil {
		h.logger.ErrorContext(ctx, "UnreadCountsAcrossCases failed", "error", err, "case_count", len(caseIDs))
		respondWithDomainError(w, err)
		return
	}

	respDTO := UnreadCountsResponseDTO{Counts: make(map[string]int, len(counts))}
	for id, count := range counts {
		respDTO.Counts[id.String()] = count
	}
	respondWithJSON(w, http.StatusOK, respDTO)
}

func (h *MessageHandler) AwaitingReply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, ok := parseUUIDParam(w, r, "caseID")
	if !ok {
		return
	}

	awaiting, err := h.tracker.AwaitingReply(ctx, caseID)
	if err != nil {
		h.logger.ErrorContext(ctx, "AwaitingReply failed", "error", err, "case_id", caseID)
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, AwaitingReplyResponseDTO{AwaitingReply: awaiting})
}

func (h *MessageHandler) Notify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, ok := parseUUIDParam(w, r, "caseID")
	if !ok {
		return
	}

	var reqDTO NotifyRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	defer r.Body.Close()
	if err := h.validate.StructCtx(ctx, reqDTO); err != nil {
		respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	result, err := h.notifier.Notify(ctx, app.NotifyParams{
		CaseID:     caseID,
		Kind:       domain.NotificationKind(reqDTO.Kind),
		CustomText: reqDTO.CustomText,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "Notify failed", "error", err, "case_id", caseID, "kind", reqDTO.Kind)
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, NotifyResponseDTO{
		Message:           messageToResponseDTO(result.Message),
		SMSSent:           result.SMSSent,
		ProviderMessageID: result.ProviderMessageID,
		DispatchError:     result.DispatchError,
	})
}

func (h *MessageHandler) AttachmentURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID, ok := parseUUIDParam(w, r, "caseID")
	if !ok {
		return
	}
	messageID, ok := parseUUIDParam(w, r, "messageID")
	if !ok {
		return
	}
	storageRef := chi.URLParam(r, "storageRef")

	url, err := h.service.AttachmentPreviewURL(ctx, caseID, messageID, storageRef)
	if err != nil {
		h.logger.ErrorContext(ctx, "AttachmentPreviewURL failed", "error", err, "case_id", caseID, "message_id", messageID)
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, AttachmentURLResponseDTO{URL: url})
}

func parseUUIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}
