package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/savpilot/messaging-service/internal/messaging_service/adapters/objectstorage"
	"github.com/savpilot/messaging-service/internal/messaging_service/domain"
)

// TrackingHandler serves the public, unauthenticated client surface. Access
// is keyed by the case's tracking slug; every route acts as party=client on
// the resolved case only. It also serves attachment bytes for signed URLs.
type TrackingHandler struct {
	service  MessageAppService
	storage  objectstorage.Storage
	logger   *slog.Logger
	validate *validator.Validate
}

// NewTrackingHandler creates a new TrackingHandler.
func NewTrackingHandler(service MessageAppService, storage objectstorage.Storage, logger *slog.Logger, validate *validator.Validate) *TrackingHandler {
	return &TrackingHandler{
		service:  service,
		storage:  storage,
		logger:   logger,
		validate: validate,
	}
}

// RegisterRoutes sets up the public tracking and attachment routes.
func (h *TrackingHandler) RegisterRoutes(r chi.Router) {
	r.Route("/track/{token}", func(r chi.Router) {
		r.Get("/", h.GetCase)
		r.Get("/messages", h.ListMessages)
		r.Post("/messages", h.SendMessage)
		r.Delete("/messages/{messageID}", h.RetractMessage)
		r.Get("/messages/{messageID}/attachments/{storageRef}/url", h.AttachmentURL)
		r.Post("/read", h.MarkRead)
	})

	r.Get("/attachments/{storageRef}", h.ServeAttachment)
}

// resolveCase turns the URL slug into a case, writing the error response on
// failure. An unknown slug is indistinguishable from a missing case.
func (h *TrackingHandler) resolveCase(w http.ResponseWriter, r *http.Request) (*domain.Case, bool) {
	token := chi.URLParam(r, "token")
	savCase, err := h.service.ResolveTrackingCase(r.Context(), token)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			h.logger.ErrorContext(r.Context(), "Tracking token resolution failed", "error", err)
		}
		respondWithDomainError(w, err)
		return nil, false
	}
	return savCase, true
}

func (h *TrackingHandler) GetCase(w http.ResponseWriter, r *http.Request) {
	savCase, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, TrackedCaseResponseDTO{
		CaseID:     savCase.ID.String(),
		CaseNumber: savCase.CaseNumber,
		Status:     savCase.Status,
		ClientName: savCase.ClientName,
	})
}

func (h *TrackingHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	savCase, ok := h.resolveCase(w, r)
	if !ok {
		return
	}

	msgs, err := h.service.ListConversation(ctx, savCase.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "ListConversation failed", "error", err, "case_id", savCase.ID)
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, ConversationResponseDTO{
		Messages:   messagesToResponseDTOs(msgs),
		TotalCount: len(msgs),
	})
}

func (h *TrackingHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	savCase, ok := h.resolveCase(w, r)
	if !ok {
		return
	}

	// Same dual JSON/multipart decoding as the shop side.
	params, ok := decodeSendRequest(w, r, h.validate)
	if !ok {
		return
	}
	params.CaseID = savCase.ID
	params.Party = domain.PartyClient
	if params.SenderName == "" {
		params.SenderName = savCase.ClientName
	}

	msg, err := h.service.SendMessage(ctx, params)
	if err != nil {
		h.logger.ErrorContext(ctx, "Client SendMessage failed", "error", err, "case_id", savCase.ID)
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, messageToResponseDTO(msg))
}

func (h *TrackingHandler) RetractMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	savCase, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	messageID, ok := parseUUIDParam(w, r, "messageID")
	if !ok {
		return
	}

	if err := h.service.RetractMessage(ctx, savCase.ID, messageID, domain.PartyClient); err != nil {
		h.logger.InfoContext(ctx, "Client retraction refused", "error", err, "case_id", savCase.ID, "message_id", messageID)
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

func (h *TrackingHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	savCase, ok := h.resolveCase(w, r)
	if !ok {
		return
	}

	if err := h.service.MarkConversationRead(ctx, savCase.ID, domain.PartyClient); err != nil {
		h.logger.ErrorContext(ctx, "Client MarkConversationRead failed", "error", err, "case_id", savCase.ID)
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusNoContent, nil)
}

func (h *TrackingHandler) AttachmentURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	savCase, ok := h.resolveCase(w, r)
	if !ok {
		return
	}
	messageID, ok := parseUUIDParam(w, r, "messageID")
	if !ok {
		return
	}
	storageRef := chi.URLParam(r, "storageRef")

	url, err := h.service.AttachmentPreviewURL(ctx, savCase.ID, messageID, storageRef)
	if err != nil {
		h.logger.ErrorContext(ctx, "AttachmentPreviewURL failed", "error", err, "case_id", savCase.ID, "message_id", messageID)
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, AttachmentURLResponseDTO{URL: url})
}

// ServeAttachment streams attachment bytes for a signed URL. The token is the
// only credential: it must verify and it must name the requested object.
func (h *TrackingHandler) ServeAttachment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	storageRef := chi.URLParam(r, "storageRef")

	ref, err := h.storage.VerifyToken(r.URL.Query().Get("token"))
	if err != nil || ref != storageRef {
		respondWithError(w, http.StatusForbidden, "Invalid or expired attachment token")
		return
	}

	data, err := h.storage.Get(ctx, ref)
	if err != nil {
		if errors.Is(err, objectstorage.ErrObjectNotFound) {
			respondWithError(w, http.StatusNotFound, "Attachment not found")
			return
		}
		h.logger.ErrorContext(ctx, "Attachment read failed", "error", err, "storage_ref", ref)
		respondWithError(w, http.StatusInternalServerError, "Failed to read attachment")
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.WarnContext(ctx, "Attachment write interrupted", "error", err, "storage_ref", ref)
	}
}
