package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/savpilot/messaging-service/internal/messaging_service/app"
	"github.com/savpilot/messaging-service/internal/messaging_service/domain"
)

type MockMessageAppService struct {
	mock.Mock
}

func (m *MockMessageAppService) SendMessage(ctx context.Context, p app.SendMessageParams) (*domain.Message, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockMessageAppService) ListConversation(ctx context.Context, caseID uuid.UUID) ([]*domain.Message, error) {
	args := m.Called(ctx, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func (m *MockMessageAppService) MarkConversationRead(ctx context.Context, caseID uuid.UUID, party domain.Party) error {
	args := m.Called(ctx, caseID, party)
	return args.Error(0)
}

func (m *MockMessageAppService) RetractMessage(ctx context.Context, caseID, messageID uuid.UUID, party domain.Party) error {
	args := m.Called(ctx, caseID, messageID, party)
	return args.Error(0)
}

func (m *MockMessageAppService) ResolveTrackingCase(ctx context.Context, token string) (*domain.Case, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Case), args.Error(1)
}

func (m *MockMessageAppService) GetCase(ctx context.Context, caseID uuid.UUID) (*domain.Case, error) {
	args := m.Called(ctx, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Case), args.Error(1)
}

func (m *MockMessageAppService) AttachmentPreviewURL(ctx context.Context, caseID, messageID uuid.UUID, storageRef string) (string, error) {
	args := m.Called(ctx, caseID, messageID, storageRef)
	return args.String(0), args.Error(1)
}

type MockReadTrackerService struct {
	mock.Mock
}

func (m *MockReadTrackerService) UnreadCountsAcrossCases(ctx context.Context, caseIDs []uuid.UUID, party domain.Party) (map[uuid.UUID]int, error) {
	args := m.Called(ctx, caseIDs, party)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]int), args.Error(1)
}

func (m *MockReadTrackerService) AwaitingReply(ctx context.Context, caseID uuid.UUID) (bool, error) {
	args := m.Called(ctx, caseID)
	return args.Bool(0), args.Error(1)
}

type MockNotifierService struct {
	mock.Mock
}

func (m *MockNotifierService) Notify(ctx context.Context, p app.NotifyParams) (*app.DeliveryResult, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.DeliveryResult), args.Error(1)
}

func newTestRouter(service *MockMessageAppService, tracker *MockReadTrackerService, notifier *MockNotifierService) *chi.Mux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewMessageHandler(service, tracker, notifier, logger, validator.New())
	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func TestSendMessage_JSON(t *testing.T) {
	service := new(MockMessageAppService)
	router := newTestRouter(service, new(MockReadTrackerService), new(MockNotifierService))

	caseID := uuid.New()
	msg := domain.NewMessage(uuid.New(), caseID, domain.PartyShop, "TechFix", "Ready for pickup", nil)
	service.On("SendMessage", mock.Anything, mock.MatchedBy(func(p app.SendMessageParams) bool {
		return p.CaseID == caseID && p.Party == domain.PartyShop && p.Body == "Ready for pickup"
	})).Return(msg, nil).Once()

	body, _ := json.Marshal(SendMessageRequestDTO{SenderName: "TechFix", Body: "Ready for pickup"})
	req := httptest.NewRequest(http.MethodPost, "/cases/"+caseID.String()+"/messages", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var respDTO MessageResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&respDTO))
	assert.Equal(t, "shop", respDTO.SenderType)
	assert.Equal(t, "Ready for pickup", respDTO.Body)
	service.AssertExpectations(t)
}

func TestSendMessage_Multipart(t *testing.T) {
	service := new(MockMessageAppService)
	router := newTestRouter(service, new(MockReadTrackerService), new(MockNotifierService))

	caseID := uuid.New()
	msg := domain.NewMessage(uuid.New(), caseID, domain.PartyShop, "TechFix", "photo attached", []domain.Attachment{
		{DisplayName: "before.png", StorageRef: "ref-before.png", ByteSize: 3},
	})
	service.On("SendMessage", mock.Anything, mock.MatchedBy(func(p app.SendMessageParams) bool {
		return len(p.Files) == 1 && p.Files[0].DisplayName == "before.png" &&
			p.Files[0].ContentType == "image/png" && string(p.Files[0].Content) == "png"
	})).Return(msg, nil).Once()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("sender_name", "TechFix"))
	require.NoError(t, mw.WriteField("body", "photo attached"))
	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition", `form-data; name="attachments"; filename="before.png"`)
	partHeader.Set("Content-Type", "image/png")
	fw, err := mw.CreatePart(partHeader)
	require.NoError(t, err)
	_, err = fw.Write([]byte("png"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/cases/"+caseID.String()+"/messages", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	service.AssertExpectations(t)
}

func TestSendMessage_BodyTooLarge(t *testing.T) {
	service := new(MockMessageAppService)
	router := newTestRouter(service, new(MockReadTrackerService), new(MockNotifierService))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("sender_name", "TechFix"))
	fw, err := mw.CreateFormFile("attachments", "enormous.png")
	require.NoError(t, err)
	_, err = fw.Write(bytes.Repeat([]byte("x"), maxRequestBodyBytes+1))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/cases/"+uuid.NewString()+"/messages", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	service.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
}

func TestSendMessage_InvalidCaseID(t *testing.T) {
	router := newTestRouter(new(MockMessageAppService), new(MockReadTrackerService), new(MockNotifierService))

	req := httptest.NewRequest(http.MethodPost, "/cases/not-a-uuid/messages", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessage_ValidationFailure(t *testing.T) {
	router := newTestRouter(new(MockMessageAppService), new(MockReadTrackerService), new(MockNotifierService))

	body, _ := json.Marshal(SendMessageRequestDTO{Body: "no sender name"})
	req := httptest.NewRequest(http.MethodPost, "/cases/"+uuid.NewString()+"/messages", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessage_ClosedCase(t *testing.T) {
	service := new(MockMessageAppService)
	router := newTestRouter(service, new(MockReadTrackerService), new(MockNotifierService))

	service.On("SendMessage", mock.Anything, mock.Anything).Return(nil, domain.ErrCaseClosed).Once()

	body, _ := json.Marshal(SendMessageRequestDTO{SenderName: "TechFix", Body: "too late"})
	req := httptest.NewRequest(http.MethodPost, "/cases/"+uuid.NewString()+"/messages", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRetractMessage_StatusMapping(t *testing.T) {
	caseID := uuid.New()
	messageID := uuid.New()

	tests := []struct {
		name       string
		serviceErr error
		wantStatus int
	}{
		{"deleted", nil, http.StatusNoContent},
		{"wrong sender", domain.ErrNotSender, http.StatusForbidden},
		{"window expired", domain.ErrRetractionExpired, http.StatusGone},
		{"unknown message", domain.ErrNotFound, http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			service := new(MockMessageAppService)
			router := newTestRouter(service, new(MockReadTrackerService), new(MockNotifierService))
			service.On("RetractMessage", mock.Anything, caseID, messageID, domain.PartyShop).
				Return(tc.serviceErr).Once()

			req := httptest.NewRequest(http.MethodDelete, "/cases/"+caseID.String()+"/messages/"+messageID.String(), nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}

func TestListMessages(t *testing.T) {
	service := new(MockMessageAppService)
	router := newTestRouter(service, new(MockReadTrackerService), new(MockNotifierService))

	caseID := uuid.New()
	first := domain.NewMessage(uuid.New(), caseID, domain.PartyClient, "Sam", "hello", nil)
	first.CreatedAt = time.Now().UTC().Add(-time.Hour)
	second := domain.NewMessage(uuid.New(), caseID, domain.PartyShop, "TechFix", "hi", nil)
	service.On("ListConversation", mock.Anything, caseID).
		Return([]*domain.Message{first, second}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/cases/"+caseID.String()+"/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var respDTO ConversationResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&respDTO))
	require.Equal(t, 2, respDTO.TotalCount)
	assert.Equal(t, "hello", respDTO.Messages[0].Body)
	assert.Equal(t, "hi", respDTO.Messages[1].Body)
}

func TestUnreadCounts(t *testing.T) {
	tracker := new(MockReadTrackerService)
	router := newTestRouter(new(MockMessageAppService), tracker, new(MockNotifierService))

	caseA := uuid.New()
	caseB := uuid.New()
	tracker.On("UnreadCountsAcrossCases", mock.Anything, []uuid.UUID{caseA, caseB}, domain.PartyShop).
		Return(map[uuid.UUID]int{caseA: 2, caseB: 0}, nil).Once()

	body, _ := json.Marshal(UnreadCountsRequestDTO{CaseIDs: []string{caseA.String(), caseB.String()}})
	req := httptest.NewRequest(http.MethodPost, "/cases/unread-counts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var respDTO UnreadCountsResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&respDTO))
	assert.Equal(t, 2, respDTO.Counts[caseA.String()])
	assert.Equal(t, 0, respDTO.Counts[caseB.String()])
}

func TestUnreadCounts_EmptyList(t *testing.T) {
	router := newTestRouter(new(MockMessageAppService), new(MockReadTrackerService), new(MockNotifierService))

	body, _ := json.Marshal(UnreadCountsRequestDTO{CaseIDs: []string{}})
	req := httptest.NewRequest(http.MethodPost, "/cases/unread-counts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAwaitingReply(t *testing.T) {
	tracker := new(MockReadTrackerService)
	router := newTestRouter(new(MockMessageAppService), tracker, new(MockNotifierService))

	caseID := uuid.New()
	tracker.On("AwaitingReply", mock.Anything, caseID).Return(true, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/cases/"+caseID.String()+"/awaiting-reply", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var respDTO AwaitingReplyResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&respDTO))
	assert.True(t, respDTO.AwaitingReply)
}

func TestNotify_DispatchFailureStillCreated(t *testing.T) {
	notifier := new(MockNotifierService)
	router := newTestRouter(new(MockMessageAppService), new(MockReadTrackerService), notifier)

	caseID := uuid.New()
	mirror := domain.NewSMSMirror(uuid.New(), caseID, "TechFix", "TechFix: case SAV-42 update.")
	notifier.On("Notify", mock.Anything, app.NotifyParams{CaseID: caseID, Kind: domain.KindStatusChange}).
		Return(&app.DeliveryResult{Message: mirror, DispatchError: "gateway timeout"}, nil).Once()

	body, _ := json.Marshal(NotifyRequestDTO{Kind: "status_change"})
	req := httptest.NewRequest(http.MethodPost, "/cases/"+caseID.String()+"/notifications", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var respDTO NotifyResponseDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&respDTO))
	assert.False(t, respDTO.SMSSent)
	assert.Equal(t, "gateway timeout", respDTO.DispatchError)
	assert.True(t, respDTO.Message.IsSMSMirror)
}

func TestNotify_NoPhone(t *testing.T) {
	notifier := new(MockNotifierService)
	router := newTestRouter(new(MockMessageAppService), new(MockReadTrackerService), notifier)

	notifier.On("Notify", mock.Anything, mock.Anything).
		Return(nil, domain.ErrChannelUnavailable).Once()

	body, _ := json.Marshal(NotifyRequestDTO{Kind: "status_change"})
	req := httptest.NewRequest(http.MethodPost, "/cases/"+uuid.NewString()+"/notifications", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestNotify_UnknownKind(t *testing.T) {
	router := newTestRouter(new(MockMessageAppService), new(MockReadTrackerService), new(MockNotifierService))

	body, _ := json.Marshal(NotifyRequestDTO{Kind: "carrier_pigeon"})
	req := httptest.NewRequest(http.MethodPost, "/cases/"+uuid.NewString()+"/notifications", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkRead(t *testing.T) {
	service := new(MockMessageAppService)
	router := newTestRouter(service, new(MockReadTrackerService), new(MockNotifierService))

	caseID := uuid.New()
	service.On("MarkConversationRead", mock.Anything, caseID, domain.PartyShop).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/cases/"+caseID.String()+"/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	service.AssertExpectations(t)
}
