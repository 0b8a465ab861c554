package app

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/savpilot/messaging-service/internal/messaging_service/adapters/objectstorage"
	"github.com/savpilot/messaging-service/internal/messaging_service/adapters/smsprovider"
	"github.com/savpilot/messaging-service/internal/messaging_service/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Repository mocks ---

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockMessageRepository) ListByCase(ctx context.Context, caseID uuid.UUID) ([]*domain.Message, error) {
	args := m.Called(ctx, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func (m *MockMessageRepository) MarkAllRead(ctx context.Context, caseID uuid.UUID, party domain.Party) error {
	args := m.Called(ctx, caseID, party)
	return args.Error(0)
}

func (m *MockMessageRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockMessageRepository) UnreadCounts(ctx context.Context, caseIDs []uuid.UUID, party domain.Party) (map[uuid.UUID]int, error) {
	args := m.Called(ctx, caseIDs, party)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]int), args.Error(1)
}

func (m *MockMessageRepository) LatestByCase(ctx context.Context, caseID uuid.UUID) (*domain.Message, error) {
	args := m.Called(ctx, caseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

type MockCaseRepository struct {
	mock.Mock
}

func (m *MockCaseRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Case, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Case), args.Error(1)
}

func (m *MockCaseRepository) GetByTrackingToken(ctx context.Context, token string) (*domain.Case, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Case), args.Error(1)
}

type MockShopConfigRepository struct {
	mock.Mock
}

func (m *MockShopConfigRepository) GetShopPolicy(ctx context.Context, shopID uuid.UUID) (*domain.ShopPolicy, error) {
	args := m.Called(ctx, shopID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ShopPolicy), args.Error(1)
}

// --- Adapter mocks ---

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Put(ctx context.Context, displayName string, content []byte) (objectstorage.Object, error) {
	args := m.Called(ctx, displayName, content)
	return args.Get(0).(objectstorage.Object), args.Error(1)
}

func (m *MockStorage) Get(ctx context.Context, ref string) ([]byte, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStorage) SignedURL(ctx context.Context, ref string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, ref, ttl)
	return args.String(0), args.Error(1)
}

func (m *MockStorage) VerifyToken(token string) (string, error) {
	args := m.Called(token)
	return args.String(0), args.Error(1)
}

func (m *MockStorage) Delete(ctx context.Context, ref string) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

type MockSMSProvider struct {
	mock.Mock
}

func (m *MockSMSProvider) Send(ctx context.Context, request smsprovider.SendRequest) (*smsprovider.SendResponse, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*smsprovider.SendResponse), args.Error(1)
}

func (m *MockSMSProvider) GetName() string {
	return "mock"
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

// --- Fixtures ---

func objectRef(ref, displayName string, size int64) objectstorage.Object {
	return objectstorage.Object{Ref: ref, DisplayName: displayName, ByteSize: size}
}

func openPolicy(shopID uuid.UUID) *domain.ShopPolicy {
	return &domain.ShopPolicy{
		ShopID:          shopID,
		ShopName:        "TechFix",
		ShopPhone:       "+33123456789",
		ReviewLink:      "https://g.example/review/techfix",
		TrackingBaseURL: "https://sav.example/track",
		TerminalStatuses: map[string]struct{}{
			"delivered": {},
			"cancelled": {},
		},
		CaseTypePolicies: map[string]domain.CaseTypePolicy{
			"client": {MaxProcessingDays: 15},
		},
		Preferences: map[domain.NotificationKind]domain.NotificationPreference{
			domain.KindStatusChange: {
				InAppEnabled: true,
				SMSEnabled:   true,
				SMSTemplate:  "{shop_name}: case {case_number} update. {link}",
			},
			domain.KindReviewRequest: {
				SMSEnabled:  true,
				SMSTemplate: "{shop_name}: tell us how we did! {link}",
			},
		},
	}
}

func openCase(shopID uuid.UUID) *domain.Case {
	return &domain.Case{
		ID:            uuid.New(),
		ShopID:        shopID,
		CaseNumber:    "SAV-42",
		Status:        "in_repair",
		CaseType:      "client",
		ClientName:    "Sam",
		ClientPhone:   "+33612345678",
		TrackingToken: "tok123",
	}
}
