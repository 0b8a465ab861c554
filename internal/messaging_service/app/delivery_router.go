package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/savpilot/messaging-service/internal/messaging_service/adapters/smsprovider"
	"github.com/savpilot/messaging-service/internal/messaging_service/domain"
	"github.com/savpilot/messaging-service/internal/messaging_service/repository"
)

const (
	// smsFooter closes every operator-entered SMS.
	smsFooter = "Do not reply to this SMS."
	// smsDispatchTimeout bounds one gateway round trip. No retry on failure;
	// retry policy belongs to the gateway side.
	smsDispatchTimeout = 30 * time.Second
)

// NotifyParams carries one outbound notification request.
type NotifyParams struct {
	CaseID     uuid.UUID
	Kind       domain.NotificationKind
	CustomText string // used only for KindCustom
}

// DeliveryResult reports what the router did. When the SMS channel fails the
// mirror message is already recorded and returned alongside the error text:
// the transcript survives a dead channel.
type DeliveryResult struct {
	Message           *domain.Message
	SMSSent           bool
	ProviderMessageID string
	DispatchError     string
}

// DeliveryRouter decides the channel set for an outbound case update,
// renders the SMS body from shop templates and mirrors the dispatch into the
// conversation transcript.
type DeliveryRouter struct {
	messageRepo    repository.MessageRepository
	caseRepo       repository.CaseRepository
	shopConfigRepo repository.ShopConfigRepository
	provider       smsprovider.Provider
	service        *MessageService
	logger         *slog.Logger
}

func NewDeliveryRouter(
	messageRepo repository.MessageRepository,
	caseRepo repository.CaseRepository,
	shopConfigRepo repository.ShopConfigRepository,
	provider smsprovider.Provider,
	service *MessageService,
	logger *slog.Logger,
) *DeliveryRouter {
	return &DeliveryRouter{
		messageRepo:    messageRepo,
		caseRepo:       caseRepo,
		shopConfigRepo: shopConfigRepo,
		provider:       provider,
		service:        service,
		logger:         logger.With("service", "delivery_router"),
	}
}

// Notify runs the channel decision table, records the transcript message and,
// when the SMS channel is on, dispatches through the provider.
// Record-then-dispatch ordering is deliberate: the transcript entry exists
// before the channel is attempted.
func (r *DeliveryRouter) Notify(ctx context.Context, p NotifyParams) (*DeliveryResult, error) {
	savCase, err := r.caseRepo.GetByID(ctx, p.CaseID)
	if err != nil {
		return nil, err
	}
	policy, err := r.shopConfigRepo.GetShopPolicy(ctx, savCase.ShopID)
	if err != nil {
		return nil, err
	}

	sendSMS, inApp := r.channelsFor(policy, p.Kind)
	if !sendSMS && !inApp {
		return nil, fmt.Errorf("all channels disabled for %s notifications: %w", p.Kind, domain.ErrChannelUnavailable)
	}
	if sendSMS && !savCase.HasClientPhone() {
		r.logger.InfoContext(ctx, "Notification refused: no phone on file", "case_id", p.CaseID, "kind", p.Kind)
		return nil, fmt.Errorf("case %s has no client phone: %w", savCase.CaseNumber, domain.ErrChannelUnavailable)
	}

	body, err := r.composeBody(savCase, policy, p)
	if err != nil {
		return nil, err
	}

	// SMS dispatches carry the mirror marker in the transcript; an
	// in-app-only notification is a plain shop message.
	var msg *domain.Message
	if sendSMS {
		msg = domain.NewSMSMirror(uuid.New(), p.CaseID, policy.ShopName, body)
	} else {
		msg = domain.NewMessage(uuid.New(), p.CaseID, domain.PartyShop, policy.ShopName, body, nil)
	}
	if err := r.messageRepo.Create(ctx, msg); err != nil {
		return nil, err
	}
	messagesAppendedCounter.WithLabelValues(string(domain.PartyShop), strconv.FormatBool(sendSMS)).Inc()
	r.service.publishAppended(ctx, msg)
	if r.service.tracker != nil {
		r.service.tracker.InvalidateCase(ctx, p.CaseID)
	}

	result := &DeliveryResult{Message: msg}
	if !sendSMS {
		return result, nil
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, smsDispatchTimeout)
	defer cancel()
	resp, sendErr := r.provider.Send(dispatchCtx, smsprovider.SendRequest{
		InternalMessageID: msg.ID.String(),
		Recipient:         savCase.ClientPhone,
		Content:           body,
	})

	switch {
	case sendErr != nil:
		result.DispatchError = sendErr.Error()
	case !resp.Success:
		result.DispatchError = resp.ErrorMessage
	default:
		result.SMSSent = true
		result.ProviderMessageID = resp.ProviderMessageID
	}

	status := "sent"
	if !result.SMSSent {
		status = "failed"
		r.logger.WarnContext(ctx, "SMS dispatch failed, mirror message kept",
			"case_id", p.CaseID, "kind", p.Kind, "error", result.DispatchError)
	}
	smsDispatchCounter.WithLabelValues(string(p.Kind), status).Inc()

	return result, nil
}

// channelsFor reads the shop's channel toggles for a notification kind.
// Custom notifications are operator-entered SMS text: they always dispatch
// and always land in the transcript, regardless of configured toggles.
func (r *DeliveryRouter) channelsFor(policy *domain.ShopPolicy, kind domain.NotificationKind) (sendSMS, inApp bool) {
	if kind == domain.KindCustom {
		return true, true
	}
	pref := policy.PreferenceFor(kind)
	return pref.SMSEnabled, pref.InAppEnabled
}

// composeBody implements the per-kind body decision table.
func (r *DeliveryRouter) composeBody(savCase *domain.Case, policy *domain.ShopPolicy, p NotifyParams) (string, error) {
	data := domain.TemplateData{
		ShopName:   policy.ShopName,
		CaseNumber: savCase.CaseNumber,
		Date:       time.Now().UTC().Format("2006-01-02"),
	}

	switch p.Kind {
	case domain.KindStatusChange:
		if !policy.CanAcceptNewMessage(savCase.Status) {
			return "", domain.ErrCaseClosed
		}
		data.Link = policy.TrackingURL(savCase.TrackingToken)
		return domain.RenderTemplate(policy.PreferenceFor(domain.KindStatusChange).SMSTemplate, data), nil

	case domain.KindReviewRequest:
		if policy.ReviewLink == "" {
			return "", fmt.Errorf("no review link configured: %w", domain.ErrChannelUnavailable)
		}
		data.Link = policy.ReviewLink
		return domain.RenderTemplate(policy.PreferenceFor(domain.KindReviewRequest).SMSTemplate, data), nil

	case domain.KindCustom:
		if p.CustomText == "" {
			return "", domain.ErrEmptyMessage
		}
		// Operator text goes out verbatim, then the fixed footer plus either
		// the tracking link or a contact fallback.
		body := p.CustomText + "\n" + smsFooter
		if trackingURL := policy.TrackingURL(savCase.TrackingToken); trackingURL != "" {
			body += "\nFollow your repair: " + trackingURL
		} else if policy.ShopPhone != "" {
			body += "\nContact us: " + policy.ShopPhone
		} else {
			body += "\nContact the shop directly."
		}
		return body, nil

	default:
		return "", fmt.Errorf("unknown notification kind %q", p.Kind)
	}
}
