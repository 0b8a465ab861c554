package domain

import "github.com/google/uuid"

// NotificationKind is the category of an outbound case notification.
type NotificationKind string

const (
	KindStatusChange  NotificationKind = "status_change"
	KindReviewRequest NotificationKind = "review_request"
	KindCustom        NotificationKind = "custom"
)

// Valid reports whether k is a known notification kind.
func (k NotificationKind) Valid() bool {
	switch k {
	case KindStatusChange, KindReviewRequest, KindCustom:
		return true
	}
	return false
}

// NotificationPreference holds a shop's channel toggles and SMS template for
// one notification kind. The toggles are independent booleans.
type NotificationPreference struct {
	InAppEnabled bool   `json:"in_app_enabled"`
	SMSEnabled   bool   `json:"sms_enabled"`
	SMSTemplate  string `json:"sms_message_template"`
}

// CaseTypePolicy is the per-case-type processing policy configured by a shop.
type CaseTypePolicy struct {
	PauseTimer        bool `json:"pause_timer"`
	MaxProcessingDays int  `json:"max_processing_days"`
}

// ShopPolicy is the per-shop configuration snapshot consulted by the
// messaging core. It is loaded once per request path and passed explicitly so
// the router and lifecycle gate stay testable with fixtures instead of
// reading ambient state.
type ShopPolicy struct {
	ShopID          uuid.UUID
	ShopName        string
	ShopPhone       string
	ReviewLink      string
	TrackingBaseURL string

	// TerminalStatuses is the shop-configured set of status keys after which
	// a case accepts no further messages.
	TerminalStatuses map[string]struct{}

	CaseTypePolicies map[string]CaseTypePolicy
	Preferences      map[NotificationKind]NotificationPreference
}

// IsTerminal reports whether status belongs to the shop's terminal set.
func (p *ShopPolicy) IsTerminal(status string) bool {
	_, ok := p.TerminalStatuses[status]
	return ok
}

// CanAcceptNewMessage is the case-lifecycle gate: false once the case status
// is terminal. This is a hard gate, enforced server-side on every append.
func (p *ShopPolicy) CanAcceptNewMessage(caseStatus string) bool {
	return !p.IsTerminal(caseStatus)
}

// PreferenceFor returns the preference for a notification kind, or a zeroed
// preference (all channels off) when the shop configured none.
func (p *ShopPolicy) PreferenceFor(kind NotificationKind) NotificationPreference {
	return p.Preferences[kind]
}

// PolicyForCaseType returns the processing policy for a case type, or the
// zero policy when the type is unknown to the shop.
func (p *ShopPolicy) PolicyForCaseType(caseType string) CaseTypePolicy {
	return p.CaseTypePolicies[caseType]
}

// TrackingURL builds the public tracking link for a token, or "" when either
// side is missing.
func (p *ShopPolicy) TrackingURL(token string) string {
	if p.TrackingBaseURL == "" || token == "" {
		return ""
	}
	return p.TrackingBaseURL + "/" + token
}
