package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Party identifies which side of a case conversation authored or reads a message.
type Party string

const (
	PartyShop   Party = "shop"
	PartyClient Party = "client"
)

// Opposite returns the other side of the conversation.
func (p Party) Opposite() Party {
	if p == PartyShop {
		return PartyClient
	}
	return PartyShop
}

// Valid reports whether p is one of the two known parties.
func (p Party) Valid() bool {
	return p == PartyShop || p == PartyClient
}

// SMSMirrorPrefix marks chat messages that mirror an SMS sent to the client,
// so the transcript shows the SMS went out.
const SMSMirrorPrefix = "[SMS] "

// Attachment is a stored binary object linked to a message.
type Attachment struct {
	DisplayName string `json:"display_name"`
	StorageRef  string `json:"storage_ref"`
	ByteSize    int64  `json:"byte_size"`
}

// Message is a single chat entry in a case conversation. Messages are only
// ever mutated to flip read flags; any other change is a delete within the
// retraction window.
type Message struct {
	ID           uuid.UUID    `json:"id"`
	CaseID       uuid.UUID    `json:"case_id"`
	SenderType   Party        `json:"sender_type"`
	SenderName   string       `json:"sender_name"`
	Body         string       `json:"body"`
	Attachments  []Attachment `json:"attachments,omitempty"`
	IsSMSMirror  bool         `json:"is_sms_mirror"`
	ReadByShop   bool         `json:"read_by_shop"`
	ReadByClient bool         `json:"read_by_client"`
	CreatedAt    time.Time    `json:"created_at"`
}

// NewMessage creates a message authored by sender. The sender's own read flag
// is set (a sender has implicitly read their own message); the opposite
// party's flag starts false.
func NewMessage(id uuid.UUID, caseID uuid.UUID, sender Party, senderName, body string, attachments []Attachment) *Message {
	return &Message{
		ID:           id,
		CaseID:       caseID,
		SenderType:   sender,
		SenderName:   senderName,
		Body:         body,
		Attachments:  attachments,
		ReadByShop:   sender == PartyShop,
		ReadByClient: sender == PartyClient,
		CreatedAt:    time.Now().UTC(),
	}
}

// NewSMSMirror creates the shop-authored chat record of an SMS dispatched to
// the client. The body carries the mirror prefix exactly once.
func NewSMSMirror(id uuid.UUID, caseID uuid.UUID, senderName, smsBody string) *Message {
	body := smsBody
	if !strings.HasPrefix(body, SMSMirrorPrefix) {
		body = SMSMirrorPrefix + body
	}
	m := NewMessage(id, caseID, PartyShop, senderName, body, nil)
	m.IsSMSMirror = true
	return m
}

// ReadBy reports whether party has read the message.
func (m *Message) ReadBy(party Party) bool {
	if party == PartyShop {
		return m.ReadByShop
	}
	return m.ReadByClient
}

// UnreadFor reports whether the message needs party's attention: authored by
// the opposite party and not yet read. A party's own messages (including SMS
// mirrors for the shop) are never unread for them.
func (m *Message) UnreadFor(party Party) bool {
	return m.SenderType == party.Opposite() && !m.ReadBy(party)
}

// StorageRefs returns the storage references of all attachments.
func (m *Message) StorageRefs() []string {
	if len(m.Attachments) == 0 {
		return nil
	}
	refs := make([]string, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		refs = append(refs, a.StorageRef)
	}
	return refs
}
