package http

import (
	"time"

	"github.com/savpilot/messaging-service/internal/messaging_service/domain"
)

// SendMessageRequestDTO is the JSON body for appending a text-only message.
// Messages with attachments come in as multipart/form-data instead.
type SendMessageRequestDTO struct {
	SenderName string `json:"sender_name" validate:"required,max=120"`
	Body       string `json:"body" validate:"required,max=5000"`
}

type AttachmentDTO struct {
	DisplayName string `json:"display_name"`
	StorageRef  string `json:"storage_ref"`
	ByteSize    int64  `json:"byte_size"`
}

type MessageResponseDTO struct {
	ID           string          `json:"id"`
	CaseID       string          `json:"case_id"`
	SenderType   string          `json:"sender_type"`
	SenderName   string          `json:"sender_name"`
	Body         string          `json:"body"`
	Attachments  []AttachmentDTO `json:"attachments,omitempty"`
	IsSMSMirror  bool            `json:"is_sms_mirror"`
	ReadByShop   bool            `json:"read_by_shop"`
	ReadByClient bool            `json:"read_by_client"`
	CreatedAt    time.Time       `json:"created_at"`
}

type ConversationResponseDTO struct {
	Messages   []MessageResponseDTO `json:"messages"`
	TotalCount int                  `json:"total_count"`
}

type UnreadCountsRequestDTO struct {
	CaseIDs []string `json:"case_ids" validate:"required,min=1,max=500,dive,uuid"`
}

type UnreadCountsResponseDTO struct {
	Counts map[string]int `json:"counts"`
}

type AwaitingReplyResponseDTO struct {
	AwaitingReply bool `json:"awaiting_reply"`
}

type NotifyRequestDTO struct {
	Kind       string `json:"kind" validate:"required,oneof=status_change review_request custom"`
	CustomText string `json:"custom_text" validate:"max=1000"`
}

type NotifyResponseDTO struct {
	Message           MessageResponseDTO `json:"message"`
	SMSSent           bool               `json:"sms_sent"`
	ProviderMessageID string             `json:"provider_message_id,omitempty"`
	DispatchError     string             `json:"dispatch_error,omitempty"`
}

type AttachmentURLResponseDTO struct {
	URL string `json:"url"`
}

// TrackedCaseResponseDTO is the public view of a case resolved from its
// tracking slug. Deliberately thin: no client phone, no internal IDs beyond
// what the conversation routes need.
type TrackedCaseResponseDTO struct {
	CaseID     string `json:"case_id"`
	CaseNumber string `json:"case_number"`
	Status     string `json:"status"`
	ClientName string `json:"client_name"`
}

func messageToResponseDTO(m *domain.Message) MessageResponseDTO {
	dto := MessageResponseDTO{
		ID:           m.ID.String(),
		CaseID:       m.CaseID.String(),
		SenderType:   string(m.SenderType),
		SenderName:   m.SenderName,
		Body:         m.Body,
		IsSMSMirror:  m.IsSMSMirror,
		ReadByShop:   m.ReadByShop,
		ReadByClient: m.ReadByClient,
		CreatedAt:    m.CreatedAt,
	}
	for _, a := range m.Attachments {
		dto.Attachments = append(dto.Attachments, AttachmentDTO{
			DisplayName: a.DisplayName,
			StorageRef:  a.StorageRef,
			ByteSize:    a.ByteSize,
		})
	}
	return dto
}

func messagesToResponseDTOs(msgs []*domain.Message) []MessageResponseDTO {
	dtos := make([]MessageResponseDTO, len(msgs))
	for i, m := range msgs {
		dtos[i] = messageToResponseDTO(m)
	}
	return dtos
}
