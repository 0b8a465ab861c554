package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates that a requested resource was not found.
	ErrNotFound = errors.New("resource not found")
	// ErrEmptyMessage indicates a message with neither text nor attachments.
	ErrEmptyMessage = errors.New("message requires text or at least one attachment")
	// ErrNotSender indicates a retraction attempted by a party other than the original sender.
	ErrNotSender = errors.New("only the original sender may delete a message")
	// ErrRetractionExpired indicates a retraction attempted after the deletion window closed.
	ErrRetractionExpired = errors.New("retraction window has expired")
	// ErrCaseClosed indicates the case status is terminal and no longer accepts messages.
	ErrCaseClosed = errors.New("case no longer accepts messages")
	// ErrChannelUnavailable indicates no delivery channel exists for a notification
	// (no phone number on file, review link missing, or SMS disabled for the kind).
	ErrChannelUnavailable = errors.New("no delivery channel available")
	// ErrAttachmentType indicates an attachment that is not an image.
	ErrAttachmentType = errors.New("attachment must be an image")
	// ErrAttachmentTooLarge indicates an attachment over the per-file size limit.
	ErrAttachmentTooLarge = errors.New("attachment exceeds size limit")
)

// AttachmentLimitError reports a batch exceeding the per-message attachment cap.
// Rejected lists the display names that did not fit; nothing from the batch is
// uploaded when this error is returned.
type AttachmentLimitError struct {
	Limit    int
	Rejected []string
}

func (e *AttachmentLimitError) Error() string {
	return fmt.Sprintf("attachment limit of %d exceeded, rejected: %s", e.Limit, strings.Join(e.Rejected, ", "))
}
