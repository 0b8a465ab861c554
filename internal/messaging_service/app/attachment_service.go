package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/savpilot/messaging-service/internal/messaging_service/adapters/objectstorage"
	"github.com/savpilot/messaging-service/internal/messaging_service/domain"
)

const (
	// MaxAttachmentsPerMessage caps how many files one message may carry.
	MaxAttachmentsPerMessage = 3
	// MaxAttachmentBytes is the per-file size limit (5 MB).
	MaxAttachmentBytes = 5 << 20
	// PreviewURLTTL is how long generated preview URLs stay valid.
	PreviewURLTTL = time.Hour
)

// FileUpload is one candidate attachment as received from the transport layer.
type FileUpload struct {
	DisplayName string
	ContentType string
	Content     []byte
}

// AttachmentService validates and stores message attachments.
type AttachmentService struct {
	storage objectstorage.Storage
	logger  *slog.Logger
}

func NewAttachmentService(storage objectstorage.Storage, logger *slog.Logger) *AttachmentService {
	return &AttachmentService{
		storage: storage,
		logger:  logger.With("service", "attachment"),
	}
}

// UploadBatch validates the whole batch before any storage write, then stores
// every file. All-or-nothing: on any validation failure zero bytes are
// transferred, and a mid-batch storage failure rolls back the objects already
// written.
func (s *AttachmentService) UploadBatch(ctx context.Context, files []FileUpload) ([]domain.Attachment, error) {
	if len(files) == 0 {
		return nil, nil
	}

	if len(files) > MaxAttachmentsPerMessage {
		rejected := make([]string, 0, len(files)-MaxAttachmentsPerMessage)
		for _, f := range files[MaxAttachmentsPerMessage:] {
			rejected = append(rejected, f.DisplayName)
		}
		return nil, &domain.AttachmentLimitError{Limit: MaxAttachmentsPerMessage, Rejected: rejected}
	}

	for _, f := range files {
		if err := validateFile(f); err != nil {
			return nil, err
		}
	}

	attachments := make([]domain.Attachment, 0, len(files))
	stored := make([]string, 0, len(files))
	for _, f := range files {
		obj, err := s.storage.Put(ctx, f.DisplayName, f.Content)
		if err != nil {
			s.logger.ErrorContext(ctx, "Attachment upload failed mid-batch, rolling back stored objects",
				"error", err, "display_name", f.DisplayName, "stored_count", len(stored))
			s.RemoveAll(ctx, stored)
			return nil, fmt.Errorf("failed to store attachment %q: %w", f.DisplayName, err)
		}
		stored = append(stored, obj.Ref)
		attachments = append(attachments, domain.Attachment{
			DisplayName: obj.DisplayName,
			StorageRef:  obj.Ref,
			ByteSize:    obj.ByteSize,
		})
		attachmentsUploadedCounter.Inc()
		attachmentBytesHist.Observe(float64(obj.ByteSize))
	}

	return attachments, nil
}

// PreviewURL returns a signed URL for an attachment, valid for PreviewURLTTL.
func (s *AttachmentService) PreviewURL(ctx context.Context, storageRef string) (string, error) {
	url, err := s.storage.SignedURL(ctx, storageRef, PreviewURLTTL)
	if err != nil {
		if errors.Is(err, objectstorage.ErrObjectNotFound) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return url, nil
}

// RemoveAll deletes storage objects best-effort. Failures are logged and
// never propagated: the message record is authoritative and a stale object
// must not undo a delete that already succeeded.
func (s *AttachmentService) RemoveAll(ctx context.Context, storageRefs []string) {
	for _, ref := range storageRefs {
		if err := s.storage.Delete(ctx, ref); err != nil {
			s.logger.WarnContext(ctx, "Failed to delete attachment object, leaving orphan", "storage_ref", ref, "error", err)
		}
	}
}

func validateFile(f FileUpload) error {
	if !strings.HasPrefix(strings.ToLower(f.ContentType), "image/") {
		return fmt.Errorf("%s (%s): %w", f.DisplayName, f.ContentType, domain.ErrAttachmentType)
	}
	if len(f.Content) == 0 {
		return fmt.Errorf("%s: empty file: %w", f.DisplayName, domain.ErrAttachmentType)
	}
	if len(f.Content) > MaxAttachmentBytes {
		return fmt.Errorf("%s (%d bytes): %w", f.DisplayName, len(f.Content), domain.ErrAttachmentTooLarge)
	}
	return nil
}
