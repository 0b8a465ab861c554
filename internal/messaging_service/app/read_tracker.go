package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/savpilot/messaging-service/internal/messaging_service/domain"
	"github.com/savpilot/messaging-service/internal/messaging_service/repository"
	"github.com/savpilot/messaging-service/internal/platform/cache"
)

// badgeTTL bounds how stale a cached unread badge may be.
const badgeTTL = 5 * time.Second

// ReadTracker answers unread-count and awaiting-reply queries for case
// conversations. Counts come from one batched query; an optional Redis cache
// absorbs badge polling, with Postgres staying authoritative.
type ReadTracker struct {
	messageRepo repository.MessageRepository
	cache       *cache.Client // nil disables caching
	logger      *slog.Logger
}

func NewReadTracker(messageRepo repository.MessageRepository, cacheClient *cache.Client, logger *slog.Logger) *ReadTracker {
	return &ReadTracker{
		messageRepo: messageRepo,
		cache:       cacheClient,
		logger:      logger.With("service", "read_tracker"),
	}
}

// UnreadCountForCase returns how many messages still need party's attention
// in one case.
func (t *ReadTracker) UnreadCountForCase(ctx context.Context, caseID uuid.UUID, party domain.Party) (int, error) {
	counts, err := t.UnreadCountsAcrossCases(ctx, []uuid.UUID{caseID}, party)
	if err != nil {
		return 0, err
	}
	return counts[caseID], nil
}

// UnreadCountsAcrossCases returns a count per case for badge rendering.
// Cases with nothing unread map to zero. Cache hits are served directly;
// all misses go to the repository in a single batch query.
func (t *ReadTracker) UnreadCountsAcrossCases(ctx context.Context, caseIDs []uuid.UUID, party domain.Party) (map[uuid.UUID]int, error) {
	start := time.Now()
	defer func() {
		unreadBatchDurationHist.Observe(time.Since(start).Seconds())
	}()

	result := make(map[uuid.UUID]int, len(caseIDs))
	missing := caseIDs

	if t.cache != nil {
		missing = missing[:0:0]
		for _, id := range caseIDs {
			if count, ok := t.cache.GetInt(ctx, badgeKey(id, party)); ok {
				result[id] = count
			} else {
				missing = append(missing, id)
			}
		}
	}

	if len(missing) == 0 {
		return result, nil
	}

	counts, err := t.messageRepo.UnreadCounts(ctx, missing, party)
	if err != nil {
		return nil, err
	}
	for _, id := range missing {
		count := counts[id]
		result[id] = count
		if t.cache != nil {
			t.cache.SetInt(ctx, badgeKey(id, party), count, badgeTTL)
		}
	}
	return result, nil
}

// AwaitingReply reports whether the case's most recent message is a
// client-authored one the shop has not read yet. Drives the urgent badge,
// distinct from the plain unread count.
func (t *ReadTracker) AwaitingReply(ctx context.Context, caseID uuid.UUID) (bool, error) {
	latest, err := t.messageRepo.LatestByCase(ctx, caseID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return latest.UnreadFor(domain.PartyShop), nil
}

// InvalidateCase drops cached badges for both parties after any append,
// mark-read or retraction touching the case.
func (t *ReadTracker) InvalidateCase(ctx context.Context, caseID uuid.UUID) {
	if t.cache == nil {
		return
	}
	t.cache.Delete(ctx, badgeKey(caseID, domain.PartyShop), badgeKey(caseID, domain.PartyClient))
}

func badgeKey(caseID uuid.UUID, party domain.Party) string {
	return fmt.Sprintf("unread:%s:%s", party, caseID)
}
