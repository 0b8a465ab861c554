package domain

import "time"

// RetractionWindow is how long after creation the original sender may delete
// a message. The bound is exclusive: elapsed must be strictly less than the
// window, exactly 60s counts as expired.
const RetractionWindow = 60 * time.Second

// CanRetract checks whether party may delete m at wall-clock time now.
// Returns ErrNotSender or ErrRetractionExpired, nil when the delete is allowed.
// Callers must pass the current time on every request; the result is never
// cached server-side.
func CanRetract(m *Message, party Party, now time.Time) error {
	if m.SenderType != party {
		return ErrNotSender
	}
	if now.Sub(m.CreatedAt) >= RetractionWindow {
		return ErrRetractionExpired
	}
	return nil
}
