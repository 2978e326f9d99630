package chat

import (
	"fmt"
	"sync"
	"time"

	"oldschool-messanger/models"
	"oldschool-messanger/socket"
)

// PresenceTracker maintains last known presence per user identity.
// Records are created and updated only by inbound presence events and
// never pruned during a session. A missing record means unknown, not
// offline.
type PresenceTracker struct {
	mu      sync.RWMutex
	records map[string]models.PresenceRecord
}

// NewPresenceTracker builds an empty tracker.
func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{records: make(map[string]models.PresenceRecord)}
}

// Apply merges one inbound presence event. Presence is tracked for every
// user the server reports, not just the selected conversation's
// participant.
func (p *PresenceTracker) Apply(update socket.PresenceUpdate) {
	if update.UserID == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.records[update.UserID] = models.PresenceRecord{
		Online:   update.Online,
		LastSeen: update.LastSeen,
	}
}

// Get returns the record for a user, if one has been received.
func (p *PresenceTracker) Get(userID string) (models.PresenceRecord, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	record, ok := p.records[userID]
	return record, ok
}

// FormatPresence renders a presence record for display, relative to now.
// Online wins regardless of lastSeen; offline with no lastSeen is plain
// "offline"; otherwise the phrase buckets by calendar day.
func FormatPresence(record models.PresenceRecord, now time.Time) string {
	if record.Online {
		return "online"
	}
	if record.LastSeen == nil {
		return "offline"
	}

	lastSeen := time.UnixMilli(*record.LastSeen).In(now.Location())
	clock := lastSeen.Format("15:04")

	nowYear, nowDay := now.Year(), now.YearDay()
	seenYear, seenDay := lastSeen.Year(), lastSeen.YearDay()

	switch {
	case seenYear == nowYear && seenDay == nowDay:
		return "last seen today at " + clock
	case isYesterday(lastSeen, now):
		return "last seen yesterday at " + clock
	default:
		return fmt.Sprintf("last seen %s at %s", lastSeen.Format("Jan 2"), clock)
	}
}

func isYesterday(lastSeen, now time.Time) bool {
	yesterday := now.AddDate(0, 0, -1)
	return lastSeen.Year() == yesterday.Year() && lastSeen.YearDay() == yesterday.YearDay()
}
