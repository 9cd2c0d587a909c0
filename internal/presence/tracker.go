package presence

import (
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/bus"
	"github.com/terverakaaga-gif/frontend-support24-sub002/internal/store"
	"go.uber.org/zap"
)

// Update is a presence signal from the server: either a full snapshot
// (Online non-nil, possibly empty) or a delta (Add/Remove).
type Update struct {
	Online []string `json:"online,omitempty"`
	Add    []string `json:"add,omitempty"`
	Remove []string `json:"remove,omitempty"`
}

// Snapshot reports whether the update replaces the whole set.
func (u Update) Snapshot() bool {
	return u.Online != nil
}

// Tracker applies presence signals to the store. Presence is never
// guessed locally; the store always reflects the latest server signal.
type Tracker struct {
	store  *store.Store
	bus    *bus.Bus
	logger *zap.Logger
}

// NewTracker creates a tracker writing to the given store.
func NewTracker(st *store.Store, b *bus.Bus, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{store: st, bus: b, logger: logger}
}

// Apply ingests a snapshot or delta and publishes a chat.presence
// event for UI consumers.
func (t *Tracker) Apply(u Update) {
	if u.Snapshot() {
		t.store.SetOnlineUsers(u.Online)
		t.logger.Debug("presence snapshot applied", zap.Int("online", len(u.Online)))
	} else {
		t.store.ApplyPresenceDelta(u.Add, u.Remove)
		t.logger.Debug("presence delta applied",
			zap.Int("added", len(u.Add)), zap.Int("removed", len(u.Remove)))
	}
	if t.bus != nil {
		t.bus.Emit(bus.KindChatPresence, t.store.OnlineUsers())
	}
}

// IsOnline is a pure set-membership query against the store.
func (t *Tracker) IsOnline(userID string) bool {
	return t.store.IsOnline(userID)
}
