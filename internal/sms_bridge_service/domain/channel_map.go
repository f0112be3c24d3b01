package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// ChannelMapVersion is the schema version written by EncodeChannelMap.
const ChannelMapVersion = 1

// ChannelBinding associates one of a user's conversations with a pool number
// until ExpiresAt.
type ChannelBinding struct {
	Number    string
	ExpiresAt time.Time
}

// Expired reports whether the binding lapsed strictly before now.
func (b ChannelBinding) Expired(now time.Time) bool {
	return b.ExpiresAt.Before(now)
}

// UserChannelMap holds every conversation -> pool number binding of a single user.
// Numbers are unique across entries: a number is only handed out when no entry
// references it.
type UserChannelMap struct {
	Entries map[string]ChannelBinding
}

// NewUserChannelMap returns an empty map.
func NewUserChannelMap() *UserChannelMap {
	return &UserChannelMap{Entries: make(map[string]ChannelBinding)}
}

// Binding returns the binding for conversationID, if any.
func (m *UserChannelMap) Binding(conversationID string) (ChannelBinding, bool) {
	b, ok := m.Entries[conversationID]
	return b, ok
}

// Bind creates or replaces the binding for conversationID. expiresAt is kept at
// millisecond precision, the resolution it is stored with.
func (m *UserChannelMap) Bind(conversationID, number string, expiresAt time.Time) {
	if m.Entries == nil {
		m.Entries = make(map[string]ChannelBinding)
	}
	m.Entries[conversationID] = ChannelBinding{Number: number, ExpiresAt: toMillis(expiresAt)}
}

// Refresh moves the expiry of an existing binding. It reports false when the
// conversation has no binding.
func (m *UserChannelMap) Refresh(conversationID string, expiresAt time.Time) bool {
	b, ok := m.Entries[conversationID]
	if !ok {
		return false
	}
	b.ExpiresAt = toMillis(expiresAt)
	m.Entries[conversationID] = b
	return true
}

// toMillis drops sub-millisecond precision and the monotonic reading.
func toMillis(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli())
}

// ReclaimExpired removes every expired binding except the one for keep, which is
// in use by the caller. It returns the removed conversation IDs in sorted order.
func (m *UserChannelMap) ReclaimExpired(now time.Time, keep string) []string {
	var removed []string
	for conversationID, b := range m.Entries {
		if conversationID == keep {
			continue
		}
		if b.Expired(now) {
			delete(m.Entries, conversationID)
			removed = append(removed, conversationID)
		}
	}
	sort.Strings(removed)
	return removed
}

// InUse reports whether any entry references number.
func (m *UserChannelMap) InUse(number string) bool {
	for _, b := range m.Entries {
		if b.Number == number {
			return true
		}
	}
	return false
}

// ConversationFor returns the conversation currently claiming number. Should
// several entries claim it, the one expiring last wins, then the lowest ID.
func (m *UserChannelMap) ConversationFor(number string) (string, bool) {
	var (
		found  string
		latest time.Time
		ok     bool
	)
	for conversationID, b := range m.Entries {
		if b.Number != number {
			continue
		}
		if !ok || b.ExpiresAt.After(latest) || (b.ExpiresAt.Equal(latest) && conversationID < found) {
			found, latest, ok = conversationID, b.ExpiresAt, true
		}
	}
	return found, ok
}

// Len returns the number of bindings.
func (m *UserChannelMap) Len() int {
	return len(m.Entries)
}

type wireBinding struct {
	Phone   string `json:"phone"`
	Expires int64  `json:"expires"`
}

type wireChannelMap struct {
	Version int                    `json:"version"`
	Entries map[string]wireBinding `json:"entries"`
}

// EncodeChannelMap serializes m into the versioned JSON envelope. Expiry
// timestamps are epoch milliseconds.
func EncodeChannelMap(m *UserChannelMap) ([]byte, error) {
	w := wireChannelMap{Version: ChannelMapVersion, Entries: make(map[string]wireBinding, m.Len())}
	for conversationID, b := range m.Entries {
		w.Entries[conversationID] = wireBinding{Phone: b.Number, Expires: b.ExpiresAt.UnixMilli()}
	}
	return json.Marshal(w)
}

// DecodeChannelMap parses a stored channel map. Both the versioned envelope and
// the bare {"<conversation>": {"phone", "expires"}} form are accepted.
func DecodeChannelMap(data []byte) (*UserChannelMap, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode channel map: %w", err)
	}

	entries := make(map[string]wireBinding)
	if rawVersion, ok := probe["version"]; ok && isJSONNumber(rawVersion) {
		var w wireChannelMap
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode channel map: %w", err)
		}
		if w.Version != ChannelMapVersion {
			return nil, fmt.Errorf("%w: channel map version %d", ErrUnsupportedVersion, w.Version)
		}
		if w.Entries != nil {
			entries = w.Entries
		}
	} else if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode legacy channel map: %w", err)
	}

	m := NewUserChannelMap()
	for conversationID, b := range entries {
		if b.Phone == "" {
			return nil, fmt.Errorf("decode channel map: conversation %q has no number", conversationID)
		}
		m.Entries[conversationID] = ChannelBinding{Number: b.Phone, ExpiresAt: time.UnixMilli(b.Expires)}
	}
	return m, nil
}

func isJSONNumber(raw json.RawMessage) bool {
	var n json.Number
	return json.Unmarshal(raw, &n) == nil
}
