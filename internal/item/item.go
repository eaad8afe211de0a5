package item

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Item is a single feed message as a schema-less attribute map. The engine only
// interprets a handful of well-known fields (id, chat_id, date, edit_date); every
// other attribute is opaque payload carried through to storage unchanged.
type Item map[string]any

// Well-known attribute names.
const (
	FieldID               = "id"
	FieldChatID           = "chat_id"
	FieldDate             = "date"
	FieldEditDate         = "edit_date"
	FieldTrackerRetrieved = "tracker_retrieved"
)

// ID returns the item's id within its chat.
func (i Item) ID() (int64, bool) {
	return i.Int64(FieldID)
}

// ChatID returns the chat the item belongs to. Raw feed payloads carry the chat
// under "channel_id"; projected items carry "chat_id". Both are accepted.
func (i Item) ChatID() (int64, bool) {
	if id, ok := i.Int64(FieldChatID); ok {
		return id, true
	}

	return i.Int64("channel_id")
}

// Date returns the publish timestamp.
func (i Item) Date() (time.Time, bool) {
	return i.timeField(FieldDate)
}

// EditDate returns the last edit timestamp, if any.
func (i Item) EditDate() (time.Time, bool) {
	return i.timeField(FieldEditDate)
}

// Int64 extracts an integer attribute, tolerating the numeric shapes a JSON
// decoder produces.
func (i Item) Int64(key string) (int64, bool) {
	switch v := i[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()

		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)

		return n, err == nil
	default:
		return 0, false
	}
}

// String extracts a string attribute.
func (i Item) String(key string) (string, bool) {
	s, ok := i[key].(string)

	return s, ok
}

// Clone returns a shallow copy of the item. Nested values are shared; callers
// that mutate nested values must deep-copy them first.
func (i Item) Clone() Item {
	out := make(Item, len(i))
	for k, v := range i {
		out[k] = v
	}

	return out
}

func (i Item) timeField(key string) (time.Time, bool) {
	s, ok := i[key].(string)
	if !ok || s == "" {
		return time.Time{}, false
	}

	t, err := ParseTime(s)
	if err != nil {
		return time.Time{}, false
	}

	return t, true
}

// timeLayouts are the ISO-8601 shapes the feed produces, with and without
// fractional seconds and zone offset.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseTime parses an ISO-8601 timestamp attribute.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FormatTime renders a timestamp the way it is persisted.
func FormatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

// IdentityKey is the mutable-snapshot key for an item: one per (chat, id).
func IdentityKey(chatID, itemID int64) string {
	return fmt.Sprintf("%d_%d", chatID, itemID)
}

// BucketKey is the append-only historical key for an observation of an item.
// The bucket encodes elapsed observation intervals since publication, rounded
// to one decimal, so successive revisions of the same item never collide while
// re-observations within the same interval overwrite each other.
func BucketKey(chatID, itemID int64, published, observed time.Time, interval time.Duration) string {
	bucket := observed.Sub(published).Seconds() / interval.Seconds()
	bucket = math.Round(bucket*10) / 10

	return fmt.Sprintf("%d_%d_%s", chatID, itemID, strconv.FormatFloat(bucket, 'f', 1, 64))
}
