package item

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItem_Accessors(t *testing.T) {
	it := Item{
		"id":         float64(42),
		"channel_id": json.Number("1234567"),
		"date":       "2024-05-01T10:30:00+00:00",
		"views":      float64(9000),
	}

	id, ok := it.ID()
	require.True(t, ok)
	assert.Equal(t, int64(42), id)

	chatID, ok := it.ChatID()
	require.True(t, ok)
	assert.Equal(t, int64(1234567), chatID)

	date, ok := it.Date()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC), date.UTC())

	_, ok = it.EditDate()
	assert.False(t, ok)
}

func TestItem_ChatIDPrefersCanonicalField(t *testing.T) {
	it := Item{"chat_id": float64(1), "channel_id": float64(2)}

	chatID, ok := it.ChatID()
	require.True(t, ok)
	assert.Equal(t, int64(1), chatID)
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "rfc3339", input: "2024-05-01T10:30:00Z"},
		{name: "offset", input: "2024-05-01T10:30:00+02:00"},
		{name: "fractional no zone", input: "2024-05-01T10:30:00.123456"},
		{name: "no zone", input: "2024-05-01T10:30:00"},
		{name: "garbage", input: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTime(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBucketKey(t *testing.T) {
	published := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		observed time.Time
		want     string
	}{
		{
			name:     "exact interval",
			observed: published.Add(5 * time.Minute),
			want:     "7_99_1.0",
		},
		{
			name:     "half interval",
			observed: published.Add(150 * time.Second),
			want:     "7_99_0.5",
		},
		{
			name:     "rounded to one decimal",
			observed: published.Add(5*time.Minute + 7*time.Second),
			want:     "7_99_1.0",
		},
		{
			name:     "zero elapsed",
			observed: published,
			want:     "7_99_0.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BucketKey(7, 99, published, tt.observed, 5*time.Minute)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIdentityKey(t *testing.T) {
	assert.Equal(t, "1234_5678", IdentityKey(1234, 5678))
}

func TestDifferent(t *testing.T) {
	base := Item{
		"id":                "77",
		"views":             float64(100),
		"message":           "hello",
		"tracker_retrieved": "2024-05-01T10:00:00Z",
	}

	tests := []struct {
		name    string
		updated Item
		want    bool
	}{
		{
			name: "identical modulo volatile field",
			updated: Item{
				"id":                "77",
				"views":             float64(100),
				"message":           "hello",
				"tracker_retrieved": "2024-05-01T10:05:00Z",
			},
			want: false,
		},
		{
			name: "counter changed",
			updated: Item{
				"id":                "77",
				"views":             float64(150),
				"message":           "hello",
				"tracker_retrieved": "2024-05-01T10:05:00Z",
			},
			want: true,
		},
		{
			name: "field removed",
			updated: Item{
				"id":                "77",
				"views":             float64(100),
				"tracker_retrieved": "2024-05-01T10:05:00Z",
			},
			want: true,
		},
		{
			name: "field added",
			updated: Item{
				"id":                "77",
				"views":             float64(100),
				"message":           "hello",
				"edit_date":         "2024-05-01T10:04:00Z",
				"tracker_retrieved": "2024-05-01T10:05:00Z",
			},
			want: true,
		},
		{
			name: "type coercion tolerated",
			updated: Item{
				"id":                float64(77),
				"views":             "100",
				"message":           "hello",
				"tracker_retrieved": "2024-05-01T10:05:00Z",
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Different(base, tt.updated, FieldTrackerRetrieved))
			// Symmetric: swapping sides gives the same verdict.
			assert.Equal(t, tt.want, Different(tt.updated, base, FieldTrackerRetrieved))
		})
	}
}

func TestDifferent_NestedValues(t *testing.T) {
	old := Item{"reactions": map[string]any{"👍": float64(3), "🔥": float64(1)}}
	same := Item{"reactions": map[string]any{"🔥": float64(1), "👍": float64(3)}}
	changed := Item{"reactions": map[string]any{"👍": float64(4), "🔥": float64(1)}}

	assert.False(t, Different(old, same))
	assert.True(t, Different(old, changed))
}

func TestRecords_Order(t *testing.T) {
	var recs Records
	recs.Add("a", Item{"id": float64(1)})
	recs.Add("b", Item{"id": float64(2)})
	recs.Add("c", Item{"id": float64(3)})

	assert.Equal(t, []string{"a", "b", "c"}, recs.Keys())
}
