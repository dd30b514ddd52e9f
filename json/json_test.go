package json_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley"
	"github.com/parleyhq/parley/json"
)

func sampleConversation() parley.Conversation {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return parley.Conversation{
		ID:        "c1",
		SessionID: "s1",
		CreatedAt: t0,
		UpdatedAt: t0.Add(time.Minute),
		Entries: []parley.Entry{
			{
				Input:     "what is the refund policy?",
				Timestamp: t0,
				Turn: parley.Turn{
					ID:        "t1",
					SessionID: "s1",
					Status:    parley.StatusCompleted,
					Content:   "Full refunds within 30 days.",
					Sources: []parley.Source{
						{Title: "Refund policy", URL: "https://kb.example/refunds", DataSourceType: "kb"},
					},
					Metadata: map[string]any{"model": "m1"},
					Routing:  &parley.RoutingInfo{Route: "kb_search", Confidence: 0.92},
					Stats: parley.Stats{
						StartedAt:      t0,
						Elapsed:        2 * time.Second,
						Characters:     28,
						Words:          5,
						WordsPerSecond: 2,
						TokensUsed:     42,
					},
				},
			},
			{
				Input:     "and for digital goods?",
				Timestamp: t0.Add(time.Minute),
				Turn: parley.Turn{
					ID:         "t2",
					SessionID:  "s1",
					Status:     parley.StatusFailed,
					Content:    "Digital goods are",
					ErrMessage: "backend unavailable",
				},
			},
		},
	}
}

func TestConversation_RoundTrip(t *testing.T) {
	t.Parallel()
	want := sampleConversation()

	data, err := json.MarshalConversation(want)
	require.NoError(t, err)

	got, err := json.UnmarshalConversation(data)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestUnmarshalConversation_UnsupportedVersion(t *testing.T) {
	t.Parallel()
	_, err := json.UnmarshalConversation([]byte(`{"version":2,"id":"c1"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported envelope version")
}

func TestUnmarshalConversation_UnknownStatus(t *testing.T) {
	t.Parallel()
	data := []byte(`{"version":1,"id":"c1","entries":[{"input":"x","turn":{"status":"exploded"}}]}`)
	_, err := json.UnmarshalConversation(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-terminal turn status")
}

func TestUnmarshalConversation_RejectsLiveStatuses(t *testing.T) {
	t.Parallel()
	// Only settled turns are ever persisted. A pending or streaming status
	// in a file must not come back as a live turn.
	for _, status := range []parley.Status{parley.StatusPending, parley.StatusStreaming} {
		data := []byte(`{"version":1,"id":"c1","entries":[{"input":"x","turn":{"status":"` + string(status) + `"}}]}`)
		_, err := json.UnmarshalConversation(data)
		require.Error(t, err, "status %s", status)
		assert.Contains(t, err.Error(), "non-terminal turn status")
	}
}

func TestMarshalConversation_RejectsUnknownStatus(t *testing.T) {
	t.Parallel()
	c := parley.Conversation{
		ID:      "c1",
		Entries: []parley.Entry{{Turn: parley.Turn{Status: "exploded"}}},
	}
	_, err := json.MarshalConversation(c)
	assert.Error(t, err)
}

func TestMarshalConversation_RejectsLiveStatuses(t *testing.T) {
	t.Parallel()
	for _, status := range []parley.Status{parley.StatusPending, parley.StatusStreaming} {
		c := parley.Conversation{
			ID:      "c1",
			Entries: []parley.Entry{{Turn: parley.Turn{Status: status}}},
		}
		_, err := json.MarshalConversation(c)
		assert.Error(t, err, "status %s", status)
	}
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "history", "c1.json")
	want := sampleConversation()

	require.NoError(t, json.Save(path, want))

	// No temp artifact survives a successful save.
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	got, err := json.Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSave_Overwrites(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "c1.json")
	c := sampleConversation()
	require.NoError(t, json.Save(path, c))

	c.Entries = c.Entries[:1]
	require.NoError(t, json.Save(path, c))

	got, err := json.Load(path)
	require.NoError(t, err)
	assert.Len(t, got.Entries, 1)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := json.Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
