package agentapi_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley"
	"github.com/parleyhq/parley/agentapi"
)

// askResponse is a helper to build framed streaming responses for tests.
type askResponse struct {
	frames []askFrame
}

type askFrame struct {
	kind string
	data string
}

func (a askResponse) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, f := range a.frames {
			if f.data == "" {
				fmt.Fprintf(w, "event: %s\n\n", f.kind)
			} else {
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", f.kind, f.data)
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}

// answerResponse returns a complete streamed answer with sources, a
// citation, routing metadata, and a final end frame.
func answerResponse() askResponse {
	return askResponse{frames: []askFrame{
		{"start", `{"turn_id":"t1","session_id":"s1"}`},
		{"metadata", `{"model":"m1","routing":{"route":"kb_search","confidence":0.92}}`},
		{"chunk", `{"text":"Hello"}`},
		{"chunk", `{"text":" world"}`},
		{"sources", `{"sources":[{"title":"Doc","url":"https://a.example/doc","data_source_type":"kb"}]}`},
		{"citation", `{"source":{"title":"Doc","url":"https://a.example/doc"}}`},
		{"end", `{"metadata":{"tokens_used":42}}`},
	}}
}

func streamFromServer(t *testing.T, handler http.HandlerFunc, opts ...agentapi.Option) parley.Stream {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := agentapi.New(srv.URL, opts...)
	stream, err := client.Ask(context.Background(), parley.Request{Input: "Hi"})
	require.NoError(t, err)
	t.Cleanup(func() { stream.Close() })
	return stream
}

func collectEvents(t *testing.T, s parley.Stream) []parley.Event {
	t.Helper()
	var events []parley.Event
	for {
		evt, err := s.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		events = append(events, evt)
	}
	return events
}

func TestStream_FullAnswer(t *testing.T) {
	t.Parallel()
	stream := streamFromServer(t, answerResponse().handler())
	events := collectEvents(t, stream)

	require.Len(t, events, 8)
	assert.Equal(t, parley.StartEvent{TurnID: "t1", SessionID: "s1"}, events[0])
	assert.IsType(t, parley.MetadataEvent{}, events[1])
	assert.Equal(t, parley.RoutingEvent{Route: "kb_search", Confidence: 0.92}, events[2])
	assert.Equal(t, parley.ChunkEvent{Text: "Hello"}, events[3])
	assert.Equal(t, parley.ChunkEvent{Text: " world"}, events[4])
	assert.IsType(t, parley.SourcesEvent{}, events[5])
	assert.IsType(t, parley.CitationEvent{}, events[6])

	end, ok := events[7].(parley.EndEvent)
	require.True(t, ok)
	assert.Equal(t, float64(42), end.Metadata["tokens_used"])

	assert.Equal(t, parley.StreamStateComplete, stream.State())
}

func TestStream_ErrorFrame(t *testing.T) {
	t.Parallel()
	resp := askResponse{frames: []askFrame{
		{"start", `{"turn_id":"t1"}`},
		{"chunk", `{"text":"partial"}`},
		{"error", `{"message":"backend unavailable"}`},
	}}
	stream := streamFromServer(t, resp.handler())
	events := collectEvents(t, stream)

	require.Len(t, events, 3)
	assert.Equal(t, parley.ErrorEvent{Message: "backend unavailable"}, events[2])
}

func TestStream_MalformedFrameSkipped(t *testing.T) {
	t.Parallel()
	resp := askResponse{frames: []askFrame{
		{"start", `{"turn_id":"t1"}`},
		{"chunk", `{"broken`},
		{"chunk", `{"text":"after"}`},
		{"end", ""},
	}}
	stream := streamFromServer(t, resp.handler())
	events := collectEvents(t, stream)

	require.Len(t, events, 3)
	assert.Equal(t, parley.ChunkEvent{Text: "after"}, events[1])
	assert.Equal(t, parley.EndEvent{}, events[2])
}

func TestStream_UnknownKindForwarded(t *testing.T) {
	t.Parallel()
	resp := askResponse{frames: []askFrame{
		{"heartbeat", `{"n":1}`},
		{"end", ""},
	}}
	stream := streamFromServer(t, resp.handler())
	events := collectEvents(t, stream)

	require.Len(t, events, 2)
	assert.Equal(t, parley.UnknownEvent{Kind: "heartbeat", Payload: `{"n":1}`}, events[0])
}

func TestStream_UnterminatedTrailingFrameFlushed(t *testing.T) {
	t.Parallel()
	// Connection drops before the final blank line; the buffered frame
	// still decodes.
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "event: chunk\ndata: {\"text\":\"tail\"}\n")
	}
	stream := streamFromServer(t, handler)
	events := collectEvents(t, stream)

	require.Len(t, events, 1)
	assert.Equal(t, parley.ChunkEvent{Text: "tail"}, events[0])
}

func TestStream_StateTransitions(t *testing.T) {
	t.Parallel()
	stream := streamFromServer(t, answerResponse().handler())
	assert.Equal(t, parley.StreamStateNew, stream.State())

	_, err := stream.Next()
	require.NoError(t, err)
	assert.Equal(t, parley.StreamStateStreaming, stream.State())

	collectEvents(t, stream)
	assert.Equal(t, parley.StreamStateComplete, stream.State())

	// Complete survives Close.
	require.NoError(t, stream.Close())
	assert.Equal(t, parley.StreamStateComplete, stream.State())
}

func TestStream_NextAfterClose(t *testing.T) {
	t.Parallel()
	stream := streamFromServer(t, answerResponse().handler())
	require.NoError(t, stream.Close())
	assert.Equal(t, parley.StreamStateClosed, stream.State())

	_, err := stream.Next()
	assert.ErrorIs(t, err, parley.ErrStreamClosed)
}

func TestStream_CloseIdempotent(t *testing.T) {
	t.Parallel()
	stream := streamFromServer(t, answerResponse().handler())
	first := stream.Close()
	assert.Equal(t, first, stream.Close())
	assert.Equal(t, first, stream.Close())
}

func TestStream_IdleTimeout(t *testing.T) {
	t.Parallel()
	stall := make(chan struct{})
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "event: start\ndata: {\"turn_id\":\"t1\"}\n\n")
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}
		select {
		case <-stall:
		case <-r.Context().Done():
		}
	}
	t.Cleanup(func() { close(stall) })

	stream := streamFromServer(t, handler, agentapi.WithIdleTimeout(50*time.Millisecond))

	evt, err := stream.Next()
	require.NoError(t, err)
	assert.IsType(t, parley.StartEvent{}, evt)

	_, err = stream.Next()
	assert.ErrorIs(t, err, parley.ErrIdleTimeout)
	assert.Equal(t, parley.StreamStateError, stream.State())

	// The terminal error is sticky.
	_, err = stream.Next()
	assert.ErrorIs(t, err, parley.ErrIdleTimeout)
}

func TestStream_ContextCancellation(t *testing.T) {
	t.Parallel()
	stall := make(chan struct{})
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "event: start\ndata: {\"turn_id\":\"t1\"}\n\n")
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}
		select {
		case <-stall:
		case <-r.Context().Done():
		}
	}
	t.Cleanup(func() { close(stall) })

	srv := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	client := agentapi.New(srv.URL, agentapi.WithIdleTimeout(0))
	stream, err := client.Ask(ctx, parley.Request{Input: "Hi"})
	require.NoError(t, err)
	t.Cleanup(func() { stream.Close() })

	_, err = stream.Next()
	require.NoError(t, err)

	cancel()
	_, err = stream.Next()
	assert.ErrorIs(t, err, context.Canceled)
}
