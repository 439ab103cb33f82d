// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/privgpt-studio/privgpt-tui/internal/api"
	"github.com/privgpt-studio/privgpt-tui/internal/model"
)

// fakeReconciler records reconcile calls.
type fakeReconciler struct {
	mu  sync.Mutex
	ids []string
}

func (f *fakeReconciler) Reconcile(_ context.Context, newID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, newID)
	return nil
}

func (f *fakeReconciler) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ids...)
}

// sseHandler writes stream frames with flushing.
func sseHandler(write func(w http.ResponseWriter, flush func())) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		flush := func() {
			if flusher != nil {
				flusher.Flush()
			}
		}
		write(w, flush)
	}
}

func frame(format string, args ...any) string {
	return "data: " + fmt.Sprintf(format, args...) + "\n\n"
}

func newStreamFixture(t *testing.T, handler http.Handler) (*StreamClient, *model.Conversation, *fakeReconciler) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	apiClient := api.NewClient(srv.URL).
		WithHTTPClient(srv.Client()).
		WithStreamClient(srv.Client())
	conv := model.NewConversationWithWelcome()
	rec := &fakeReconciler{}
	return NewStreamClient(apiClient, conv, rec), conv, rec
}

func waitSettled(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("exchange did not settle")
	}
}

// =============================================================================
// HAPPY PATH
// =============================================================================

func TestStream_HappyPath(t *testing.T) {
	handler := sseHandler(func(w http.ResponseWriter, flush func()) {
		io.WriteString(w, frame(`{"type": "session_info", "session_id": "1"}`))
		flush()
		io.WriteString(w, frame(`{"type": "chunk", "text": "Hi"}`))
		flush()
		io.WriteString(w, frame(`{"type": "chunk", "text": " there"}`))
		flush()
		io.WriteString(w, frame(`{"type": "complete", "session_id": "abc", "timestamp": "2025-06-01T12:00:00.500000", "latency": 420}`))
		flush()
	})

	sc, conv, rec := newStreamFixture(t, handler)

	h, err := sc.Send(context.Background(), Request{
		Text:      "hello",
		Model:     model.Selection{Name: "phi3", Type: model.ModelLocal},
		SessionID: model.DraftSessionID,
	})
	require.NoError(t, err)
	waitSettled(t, h)

	require.Equal(t, StateCompleted, h.State())
	require.NoError(t, h.Err())
	require.Equal(t, "abc", h.FinalSessionID())
	require.Equal(t, 420*time.Millisecond, h.Latency())

	msg := conv.Get(h.MessageID())
	require.NotNil(t, msg)
	require.Equal(t, "Hi there", msg.Content)
	require.False(t, msg.IsStreaming)
	require.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 500000000, time.UTC), msg.Timestamp.UTC())

	require.Equal(t, []string{"abc"}, rec.calls())

	// Transcript: welcome, user, assistant.
	snap := conv.Snapshot()
	require.Len(t, snap, 3)
	require.Equal(t, model.RoleUser, snap[1].Role)
	require.Equal(t, "hello", snap[1].Content)
}

func TestStream_NoReconcileForConfirmedSession(t *testing.T) {
	handler := sseHandler(func(w http.ResponseWriter, flush func()) {
		io.WriteString(w, frame(`{"type": "chunk", "text": "ok"}`))
		io.WriteString(w, frame(`{"type": "complete", "session_id": "abc", "timestamp": "2025-06-01T12:00:00", "latency": 5}`))
	})

	sc, _, rec := newStreamFixture(t, handler)

	h, err := sc.Send(context.Background(), Request{
		Text:      "hello again",
		Model:     model.Selection{Name: "gemini", Type: model.ModelCloud},
		SessionID: "abc",
	})
	require.NoError(t, err)
	waitSettled(t, h)

	require.Equal(t, StateCompleted, h.State())
	require.Empty(t, rec.calls(), "confirmed sessions never reconcile")
}

func TestStream_MalformedFramesIgnored(t *testing.T) {
	handler := sseHandler(func(w http.ResponseWriter, flush func()) {
		io.WriteString(w, frame(`{"type": "chunk", "text": "a"}`))
		io.WriteString(w, "data: {broken json\n\n")
		io.WriteString(w, "noise line\n")
		io.WriteString(w, frame(`{"type": "chunk", "text": "b"}`))
		io.WriteString(w, frame(`{"type": "complete", "session_id": "abc", "timestamp": "2025-06-01T12:00:00", "latency": 1}`))
	})

	sc, conv, _ := newStreamFixture(t, handler)

	h, err := sc.Send(context.Background(), Request{Text: "x", SessionID: "abc"})
	require.NoError(t, err)
	waitSettled(t, h)

	require.Equal(t, StateCompleted, h.State())
	require.Equal(t, "ab", conv.Get(h.MessageID()).Content)
}

func TestStream_EOFWithoutCompleteKeepsContent(t *testing.T) {
	handler := sseHandler(func(w http.ResponseWriter, flush func()) {
		io.WriteString(w, frame(`{"type": "chunk", "text": "partial answer"}`))
	})

	sc, conv, rec := newStreamFixture(t, handler)

	h, err := sc.Send(context.Background(), Request{Text: "x", SessionID: "abc"})
	require.NoError(t, err)
	waitSettled(t, h)

	require.Equal(t, StateCompleted, h.State())
	require.Equal(t, "partial answer", conv.Get(h.MessageID()).Content)
	require.Empty(t, rec.calls(), "no complete event, nothing to reconcile")
}

// =============================================================================
// TYPING INDICATOR
// =============================================================================

func TestStream_TypingClearedExactlyOnce(t *testing.T) {
	handler := sseHandler(func(w http.ResponseWriter, flush func()) {
		io.WriteString(w, frame(`{"type": "chunk", "text": "a"}`))
		flush()
		io.WriteString(w, frame(`{"type": "chunk", "text": "b"}`))
		flush()
		io.WriteString(w, frame(`{"type": "complete", "session_id": "abc", "timestamp": "2025-06-01T12:00:00", "latency": 1}`))
	})

	sc, _, _ := newStreamFixture(t, handler)

	var cleared atomic.Int32
	sc.OnTyping = func(active bool) {
		if !active {
			cleared.Add(1)
		}
	}

	h, err := sc.Send(context.Background(), Request{Text: "x", SessionID: "abc"})
	require.NoError(t, err)
	waitSettled(t, h)

	require.Equal(t, int32(1), cleared.Load(), "typing cleared once, at the first chunk")
}

// =============================================================================
// ABORT
// =============================================================================

func TestStream_AbortAppendsMarkerAndWinsRace(t *testing.T) {
	aborted := make(chan struct{})
	handler := sseHandler(func(w http.ResponseWriter, flush func()) {
		io.WriteString(w, frame(`{"type": "chunk", "text": "Par"}`))
		flush()
		// Hold the stream open until the test has aborted, then try to
		// push more frames into the settled exchange.
		<-aborted
		io.WriteString(w, frame(`{"type": "chunk", "text": "is"}`))
		io.WriteString(w, frame(`{"type": "complete", "session_id": "late", "timestamp": "2025-06-01T12:00:00", "latency": 1}`))
		flush()
	})

	sc, conv, rec := newStreamFixture(t, handler)

	h, err := sc.Send(context.Background(), Request{Text: "capital of France?", SessionID: model.DraftSessionID})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return h.Content() == "Par"
	}, 5*time.Second, 5*time.Millisecond)

	h.Abort()
	close(aborted)
	waitSettled(t, h)

	require.Equal(t, StateAborted, h.State())
	want := "Par" + CancelledMarker
	require.Equal(t, want, conv.Get(h.MessageID()).Content)

	// Give the late frames time to arrive; they must change nothing.
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, want, conv.Get(h.MessageID()).Content)
	require.Equal(t, StateAborted, h.State())
	require.Empty(t, rec.calls(), "aborted exchanges never reconcile")
}

func TestStream_AbortBeforeAnyChunk(t *testing.T) {
	release := make(chan struct{})
	handler := sseHandler(func(w http.ResponseWriter, flush func()) {
		flush()
		<-release
	})

	sc, conv, _ := newStreamFixture(t, handler)
	t.Cleanup(func() { close(release) })

	h, err := sc.Send(context.Background(), Request{Text: "x", SessionID: model.DraftSessionID})
	require.NoError(t, err)

	h.Abort()
	waitSettled(t, h)

	require.Equal(t, StateAborted, h.State())
	require.Equal(t, CancelledMarker, conv.Get(h.MessageID()).Content)
}

func TestStream_AbortMarkerSurvivesConcurrentChunk(t *testing.T) {
	// Races a chunk application against Abort. Whichever order the
	// scheduler picks, an aborted exchange's message must end with the
	// cancellation marker; a chunk applied concurrently may not rewrite
	// the transcript without it.
	for i := 0; i < 500; i++ {
		conv := model.NewConversation()
		sc := &StreamClient{conv: conv}
		assistant := conv.AppendAssistantMessage()
		h := &Handle{
			client:    sc,
			cancel:    func() {},
			state:     StateStreaming,
			messageID: assistant.ID,
			typing:    true,
			done:      make(chan struct{}),
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.apply(api.StreamEvent{Type: api.EventChunk, Text: "partial"})
		}()
		go func() {
			defer wg.Done()
			h.Abort()
		}()
		wg.Wait()

		require.Equal(t, StateAborted, h.State())
		content := conv.Get(assistant.ID).Content
		require.True(t, strings.HasSuffix(content, CancelledMarker),
			"iteration %d: content %q lost the cancellation marker", i, content)
	}
}

func TestStream_AbortAfterSettledIsNoOp(t *testing.T) {
	handler := sseHandler(func(w http.ResponseWriter, flush func()) {
		io.WriteString(w, frame(`{"type": "chunk", "text": "done"}`))
		io.WriteString(w, frame(`{"type": "complete", "session_id": "abc", "timestamp": "2025-06-01T12:00:00", "latency": 1}`))
	})

	sc, conv, _ := newStreamFixture(t, handler)

	h, err := sc.Send(context.Background(), Request{Text: "x", SessionID: "abc"})
	require.NoError(t, err)
	waitSettled(t, h)

	h.Abort()

	require.Equal(t, StateCompleted, h.State())
	require.Equal(t, "done", conv.Get(h.MessageID()).Content)
}

// =============================================================================
// ERRORS
// =============================================================================

func TestStream_ServerErrorReplacesContentVerbatim(t *testing.T) {
	handler := sseHandler(func(w http.ResponseWriter, flush func()) {
		io.WriteString(w, frame(`{"type": "chunk", "text": "half an ans"}`))
		io.WriteString(w, frame(`{"type": "error", "message": "Error: model exploded"}`))
	})

	sc, conv, rec := newStreamFixture(t, handler)

	h, err := sc.Send(context.Background(), Request{Text: "x", SessionID: model.DraftSessionID})
	require.NoError(t, err)
	waitSettled(t, h)

	require.Equal(t, StateErrored, h.State())
	require.NoError(t, h.Err(), "server error events are not transport errors")
	require.Equal(t, "Error: model exploded", h.ServerMessage())
	require.Equal(t, "Error: model exploded", conv.Get(h.MessageID()).Content)
	require.Empty(t, rec.calls())
}

func TestStream_TransportFailureSetsFixedText(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on

	apiClient := api.NewClient(srv.URL)
	conv := model.NewConversationWithWelcome()
	rec := &fakeReconciler{}
	sc := NewStreamClient(apiClient, conv, rec)

	var cleared atomic.Int32
	sc.OnTyping = func(active bool) {
		if !active {
			cleared.Add(1)
		}
	}

	h, err := sc.Send(context.Background(), Request{Text: "x", SessionID: model.DraftSessionID})
	require.NoError(t, err, "transport failures settle the handle, they do not fail Send")
	waitSettled(t, h)

	require.Equal(t, StateErrored, h.State())
	require.Error(t, h.Err())
	require.Equal(t, TransportFailureText, conv.Get(h.MessageID()).Content)
	require.Equal(t, int32(1), cleared.Load())
}

// =============================================================================
// PRECONDITIONS
// =============================================================================

func TestStream_EmptyTextRejected(t *testing.T) {
	sc, conv, _ := newStreamFixture(t, http.NotFoundHandler())

	_, err := sc.Send(context.Background(), Request{Text: "   "})
	require.ErrorIs(t, err, ErrEmptyMessage)
	require.Equal(t, 1, conv.Len(), "nothing appended on rejection")
}

func TestStream_BusyWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	handler := sseHandler(func(w http.ResponseWriter, flush func()) {
		flush()
		<-release
	})

	sc, _, _ := newStreamFixture(t, handler)
	t.Cleanup(func() { close(release) })

	h, err := sc.Send(context.Background(), Request{Text: "first", SessionID: "abc"})
	require.NoError(t, err)

	_, err = sc.Send(context.Background(), Request{Text: "second", SessionID: "abc"})
	require.ErrorIs(t, err, ErrBusy)

	h.Abort()
	waitSettled(t, h)

	// Settled handle frees the slot.
	h2, err := sc.Send(context.Background(), Request{Text: "third", SessionID: "abc"})
	require.NoError(t, err)
	h2.Abort()
}

// =============================================================================
// STATE STRINGS
// =============================================================================

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateSending, "sending"},
		{StateStreaming, "streaming"},
		{StateCompleted, "completed"},
		{StateErrored, "errored"},
		{StateAborted, "aborted"},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, tc.state.String())
		require.Equal(t, strings.Contains("completed errored aborted", tc.want), tc.state.IsTerminal())
	}
}
