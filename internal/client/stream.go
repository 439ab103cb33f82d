// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/privgpt-studio/privgpt-tui/internal/api"
	"github.com/privgpt-studio/privgpt-tui/internal/model"
)

// Fixed texts the transcript shows for interrupted exchanges. The wording
// is part of the product surface; stored transcripts contain it verbatim.
const (
	// CancelledMarker is appended to partial content when the user stops
	// generation.
	CancelledMarker = "\n\n[Generation stopped by user]"

	// TransportFailureText replaces the assistant message when the exchange
	// dies below the protocol (connection refused, reset, bad gateway).
	TransportFailureText = "Failed to get response from AI. Please try again."
)

var (
	// ErrEmptyMessage rejects a streamed send without text. Attachment-only
	// sends take the buffered path.
	ErrEmptyMessage = errors.New("message text is empty")

	// ErrBusy rejects a send while another exchange is still in flight.
	ErrBusy = errors.New("an exchange is already in flight")
)

// Reconciler swaps the draft session for the server-assigned ID after a
// completed exchange. *registry.Registry satisfies it.
type Reconciler interface {
	Reconcile(ctx context.Context, newID string) error
}

// Request is one outgoing chat message.
type Request struct {
	Text       string
	Model      model.Selection
	SessionID  string
	MentionIDs []string
}

// =============================================================================
// STREAM CLIENT
// =============================================================================

// StreamClient runs streamed exchanges. One exchange at a time; each Send
// returns a fresh Handle.
type StreamClient struct {
	api        *api.Client
	conv       *model.Conversation
	reconciler Reconciler

	// OnTyping is invoked with false exactly once per exchange, when the
	// first chunk arrives (or the exchange dies first). Optional.
	OnTyping func(active bool)

	mu     sync.Mutex
	active *Handle
}

// NewStreamClient creates a streaming client writing into conv.
func NewStreamClient(apiClient *api.Client, conv *model.Conversation, reconciler Reconciler) *StreamClient {
	return &StreamClient{
		api:        apiClient,
		conv:       conv,
		reconciler: reconciler,
	}
}

// Send starts a streamed exchange. The user message and an empty assistant
// message are appended before Send returns; frames are applied from a
// background goroutine until the handle settles.
func (c *StreamClient) Send(ctx context.Context, req Request) (*Handle, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.active != nil && !c.active.State().IsTerminal() {
		c.mu.Unlock()
		return nil, ErrBusy
	}

	c.conv.AppendUserMessage(req.Text)
	assistant := c.conv.AppendAssistantMessage()

	streamCtx, cancel := context.WithCancel(ctx)
	h := &Handle{
		client:            c,
		cancel:            cancel,
		state:             StateSending,
		messageID:         assistant.ID,
		sessionID:         req.SessionID,
		startedUnderDraft: req.SessionID == model.DraftSessionID || req.SessionID == "",
		typing:            true,
		done:              make(chan struct{}),
	}
	c.active = h
	c.mu.Unlock()

	c.notifyTyping(true)

	go h.run(streamCtx, req)
	return h, nil
}

func (c *StreamClient) notifyTyping(active bool) {
	if c.OnTyping != nil {
		c.OnTyping(active)
	}
}

// =============================================================================
// HANDLE
// =============================================================================

// Handle is one in-flight streamed exchange. Frame application, the abort
// path, and the transcript writes they produce all run under one mutex, so
// an abort that wins the race is never overwritten by a late chunk. The
// conversation's own lock is a leaf below h.mu; only the typing callback
// and reconciliation run outside it.
type Handle struct {
	client *StreamClient
	cancel context.CancelFunc

	mu                sync.Mutex
	state             State
	messageID         string
	sessionID         string
	startedUnderDraft bool
	typing            bool
	buf               strings.Builder
	pendingSessionID  string
	finalSessionID    string
	completedAt       time.Time
	latency           time.Duration
	serverMessage     string
	err               error

	done chan struct{}
}

// State returns the current lifecycle phase.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// MessageID returns the ID of the assistant message this exchange writes.
func (h *Handle) MessageID() string {
	return h.messageID
}

// Content returns the accumulated assistant content so far.
func (h *Handle) Content() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buf.String()
}

// FinalSessionID returns the server-assigned session ID, set once the
// exchange completed.
func (h *Handle) FinalSessionID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.finalSessionID
}

// Latency returns the server-reported generation latency, valid after
// completion.
func (h *Handle) Latency() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latency
}

// Err returns the transport error that ended the exchange, if any. Server
// error events are not transport errors; see ServerMessage.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// ServerMessage returns the error text a server error event carried.
func (h *Handle) ServerMessage() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.serverMessage
}

// Done returns a channel closed when the exchange settles.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Abort stops generation. Partial content stays in the transcript with the
// cancellation marker appended. Aborting a settled exchange is a no-op.
func (h *Handle) Abort() {
	h.mu.Lock()
	if h.state.IsTerminal() {
		h.mu.Unlock()
		return
	}
	h.cancel()
	h.buf.WriteString(CancelledMarker)
	h.client.conv.SetContent(h.messageID, h.buf.String())
	h.client.conv.FinishStreaming(h.messageID)
	clearTyping := h.settleLocked(StateAborted)
	h.mu.Unlock()

	if clearTyping {
		h.client.notifyTyping(false)
	}
}

// =============================================================================
// STREAM PUMP
// =============================================================================

// run opens the stream and applies frames until a terminal event, EOF, or
// a transport error. It is the only writer besides Abort.
func (h *Handle) run(ctx context.Context, req Request) {
	stream, err := h.client.api.OpenStream(ctx, api.ChatRequest{
		Message:    req.Text,
		ModelType:  req.Model.Type,
		ModelName:  req.Model.Name,
		SessionID:  req.SessionID,
		MentionIDs: req.MentionIDs,
	})
	if err != nil {
		h.failTransport(err)
		return
	}
	defer stream.Close()

	h.mu.Lock()
	if h.state.IsTerminal() {
		h.mu.Unlock()
		return
	}
	h.state = StateStreaming
	h.mu.Unlock()

	for {
		ev, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				h.finishWithoutTerminalEvent()
			} else {
				h.failTransport(err)
			}
			return
		}

		if done := h.apply(ev); done {
			return
		}
	}
}

// apply folds one frame into the exchange. Returns true when the exchange
// settled. Frames arriving after a terminal state are dropped.
func (h *Handle) apply(ev api.StreamEvent) bool {
	h.mu.Lock()

	if h.state.IsTerminal() {
		h.mu.Unlock()
		return true
	}

	switch ev.Type {
	case api.EventSessionInfo:
		if ev.SessionID != "" && ev.SessionID != h.sessionID {
			h.pendingSessionID = ev.SessionID
		}
		h.mu.Unlock()
		return false

	case api.EventChunk:
		h.buf.WriteString(ev.Text)
		h.client.conv.SetContent(h.messageID, h.buf.String())
		clearTyping := h.typing
		h.typing = false
		h.mu.Unlock()

		if clearTyping {
			h.client.notifyTyping(false)
		}
		return false

	case api.EventComplete:
		h.finalSessionID = ev.SessionID
		h.completedAt = api.ParseEventTime(ev.Timestamp)
		h.latency = time.Duration(ev.Latency) * time.Millisecond
		reconcile := h.startedUnderDraft && ev.SessionID != "" && ev.SessionID != model.DraftSessionID
		h.client.conv.SetContent(h.messageID, h.buf.String())
		h.client.conv.SetTimestamp(h.messageID, h.completedAt)
		h.client.conv.FinishStreaming(h.messageID)
		clearTyping := h.settleLocked(StateCompleted)
		h.mu.Unlock()

		if clearTyping {
			h.client.notifyTyping(false)
		}
		if reconcile {
			if err := h.client.reconciler.Reconcile(context.Background(), ev.SessionID); err != nil {
				log.Printf("session reconcile failed: %v", err)
			}
		}
		return true

	case api.EventError:
		// The server already folded the failure into the exchange; show
		// its message verbatim in place of whatever had streamed.
		h.buf.Reset()
		h.buf.WriteString(ev.Message)
		h.serverMessage = ev.Message
		h.client.conv.SetContent(h.messageID, ev.Message)
		h.client.conv.FinishStreaming(h.messageID)
		clearTyping := h.settleLocked(StateErrored)
		h.mu.Unlock()

		if clearTyping {
			h.client.notifyTyping(false)
		}
		return true

	default:
		h.mu.Unlock()
		return false
	}
}

// finishWithoutTerminalEvent settles an exchange whose stream ended
// cleanly but never sent complete. The accumulated content stands.
func (h *Handle) finishWithoutTerminalEvent() {
	h.mu.Lock()
	if h.state.IsTerminal() {
		h.mu.Unlock()
		return
	}
	h.client.conv.SetContent(h.messageID, h.buf.String())
	h.client.conv.FinishStreaming(h.messageID)
	clearTyping := h.settleLocked(StateCompleted)
	h.mu.Unlock()

	if clearTyping {
		h.client.notifyTyping(false)
	}
}

// failTransport settles the exchange after a failure below the protocol.
// The assistant message is replaced wholesale with the fixed failure text.
func (h *Handle) failTransport(err error) {
	h.mu.Lock()
	if h.state.IsTerminal() {
		// An abort racing a dying connection: the abort outcome stands.
		h.mu.Unlock()
		return
	}
	h.err = err
	h.buf.Reset()
	h.buf.WriteString(TransportFailureText)
	h.client.conv.SetContent(h.messageID, TransportFailureText)
	h.client.conv.FinishStreaming(h.messageID)
	clearTyping := h.settleLocked(StateErrored)
	h.mu.Unlock()

	if clearTyping {
		h.client.notifyTyping(false)
	}
}

// settleLocked moves to a terminal state and reports whether the typing
// indicator still needs clearing. Caller holds h.mu and must invoke the
// typing callback after unlocking when true is returned.
func (h *Handle) settleLocked(s State) bool {
	h.state = s
	close(h.done)
	pending := h.typing
	h.typing = false
	return pending
}
