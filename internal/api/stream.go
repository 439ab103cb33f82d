// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// =============================================================================
// STREAMING CONSTANTS
// =============================================================================

// MaxFrameSize is the maximum allowed size for a single stream frame (64KB).
const MaxFrameSize = 64 * 1024

// Event types carried on the chat stream.
const (
	EventSessionInfo = "session_info"
	EventChunk       = "chunk"
	EventComplete    = "complete"
	EventError       = "error"
)

// =============================================================================
// STREAM EVENT
// =============================================================================

// StreamEvent is one frame of the chat stream. Which fields are set depends
// on Type: session_info carries SessionID, chunk carries Text, complete
// carries SessionID/Timestamp/Latency, error carries Message.
type StreamEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Latency   int    `json:"latency,omitempty"`
	Message   string `json:"message,omitempty"`
}

// IsTerminal reports whether this event ends the stream.
func (e StreamEvent) IsTerminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// ParseEventTime parses the timestamp on a complete event. The backend emits
// Python isoformat without a zone; RFC 3339 is accepted as well. Falls back
// to the current time when neither parses.
func ParseEventTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	// Python datetime.isoformat(): no zone, optional fractional seconds.
	if t, err := time.Parse("2006-01-02T15:04:05.999999", s); err == nil {
		return t
	}
	return time.Now()
}

// =============================================================================
// EVENT READER
// =============================================================================

// EventReader parses chat stream frames from a response body.
//
// Frames are newline-delimited lines of the form "data: {json}". Anything
// else on the wire is skipped, as is any data line whose payload does not
// parse; a broken frame must never kill the stream. The line reader makes
// framing independent of how the transport chunks the body.
type EventReader struct {
	reader *bufio.Reader
}

// NewEventReader creates an EventReader over r.
func NewEventReader(r io.Reader) *EventReader {
	return &EventReader{
		reader: bufio.NewReaderSize(r, 4096),
	}
}

// Next returns the next well-formed event. It returns io.EOF when the
// stream ends and never returns a parse error; malformed frames are
// silently discarded.
func (r *EventReader) Next() (StreamEvent, error) {
	for {
		line, err := r.readLine()
		if err != nil {
			return StreamEvent{}, err
		}

		line = bytes.TrimRight(line, "\r\n")
		if !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}

		var ev StreamEvent
		if err := json.Unmarshal(line[6:], &ev); err != nil {
			continue
		}
		if ev.Type == "" {
			continue
		}
		return ev, nil
	}
}

// readLine reads one line, enforcing the frame size limit as the line
// accumulates so an overlong line never gets buffered whole.
func (r *EventReader) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.reader.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > MaxFrameSize {
			return nil, fmt.Errorf("frame too large: %d bytes", len(line))
		}

		switch {
		case err == nil:
			return line, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(line) > 0:
			// Final line without trailing newline still counts.
			return line, nil
		default:
			return nil, err
		}
	}
}

// =============================================================================
// STREAM
// =============================================================================

// Stream is an open chat stream. Callers pull events via Next and must
// Close when done; cancelling the request context also tears it down.
type Stream struct {
	body   io.ReadCloser
	events *EventReader
}

// Next returns the next event or io.EOF.
func (s *Stream) Next() (StreamEvent, error) {
	return s.events.Next()
}

// Close releases the underlying connection.
func (s *Stream) Close() error {
	return s.body.Close()
}

// OpenStream starts a streaming chat exchange and returns the open stream.
// The request uses the timeout-less streaming client; the context governs
// the whole exchange including reading.
func (c *Client) OpenStream(ctx context.Context, chatReq ChatRequest) (*Stream, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := writeChatFields(w, chatReq); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/stream", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := readBody(resp)
		resp.Body.Close()
		return nil, decodeError(resp.StatusCode, body)
	}

	return &Stream{
		body:   resp.Body,
		events: NewEventReader(resp.Body),
	}, nil
}
