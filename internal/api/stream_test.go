// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// =============================================================================
// EVENT READER TESTS
// =============================================================================

func TestEventReader_BasicFrames(t *testing.T) {
	input := "data: {\"type\": \"session_info\", \"session_id\": \"1\"}\n\n" +
		"data: {\"type\": \"chunk\", \"text\": \"Hello\"}\n\n" +
		"data: {\"type\": \"complete\", \"session_id\": \"abc\", \"timestamp\": \"2025-06-01T12:00:00.123456\", \"latency\": 420}\n\n"

	r := NewEventReader(strings.NewReader(input))

	ev, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, EventSessionInfo, ev.Type)
	require.Equal(t, "1", ev.SessionID)

	ev, err = r.Next()
	require.NoError(t, err)
	require.Equal(t, EventChunk, ev.Type)
	require.Equal(t, "Hello", ev.Text)

	ev, err = r.Next()
	require.NoError(t, err)
	require.Equal(t, EventComplete, ev.Type)
	require.Equal(t, "abc", ev.SessionID)
	require.Equal(t, 420, ev.Latency)
	require.True(t, ev.IsTerminal())

	_, err = r.Next()
	require.Equal(t, io.EOF, err)
}

func TestEventReader_SkipsMalformedFrames(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{
			name: "broken json between valid frames",
			input: "data: {\"type\": \"chunk\", \"text\": \"a\"}\n\n" +
				"data: {not json}\n\n" +
				"data: {\"type\": \"chunk\", \"text\": \"b\"}\n\n",
		},
		{
			name: "non-data lines ignored",
			input: "data: {\"type\": \"chunk\", \"text\": \"a\"}\n" +
				": keep-alive comment\n" +
				"event: something\n" +
				"data: {\"type\": \"chunk\", \"text\": \"b\"}\n",
		},
		{
			name: "missing type discarded",
			input: "data: {\"type\": \"chunk\", \"text\": \"a\"}\n\n" +
				"data: {\"text\": \"no type\"}\n\n" +
				"data: {\"type\": \"chunk\", \"text\": \"b\"}\n\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewEventReader(strings.NewReader(tc.input))

			var texts []string
			for {
				ev, err := r.Next()
				if err == io.EOF {
					break
				}
				require.NoError(t, err)
				texts = append(texts, ev.Text)
			}
			require.Equal(t, []string{"a", "b"}, texts)
		})
	}
}

func TestEventReader_CRLFAndNoTrailingNewline(t *testing.T) {
	input := "data: {\"type\": \"chunk\", \"text\": \"one\"}\r\n\r\n" +
		"data: {\"type\": \"complete\", \"session_id\": \"x\"}"

	r := NewEventReader(strings.NewReader(input))

	ev, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, "one", ev.Text)

	ev, err = r.Next()
	require.NoError(t, err)
	require.Equal(t, EventComplete, ev.Type)
	require.Equal(t, "x", ev.SessionID)
}

// slowReader yields the input a few bytes at a time to exercise framing
// across transport chunk boundaries.
type slowReader struct {
	data []byte
	pos  int
	step int
}

func (s *slowReader) Read(p []byte) (int, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	end := s.pos + s.step
	if end > len(s.data) {
		end = len(s.data)
	}
	n := copy(p, s.data[s.pos:end])
	s.pos += n
	return n, nil
}

func TestEventReader_FramesSplitAcrossReads(t *testing.T) {
	input := "data: {\"type\": \"chunk\", \"text\": \"split across\"}\n\n" +
		"data: {\"type\": \"chunk\", \"text\": \"many reads\"}\n\n"

	r := NewEventReader(&slowReader{data: []byte(input), step: 3})

	ev, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, "split across", ev.Text)

	ev, err = r.Next()
	require.NoError(t, err)
	require.Equal(t, "many reads", ev.Text)
}

// =============================================================================
// TIMESTAMP PARSING TESTS
// =============================================================================

// countingReader tracks how many bytes the consumer pulled.
type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

func TestEventReader_RejectsOversizedLine(t *testing.T) {
	line := "data: " + strings.Repeat("x", MaxFrameSize*4) + "\n"
	src := &countingReader{r: strings.NewReader(line)}
	r := NewEventReader(src)

	_, err := r.Next()
	require.Error(t, err)
	require.NotEqual(t, io.EOF, err)

	// The limit bounds memory: the reader must give up near the limit
	// instead of buffering the whole line first.
	require.LessOrEqual(t, src.n, MaxFrameSize+8192,
		"oversized line was buffered past the frame limit")
}

func TestParseEventTime(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{
			name:  "python isoformat with microseconds",
			input: "2025-06-01T12:30:45.123456",
			want:  time.Date(2025, 6, 1, 12, 30, 45, 123456000, time.UTC),
		},
		{
			name:  "python isoformat without fraction",
			input: "2025-06-01T12:30:45",
			want:  time.Date(2025, 6, 1, 12, 30, 45, 0, time.UTC),
		},
		{
			name:  "rfc3339",
			input: "2025-06-01T12:30:45Z",
			want:  time.Date(2025, 6, 1, 12, 30, 45, 0, time.UTC),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseEventTime(tc.input)
			require.True(t, got.Equal(tc.want), "got %v, want %v", got, tc.want)
		})
	}
}

func TestParseEventTime_GarbageFallsBackToNow(t *testing.T) {
	before := time.Now()
	got := ParseEventTime("not a timestamp")
	after := time.Now()

	require.False(t, got.Before(before))
	require.False(t, got.After(after))
}
