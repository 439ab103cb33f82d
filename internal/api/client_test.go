// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/privgpt-studio/privgpt-tui/internal/model"
)

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(srv.URL).
		WithHTTPClient(srv.Client()).
		WithStreamClient(srv.Client()).
		WithModelsLimit(1000, 1000)
}

// =============================================================================
// MODELS ENDPOINT
// =============================================================================

func TestClient_Models(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/models", r.URL.Path)
		json.NewEncoder(w).Encode(map[string][]string{
			"local_models": {"phi3", "llama3"},
			"cloud_models": {"gemini"},
		})
	}))
	defer srv.Close()

	cat, err := newTestClient(srv).Models(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"phi3", "llama3"}, cat.Local)
	require.Equal(t, []string{"gemini"}, cat.Cloud)
	require.Equal(t, model.ModelLocal, cat.TypeOf("phi3"))
}

// =============================================================================
// HISTORY ENDPOINTS
// =============================================================================

func TestClient_History(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/history", r.URL.Path)

		var req map[string][]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, []string{"abc", "def"}, req["session_ids"])

		io.WriteString(w, `[
			{"_id": "def", "session_name": "Later chat", "created_at": "2025-06-02T08:00:00", "messages": []},
			{"_id": "abc", "session_name": "First chat", "created_at": "2025-06-01T08:00:00",
			 "messages": [{"role": "user", "content": "hi", "timestamp": "2025-06-01T08:00:01"}]}
		]`)
	}))
	defer srv.Close()

	docs, err := newTestClient(srv).History(context.Background(), []string{"abc", "def"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	require.Equal(t, "def", docs[0].ID)
	require.Equal(t, "First chat", docs[1].Name)
	require.Len(t, docs[1].Messages, 1)
	require.Equal(t, "user", docs[1].Messages[0].Role)
}

func TestClient_History_EmptyIDListSkipsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for an empty id list")
	}))
	defer srv.Close()

	docs, err := newTestClient(srv).History(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, docs)
}

func TestClient_SessionMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/abc", r.URL.Path)
		io.WriteString(w, `{"session_id": "abc", "messages": [
			{"role": "user", "content": "hi", "timestamp": "2025-06-01T08:00:01"},
			{"role": "bot", "content": "hello", "timestamp": "2025-06-01T08:00:02", "model_name": "gemini"}
		]}`)
	}))
	defer srv.Close()

	msgs, err := newTestClient(srv).SessionMessages(context.Background(), "abc")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "bot", msgs[1].Role)
	require.Equal(t, "gemini", msgs[1].ModelName)
}

func TestClient_SessionMessages_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error": "Session not found"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).SessionMessages(context.Background(), "missing")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

// =============================================================================
// MUTATING ENDPOINTS
// =============================================================================

func TestClient_RenameSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/rename", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "abc", req["session_id"])
		require.Equal(t, "New name", req["new_name"])

		io.WriteString(w, `{"message": "Session renamed successfully"}`)
	}))
	defer srv.Close()

	err := newTestClient(srv).RenameSession(context.Background(), "abc", "New name")
	require.NoError(t, err)
}

func TestClient_DeleteSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/chat/delete/abc", r.URL.Path)
		io.WriteString(w, `{"status": "success"}`)
	}))
	defer srv.Close()

	err := newTestClient(srv).DeleteSession(context.Background(), "abc")
	require.NoError(t, err)
}

func TestClient_ClearSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/clear", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "abc", req["session_id"])

		io.WriteString(w, `{"status": "cleared", "session_id": "abc"}`)
	}))
	defer srv.Close()

	err := newTestClient(srv).ClearSession(context.Background(), "abc")
	require.NoError(t, err)
}

// =============================================================================
// BUFFERED CHAT
// =============================================================================

func TestClient_Chat_FormFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		require.Equal(t, "describe this", r.FormValue("message"))
		require.Equal(t, "cloud", r.FormValue("model_type"))
		require.Equal(t, "gemini", r.FormValue("model_name"))
		require.Equal(t, "abc", r.FormValue("session_id"))
		require.NotEmpty(t, r.FormValue("timestamp"))
		require.Equal(t, []string{"m1", "m2"}, r.MultipartForm.Value["mention_session_ids[]"])

		file, header, err := r.FormFile("uploaded_file")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "cat.png", header.Filename)
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Equal(t, "pngbytes", string(data))

		io.WriteString(w, `{"response": "a cat", "session_id": "abc",
			"timestamp": "2025-06-01T12:00:00.000001", "latency": 0}`)
	}))
	defer srv.Close()

	ref := model.NewFileRef("cat.png", "image/png", []byte("pngbytes"))
	resp, err := newTestClient(srv).Chat(context.Background(), ChatRequest{
		Message:    "describe this",
		ModelType:  model.ModelCloud,
		ModelName:  "gemini",
		SessionID:  "abc",
		MentionIDs: []string{"m1", "m2"},
	}, ref)

	require.NoError(t, err)
	require.Equal(t, "a cat", resp.Response)
	require.Equal(t, "abc", resp.SessionID)
	require.False(t, ref.HasData(), "attachment bytes should be released to the transport")
}

func TestClient_Chat_EmptyReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"response": "", "session_id": "abc", "latency": 0}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Chat(context.Background(), ChatRequest{Message: "hi"}, nil)
	require.ErrorIs(t, err, ErrEmptyReply)
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

func TestClient_OpenStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/stream", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "hi", r.FormValue("message"))
		require.Equal(t, "local", r.FormValue("model_type"))

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"type\": \"session_info\", \"session_id\": \"1\"}\n\n")
		io.WriteString(w, "data: {\"type\": \"chunk\", \"text\": \"Hello\"}\n\n")
		io.WriteString(w, "data: {\"type\": \"complete\", \"session_id\": \"abc\", \"timestamp\": \"2025-06-01T12:00:00\", \"latency\": 7}\n\n")
	}))
	defer srv.Close()

	stream, err := newTestClient(srv).OpenStream(context.Background(), ChatRequest{
		Message:   "hi",
		ModelType: model.ModelLocal,
		ModelName: "phi3",
		SessionID: "1",
	})
	require.NoError(t, err)
	defer stream.Close()

	var types []string
	for {
		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		types = append(types, ev.Type)
	}
	require.Equal(t, []string{EventSessionInfo, EventChunk, EventComplete}, types)
}

func TestClient_OpenStream_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error": "Unsupported file type"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).OpenStream(context.Background(), ChatRequest{Message: "hi"})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestClient_OpenStream_ContextCancelStopsReads(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"type\": \"chunk\", \"text\": \"one\"}\n\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := newTestClient(srv).OpenStream(ctx, ChatRequest{Message: "hi"})
	require.NoError(t, err)
	defer stream.Close()

	ev, err := stream.Next()
	require.NoError(t, err)
	require.Equal(t, "one", ev.Text)

	cancel()

	done := make(chan error, 1)
	go func() {
		_, err := stream.Next()
		done <- err
	}()
	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after context cancellation")
	}
}
