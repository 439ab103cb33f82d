// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/privgpt-studio/privgpt-tui/internal/client"
	"github.com/privgpt-studio/privgpt-tui/internal/export"
	"github.com/privgpt-studio/privgpt-tui/internal/model"
	"github.com/privgpt-studio/privgpt-tui/internal/registry"
)

// maxAttachmentSize bounds files accepted by /attach.
const maxAttachmentSize = 20 << 20

// streamTickCmd sends StreamTickMsg at roughly 30fps while a response
// streams in. Token writes land in the conversation from a goroutine;
// the tick is when the view picks them up.
func streamTickCmd() tea.Cmd {
	return tea.Tick(33*time.Millisecond, func(t time.Time) tea.Msg {
		return StreamTickMsg{Time: t}
	})
}

// =============================================================================
// DATA LOADING COMMANDS
// =============================================================================

// loadModelsCmd fetches the model catalog.
func (m *Model) loadModelsCmd() tea.Cmd {
	apiClient := m.api
	return func() tea.Msg {
		cat, err := apiClient.Models(context.Background())
		return modelsLoadedMsg{catalog: cat, err: err}
	}
}

// loadHistoryCmd fetches session summaries for the locally known IDs.
func (m *Model) loadHistoryCmd() tea.Cmd {
	store, apiClient := m.store, m.api
	return func() tea.Msg {
		if store == nil {
			return historyLoadedMsg{}
		}
		ctx := context.Background()
		ids, err := store.List(ctx)
		if err != nil {
			return historyLoadedMsg{err: err}
		}
		docs, err := apiClient.History(ctx, ids)
		return historyLoadedMsg{docs: docs, err: err}
	}
}

// openSessionCmd fetches a stored transcript.
func (m *Model) openSessionCmd(id string) tea.Cmd {
	apiClient := m.api
	return func() tea.Msg {
		docs, err := apiClient.SessionMessages(context.Background(), id)
		if err != nil {
			return sessionOpenedMsg{id: id, err: err}
		}
		return sessionOpenedMsg{id: id, messages: registry.MessagesFromDocs(docs)}
	}
}

// =============================================================================
// SESSION ACTION COMMANDS
// =============================================================================

// renameCmd renames the active session.
func (m *Model) renameCmd(id, newName string) tea.Cmd {
	reg := m.registry
	return func() tea.Msg {
		if err := reg.Rename(context.Background(), id, newName); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{notice: "Chat renamed."}
	}
}

// deleteCmd deletes the active session and reports the next selection.
func (m *Model) deleteCmd(id string) tea.Cmd {
	reg := m.registry
	return func() tea.Msg {
		next, err := reg.Delete(context.Background(), id)
		if err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{notice: "Chat deleted.", nextActive: next}
	}
}

// clearCmd wipes the active session's stored messages.
func (m *Model) clearCmd(id string) tea.Cmd {
	apiClient := m.api
	return func() tea.Msg {
		if err := apiClient.ClearSession(context.Background(), id); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{notice: "Chat cleared.", nextActive: id}
	}
}

// exportCmd writes the current transcript to a file.
func (m *Model) exportCmd() tea.Cmd {
	sessions := m.registry.List()
	activeID := m.registry.ActiveID()
	messages := m.conv.Snapshot()
	dir := m.cfg.Export.Dir

	return func() tea.Msg {
		var session model.ChatSession
		for _, s := range sessions {
			if s.ID == activeID {
				session = s
				break
			}
		}
		if session.ID == "" {
			return actionDoneMsg{err: errors.New("no session to export")}
		}

		path, err := export.ExportToFile(session, messages, &export.Options{OutputDir: dir})
		if err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{notice: fmt.Sprintf("Exported to %s.", filepath.Base(path))}
	}
}

// =============================================================================
// SEND COMMANDS
// =============================================================================

// sendBufferedCmd runs an attachment exchange in the background.
func (m *Model) sendBufferedCmd(req client.Request, attachment *model.FileRef) tea.Cmd {
	buffered := m.buffered
	return func() tea.Msg {
		res, err := buffered.Send(context.Background(), req, attachment)
		return bufferedDoneMsg{res: res, err: err}
	}
}

// loadAttachment reads a file for /attach, rejecting oversized files.
func loadAttachment(path string) (*model.FileRef, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > maxAttachmentSize {
		return nil, fmt.Errorf("%s is too large (%d bytes)", filepath.Base(path), info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return model.NewFileRef(filepath.Base(path), mimeTypeFor(path), data), nil
}

// mimeTypeFor guesses a MIME type from the file extension. The backend
// does its own validation; this only has to be plausible.
func mimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".txt", ".md", ".log":
		return "text/plain"
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
