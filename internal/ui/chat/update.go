// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/privgpt-studio/privgpt-tui/internal/client"
	"github.com/privgpt-studio/privgpt-tui/internal/mention"
	"github.com/privgpt-studio/privgpt-tui/internal/model"
	"github.com/privgpt-studio/privgpt-tui/internal/netmon"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case StreamTickMsg:
		return m.handleStreamTick()

	case netmon.TickMsg:
		return m, m.monitor.HandleTick(context.Background(), m.selection, m.catalog, m.checkInterval())

	case netmon.StatusMsg:
		m.applyNetworkReport(msg.Report)
		return m, nil

	case modelsLoadedMsg:
		if msg.err != nil {
			m.errText = "Could not load models from the backend."
			return m, nil
		}
		m.catalog = msg.catalog
		m.resolveSelection()
		return m, nil

	case historyLoadedMsg:
		if msg.err != nil {
			m.errText = "Could not load chat history."
			return m, nil
		}
		m.registry.SetRemote(msg.docs)
		m.clampSidebar()
		return m, nil

	case sessionOpenedMsg:
		if msg.err != nil {
			m.errText = "Could not open that chat."
			return m, nil
		}
		if msg.id != m.registry.ActiveID() {
			// Stale fetch; the user already moved on.
			return m, nil
		}
		m.conv.Reset(msg.messages)
		m.refreshTranscript()
		m.viewport.GotoBottom()
		return m, nil

	case bufferedDoneMsg:
		return m.handleBufferedDone(msg)

	case actionDoneMsg:
		return m.handleActionDone(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		if m.streaming() {
			m.handle.Abort()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keyMap.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case key.Matches(msg, m.keyMap.Cancel):
		if m.streaming() {
			m.handle.Abort()
			return m, nil
		}
		m.notice, m.errText = "", ""
		return m, nil

	case key.Matches(msg, m.keyMap.Submit):
		return m.handleSubmit()

	case key.Matches(msg, m.keyMap.NewChat):
		return m.startDraft()

	case key.Matches(msg, m.keyMap.ToggleSidebar):
		m.showSidebar = !m.showSidebar
		m.layout()
		m.refreshTranscript()
		return m, nil

	case key.Matches(msg, m.keyMap.CycleModel):
		m.cycleModel()
		return m, nil

	case key.Matches(msg, m.keyMap.Export):
		return m, m.exportCmd()

	case key.Matches(msg, m.keyMap.Up):
		if m.showSidebar {
			return m.moveSidebar(-1)
		}

	case key.Matches(msg, m.keyMap.Down):
		if m.showSidebar {
			return m.moveSidebar(1)
		}

	case key.Matches(msg, m.keyMap.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keyMap.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleSubmit sends the input buffer, either as a slash command or as a
// chat message.
func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	raw := strings.TrimSpace(m.input.Value())
	if raw == "" {
		return m, nil
	}
	if strings.HasPrefix(raw, "/") {
		m.input.Reset()
		return m.handleCommand(raw)
	}
	if m.busy() {
		m.notice = "Still responding. Press Esc to stop."
		return m, nil
	}

	text, mentionIDs := mention.Parse(raw)
	if text == "" {
		return m, nil
	}
	m.input.Reset()
	m.notice, m.errText = "", ""

	req := client.Request{
		Text:       text,
		Model:      m.selection,
		SessionID:  m.registry.ActiveID(),
		MentionIDs: mentionIDs,
	}

	if m.pendingAttachment != nil {
		attachment := m.pendingAttachment
		m.pendingAttachment = nil
		m.sendingFile = true
		return m, tea.Batch(m.sendBufferedCmd(req, attachment), streamTickCmd())
	}

	handle, err := m.streamer.Send(context.Background(), req)
	if err != nil {
		m.errText = "Could not start the exchange."
		return m, nil
	}
	m.handle = handle
	m.state = StateStreaming
	m.refreshTranscript()
	m.viewport.GotoBottom()
	return m, streamTickCmd()
}

// handleCommand dispatches a slash command.
func (m Model) handleCommand(raw string) (tea.Model, tea.Cmd) {
	name, arg := raw, ""
	if i := strings.IndexByte(raw, ' '); i >= 0 {
		name, arg = raw[:i], strings.TrimSpace(raw[i+1:])
	}

	switch name {
	case "/new":
		return m.startDraft()

	case "/rename":
		if arg == "" {
			m.errText = "Usage: /rename <new name>"
			return m, nil
		}
		if m.registry.ActiveIsDraft() {
			m.notice = "Send a message first; draft chats are named by the server."
			return m, nil
		}
		return m, m.renameCmd(m.registry.ActiveID(), arg)

	case "/delete":
		if m.registry.ActiveIsDraft() {
			m.notice = "Nothing to delete yet."
			return m, nil
		}
		return m, m.deleteCmd(m.registry.ActiveID())

	case "/clear":
		if m.registry.ActiveIsDraft() {
			m.conv.Reset([]*model.Message{model.NewWelcomeMessage()})
			m.refreshTranscript()
			m.notice = "Chat cleared."
			return m, nil
		}
		return m, m.clearCmd(m.registry.ActiveID())

	case "/export":
		return m, m.exportCmd()

	case "/attach":
		if arg == "" {
			m.errText = "Usage: /attach <path>"
			return m, nil
		}
		ref, err := loadAttachment(arg)
		if err != nil {
			m.errText = err.Error()
			return m, nil
		}
		m.pendingAttachment = ref
		m.notice = fmt.Sprintf("Attached %s (%s).", ref.Name, ref.FormatSize())
		return m, nil

	default:
		m.errText = fmt.Sprintf("Unknown command: %s", name)
		return m, nil
	}
}

// =============================================================================
// SESSION NAVIGATION
// =============================================================================

// startDraft activates the draft session, creating it if needed.
func (m Model) startDraft() (tea.Model, tea.Cmd) {
	if m.busy() {
		m.notice = "Still responding. Press Esc to stop."
		return m, nil
	}
	if !m.registry.NewDraft() {
		// A draft already exists; just switch to it.
		if err := m.registry.SetActive(model.DraftSessionID); err != nil {
			m.errText = "Could not open a new chat."
			return m, nil
		}
	}
	m.conv.Reset([]*model.Message{model.NewWelcomeMessage()})
	m.handle = nil
	m.pendingAttachment = nil
	m.sidebarIndex = 0
	m.refreshTranscript()
	m.viewport.GotoBottom()
	return m, nil
}

// moveSidebar shifts the sidebar selection and opens the session under it.
func (m Model) moveSidebar(delta int) (tea.Model, tea.Cmd) {
	if m.busy() {
		return m, nil
	}
	sessions := m.registry.List()
	if len(sessions) == 0 {
		return m, nil
	}

	next := m.sidebarIndex + delta
	if next < 0 || next >= len(sessions) {
		return m, nil
	}
	m.sidebarIndex = next

	target := sessions[next]
	if target.ID == m.registry.ActiveID() {
		return m, nil
	}
	if err := m.registry.SetActive(target.ID); err != nil {
		m.errText = "Could not open that chat."
		return m, nil
	}
	// Switching away from the draft removes it from the list.
	m.clampSidebar()

	if target.IsDraft() {
		m.conv.Reset([]*model.Message{model.NewWelcomeMessage()})
		m.refreshTranscript()
		return m, nil
	}
	return m, m.openSessionCmd(target.ID)
}

// clampSidebar keeps the sidebar cursor on the active session after the
// list changes underneath it.
func (m *Model) clampSidebar() {
	sessions := m.registry.List()
	active := m.registry.ActiveID()
	m.sidebarIndex = 0
	for i, s := range sessions {
		if s.ID == active {
			m.sidebarIndex = i
			return
		}
	}
}

// =============================================================================
// ASYNC RESULTS
// =============================================================================

// handleStreamTick refreshes the transcript while an exchange is in
// flight and settles the handle once it reaches a terminal state.
func (m Model) handleStreamTick() (tea.Model, tea.Cmd) {
	if m.sendingFile {
		m.refreshTranscript()
		m.viewport.GotoBottom()
		return m, streamTickCmd()
	}
	if m.handle == nil {
		return m, nil
	}

	m.refreshTranscript()
	m.viewport.GotoBottom()

	if !m.handle.State().IsTerminal() {
		return m, streamTickCmd()
	}

	// Exchange settled; fold the outcome into the view.
	handle := m.handle
	m.handle = nil
	m.state = StateReady
	m.lastLatency = handle.Latency()

	reconciled := m.registry.ActiveID()
	if last := m.conv.Last(); last != nil {
		m.registry.SetLastMessage(reconciled, last.Preview(60))
	}
	m.clampSidebar()

	switch handle.State() {
	case client.StateErrored:
		m.errText = "The response could not be completed."
	case client.StateAborted:
		m.notice = "Generation stopped."
	}

	// A completed first exchange confirmed the draft; refresh the list
	// so the server-assigned name shows up.
	return m, m.loadHistoryCmd()
}

// handleBufferedDone folds a settled attachment exchange into the view.
func (m Model) handleBufferedDone(msg bufferedDoneMsg) (tea.Model, tea.Cmd) {
	m.sendingFile = false
	m.refreshTranscript()
	m.viewport.GotoBottom()

	if msg.err != nil {
		m.errText = "Failed to get response from AI. Please try again."
		return m, nil
	}

	m.lastLatency = msg.res.Latency
	if last := m.conv.Last(); last != nil {
		m.registry.SetLastMessage(msg.res.SessionID, last.Preview(60))
	}
	m.clampSidebar()
	return m, m.loadHistoryCmd()
}

// handleActionDone folds a settled session action into the view.
func (m Model) handleActionDone(msg actionDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.errText = msg.err.Error()
		return m, nil
	}
	m.notice = msg.notice
	m.clampSidebar()

	var cmds []tea.Cmd
	if msg.refreshHistory {
		cmds = append(cmds, m.loadHistoryCmd())
	}
	if msg.nextActive != "" {
		if msg.nextActive == model.DraftSessionID {
			m.conv.Reset([]*model.Message{model.NewWelcomeMessage()})
			m.refreshTranscript()
		} else {
			cmds = append(cmds, m.openSessionCmd(msg.nextActive))
		}
	}
	return m, tea.Batch(cmds...)
}

// =============================================================================
// MODEL SELECTION
// =============================================================================

// resolveSelection validates the configured default against the loaded
// catalog, falling back to the first advertised model.
func (m *Model) resolveSelection() {
	if m.selection.Name != "" && m.catalog.Contains(m.selection.Name) {
		m.selection = m.catalog.Select(m.selection.Name)
		return
	}
	if name := m.catalog.FirstLocal(); name != "" {
		m.selection = m.catalog.Select(name)
		return
	}
	if len(m.catalog.Cloud) > 0 {
		m.selection = m.catalog.Select(m.catalog.Cloud[0])
	}
}

// cycleModel advances the selection through the catalog. Cloud models are
// skipped while the backend is unreachable.
func (m *Model) cycleModel() {
	names := append([]string{}, m.catalog.Local...)
	if !m.offline {
		names = append(names, m.catalog.Cloud...)
	}
	if len(names) == 0 {
		return
	}

	next := 0
	for i, name := range names {
		if name == m.selection.Name {
			next = (i + 1) % len(names)
			break
		}
	}
	m.selection = m.catalog.Select(names[next])
	m.notice = fmt.Sprintf("Model: %s", m.selection.Name)
}

// applyNetworkReport folds a reachability report into the view. Forced
// downgrades and missing-fallback warnings fire once per transition.
func (m *Model) applyNetworkReport(r netmon.Report) {
	m.offline = r.Status == netmon.StatusOffline

	if !r.Changed {
		return
	}
	switch {
	case r.Downgraded:
		m.selection = r.NewSelection
		m.notice = fmt.Sprintf("Backend unreachable. Switched to local model %s.", r.NewSelection.Name)
	case r.NoLocalFallback:
		m.notice = "Backend unreachable and no local model is available."
	case r.Status == netmon.StatusOnline:
		m.notice = "Backend reachable again."
	}
}
