// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/privgpt-studio/privgpt-tui/internal/model"
	"github.com/privgpt-studio/privgpt-tui/internal/ui/styles"
	"github.com/privgpt-studio/privgpt-tui/internal/util"
)

const (
	sidebarWidth     = 28
	minSidebarTerm   = 80
	sessionNameWidth = sidebarWidth - 4
)

// =============================================================================
// LAYOUT
// =============================================================================

// layout recomputes component dimensions after a resize or sidebar toggle.
func (m *Model) layout() {
	if !m.ready {
		return
	}

	transcriptWidth := m.width
	if m.sidebarVisible() {
		transcriptWidth -= sidebarWidth
	}

	// Header and status bar take one row each; the input box takes its
	// height plus the top border; one row for the thinking/notice line.
	inputHeight := m.input.Height() + 2
	transcriptHeight := m.height - 1 - 1 - 1 - inputHeight
	if transcriptHeight < 3 {
		transcriptHeight = 3
	}

	m.viewport.Width = transcriptWidth
	m.viewport.Height = transcriptHeight
	m.input.SetWidth(m.width - 4)

	wrap := transcriptWidth - 4
	if wrap < 20 {
		wrap = 20
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err == nil {
		m.renderer = renderer
	}
}

// sidebarVisible reports whether the sidebar fits and is enabled.
func (m *Model) sidebarVisible() bool {
	return m.showSidebar && m.width >= minSidebarTerm
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the chat interface.
func (m Model) View() string {
	if !m.ready {
		return "Starting..."
	}

	main := m.viewport.View()
	if m.showHelp {
		main = m.renderHelp()
	}
	if m.sidebarVisible() {
		main = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), main)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		main,
		m.renderActivityLine(),
		m.renderInput(),
		m.renderStatusBar(),
	)
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("PrivGPT")
	header := title + "  " + m.activeSessionName()
	if m.state == StateStreaming {
		header += "  " + m.theme.ThinkingText.Render(styles.StatusIndicators.Active+" streaming")
	}
	return m.theme.Header.Width(m.width).Render(header)
}

func (m Model) activeSessionName() string {
	active := m.registry.ActiveID()
	for _, s := range m.registry.List() {
		if s.ID == active {
			return util.TruncateWidth(s.Name, 48)
		}
	}
	return ""
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// refreshTranscript re-renders the conversation into the viewport.
func (m *Model) refreshTranscript() {
	if !m.ready {
		return
	}

	var b strings.Builder
	for i, msg := range m.conv.Snapshot() {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
}

func (m *Model) renderMessage(msg *model.Message) string {
	sender := m.theme.MessageSender.Render(msg.Role.DisplayName())
	var ts string
	if !msg.Timestamp.IsZero() {
		ts = m.theme.MessageTime.Render(msg.Timestamp.Format("3:04:05 PM"))
	}
	head := sender
	if ts != "" {
		head = sender + " " + ts
	}

	body := m.renderBody(msg)

	bubble := m.theme.AssistantBubble
	if msg.Role == model.RoleUser {
		bubble = m.theme.UserBubble
	}
	return head + "\n" + bubble.Render(body)
}

// renderBody formats a message's content. Assistant markdown goes through
// glamour once the message has settled; partial streamed content stays
// plain so a half-open code fence cannot mangle the transcript.
func (m *Model) renderBody(msg *model.Message) string {
	content := msg.Content
	if content == "" && msg.IsStreaming {
		content = "..."
	}

	if msg.Role == model.RoleAssistant &&
		!msg.IsStreaming &&
		m.cfg.UI.RenderMarkdown &&
		m.renderer != nil {
		if rendered, err := m.renderer.Render(content); err == nil {
			content = strings.Trim(rendered, "\n")
		}
	}

	if msg.Attachment != nil {
		tag := m.theme.AttachmentTag.Render(
			fmt.Sprintf("[file: %s, %s]", msg.Attachment.Name, msg.Attachment.FormatSize()))
		content = tag + "\n" + content
	}
	return content
}

// =============================================================================
// SIDEBAR
// =============================================================================

func (m Model) renderSidebar() string {
	sessions := m.registry.List()
	active := m.registry.ActiveID()

	var b strings.Builder
	b.WriteString(m.theme.SessionMeta.Render("Chats"))
	b.WriteString("\n\n")

	for _, s := range sessions {
		name := util.TruncateWidth(s.Name, sessionNameWidth)
		style := m.theme.SessionItem
		switch {
		case s.ID == active:
			style = m.theme.SessionItemSelected
		case s.IsDraft():
			style = m.theme.SessionItemDraft
		}
		b.WriteString(style.Render(name))
		b.WriteString("\n")
		if s.LastMessage != "" {
			b.WriteString(m.theme.SessionMeta.Render(util.TruncateWidth(s.LastMessage, sessionNameWidth)))
			b.WriteString("\n")
		}
	}

	return m.theme.Sidebar.
		Width(sidebarWidth - 1).
		Height(m.viewport.Height).
		Render(b.String())
}

// =============================================================================
// INPUT AND STATUS
// =============================================================================

// renderActivityLine shows the typing indicator or the latest notice.
func (m Model) renderActivityLine() string {
	switch {
	case m.thinking():
		return " " + m.spinner.View() + " " + m.theme.ThinkingText.Render("Thinking...")
	case m.errText != "":
		return " " + styles.RenderError(m.errText)
	case m.notice != "":
		return " " + m.theme.Notice.Render(m.notice)
	case m.pendingAttachment != nil:
		return " " + m.theme.AttachmentTag.Render(
			fmt.Sprintf("[attaching %s, Enter to send]", m.pendingAttachment.Name))
	}
	return ""
}

func (m Model) renderInput() string {
	return m.theme.InputContainer.Width(m.width - 2).Render(m.input.View())
}

func (m Model) renderStatusBar() string {
	var status string
	if m.offline {
		status = m.theme.StatusOffline.Render(styles.StatusIndicators.Error + " Offline")
	} else {
		status = m.theme.StatusOnline.Render(styles.StatusIndicators.Success + " Online")
	}

	badge := m.theme.ModeLocal.Render("local")
	if m.selection.IsCloud() {
		badge = m.theme.ModeCloud.Render("cloud")
	}
	modelName := m.selection.Name
	if modelName == "" {
		modelName = "no model"
	}

	left := fmt.Sprintf("%s | %s %s", status, modelName, badge)
	if m.lastLatency > 0 {
		left += m.theme.ShortcutDesc.Render(fmt.Sprintf(" | %.1fs", m.lastLatency.Seconds()))
	}

	var shortcuts []string
	for _, binding := range m.keyMap.ShortHelp() {
		h := binding.Help()
		shortcuts = append(shortcuts,
			m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDesc.Render(h.Desc))
	}
	right := strings.Join(shortcuts, "  ")

	gap := m.width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

// =============================================================================
// HELP OVERLAY
// =============================================================================

func (m Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(m.theme.HeaderTitle.Render("Keyboard Shortcuts"))
	b.WriteString("\n\n")

	for _, group := range m.keyMap.FullHelp() {
		for _, binding := range group {
			h := binding.Help()
			b.WriteString(fmt.Sprintf("  %s  %s\n",
				m.theme.ShortcutKey.Render(util.PadWidth(h.Key, 6)),
				m.theme.ShortcutDesc.Render(h.Desc)))
		}
		b.WriteString("\n")
	}

	b.WriteString(m.theme.HeaderTitle.Render("Slash Commands"))
	b.WriteString("\n\n")
	for _, c := range [][2]string{
		{"/new", "start a draft chat"},
		{"/rename <name>", "rename the active chat"},
		{"/delete", "delete the active chat"},
		{"/clear", "clear the active chat"},
		{"/export", "export the transcript"},
		{"/attach <path>", "attach a file"},
	} {
		b.WriteString(fmt.Sprintf("  %s  %s\n",
			m.theme.ShortcutKey.Render(util.PadWidth(c[0], 16)),
			m.theme.ShortcutDesc.Render(c[1])))
	}

	return lipgloss.NewStyle().
		Width(m.viewport.Width).
		Height(m.viewport.Height).
		Padding(1, 2).
		Render(b.String())
}
