// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/privgpt-studio/privgpt-tui/internal/api"
	"github.com/privgpt-studio/privgpt-tui/internal/client"
	"github.com/privgpt-studio/privgpt-tui/internal/config"
	"github.com/privgpt-studio/privgpt-tui/internal/model"
	"github.com/privgpt-studio/privgpt-tui/internal/netmon"
	"github.com/privgpt-studio/privgpt-tui/internal/registry"
	"github.com/privgpt-studio/privgpt-tui/internal/storage"
	"github.com/privgpt-studio/privgpt-tui/internal/ui/styles"
	"github.com/privgpt-studio/privgpt-tui/internal/voice"
)

// =============================================================================
// CHAT STATE
// =============================================================================

// State represents the current state of the chat view.
type State int

const (
	StateReady     State = iota // Ready for input
	StateStreaming              // Receiving a streaming response
)

// =============================================================================
// CHAT MODEL
// =============================================================================

// Deps carries the wired application services into the view.
type Deps struct {
	Config       *config.Config
	API          *api.Client
	Conversation *model.Conversation
	Registry     *registry.Registry
	Streamer     *client.StreamClient
	Buffered     *client.BufferedClient
	Monitor      *netmon.Monitor
	Store        *storage.SessionStore
	Transcriber  voice.Transcriber
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	// State
	state State

	// Styling
	theme *styles.Theme

	// Dimensions
	width  int
	height int
	ready  bool

	// Application services
	cfg      *config.Config
	api      *api.Client
	conv     *model.Conversation
	registry *registry.Registry
	streamer *client.StreamClient
	buffered *client.BufferedClient
	monitor  *netmon.Monitor
	store    *storage.SessionStore

	// Voice input hook; nil or voice.Unavailable hides the feature.
	transcriber voice.Transcriber

	// Model selection
	catalog   model.Catalog
	selection model.Selection
	offline   bool

	// In-flight exchange
	handle            *client.Handle
	sendingFile       bool
	pendingAttachment *model.FileRef

	// UI components
	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	// Session sidebar
	showSidebar  bool
	sidebarIndex int

	// Key bindings
	keyMap KeyMap

	// Transient notices
	notice   string
	errText  string
	showHelp bool

	// Last completed exchange latency, for the status bar.
	lastLatency time.Duration
}

// New creates the chat view.
func New(theme *styles.Theme, deps Deps) Model {
	ta := textarea.New()
	ta.Placeholder = "Type your message and use @ to mention chats..."
	ta.Prompt = "> "
	ta.CharLimit = 4096
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 30,
	}
	sp.Style = theme.Spinner

	sel := model.Selection{
		Name: deps.Config.Model.DefaultName,
		Type: model.ModelLocal,
	}
	if deps.Config.Model.DefaultType == "cloud" {
		sel.Type = model.ModelCloud
	}

	return Model{
		state:       StateReady,
		theme:       theme,
		cfg:         deps.Config,
		api:         deps.API,
		conv:        deps.Conversation,
		registry:    deps.Registry,
		streamer:    deps.Streamer,
		buffered:    deps.Buffered,
		monitor:     deps.Monitor,
		store:       deps.Store,
		transcriber: deps.Transcriber,
		selection:   sel,
		viewport:    vp,
		input:       ta,
		spinner:     sp,
		showSidebar: !deps.Config.UI.CompactMode,
		keyMap:      DefaultKeyMap(),
	}
}

// Init starts the background loads and tick loops.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadModelsCmd(),
		m.loadHistoryCmd(),
		m.spinner.Tick,
		netmon.TickCmd(m.checkInterval()),
		textarea.Blink,
	)
}

// checkInterval returns the configured reachability probe interval.
func (m *Model) checkInterval() time.Duration {
	return time.Duration(m.cfg.Network.CheckIntervalSecs) * time.Second
}

// streaming reports whether a streamed exchange is still in flight.
func (m *Model) streaming() bool {
	return m.handle != nil && !m.handle.State().IsTerminal()
}

// busy reports whether any exchange is in flight.
func (m *Model) busy() bool {
	return m.streaming() || m.sendingFile
}

// thinking reports whether the typing indicator should show: an
// exchange is in flight but no content has arrived yet.
func (m *Model) thinking() bool {
	if m.sendingFile {
		return true
	}
	return m.streaming() && m.handle.Content() == ""
}
