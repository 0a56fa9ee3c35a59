// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the conversation view for the TUI.
//
// The model owns the visible conversation, the input line, and at most
// one active typewriter session. The orchestrator does all pipeline
// work off the UI loop; the model only schedules commands and renders
// results.
package chat

import (
	"context"
	"log"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/neochat/neochat-tui/internal/backend"
	"github.com/neochat/neochat-tui/internal/camera"
	"github.com/neochat/neochat-tui/internal/config"
	"github.com/neochat/neochat-tui/internal/export"
	"github.com/neochat/neochat-tui/internal/model"
	"github.com/neochat/neochat-tui/internal/orchestrator"
	"github.com/neochat/neochat-tui/internal/render"
	"github.com/neochat/neochat-tui/internal/store"
	"github.com/neochat/neochat-tui/internal/ui/styles"
	"github.com/neochat/neochat-tui/internal/voice"
)

// =============================================================================
// MODEL
// =============================================================================

// Uploader indexes documents into the backend's retrieval store.
type Uploader interface {
	UploadDoc(ctx context.Context, up backend.Upload) error
}

// Model is the Bubble Tea model for the chat view.
type Model struct {
	theme *styles.Theme
	keys  KeyMap
	cfg   *config.Config

	session  *orchestrator.Session
	store    *store.Store
	camera   *camera.Controller
	voice    *voice.Controller
	uploader Uploader
	logger   *log.Logger

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	// Typewriter state. renderSeq tags tick messages so a replaced
	// session's leftover ticks are ignored.
	active    *render.Session
	renderSeq int

	// pendingFile is attached to the next submission and cleared after
	// one use.
	pendingFile *pendingUpload

	width  int
	height int
	busy   bool
	status string
}

type pendingUpload struct {
	name string
	mime string
	data []byte
}

// Deps bundles what the chat model needs.
type Deps struct {
	Config   *config.Config
	Session  *orchestrator.Session
	Store    *store.Store
	Camera   *camera.Controller
	Voice    *voice.Controller
	Uploader Uploader
	Logger   *log.Logger
}

// New creates the chat model.
func New(deps Deps) Model {
	theme := styles.NewTheme(deps.Config.UI.Theme)

	input := textinput.New()
	input.Placeholder = "Message NeoChat..."
	input.Prompt = ""
	input.CharLimit = 4000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	m := Model{
		theme:    theme,
		keys:     DefaultKeyMap(),
		cfg:      deps.Config,
		session:  deps.Session,
		store:    deps.Store,
		camera:   deps.Camera,
		voice:    deps.Voice,
		uploader: deps.Uploader,
		logger:   deps.Logger,
		viewport: viewport.New(80, 20),
		input:    input,
		spinner:  sp,
	}
	m.session.SetWebSearch(deps.Config.UI.WebSearch)
	m.refreshViewport(false)
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// renderOptions builds typewriter options for the current theme and
// viewport width.
func (m *Model) renderOptions() render.Options {
	width := m.viewport.Width - 8
	if width < 20 {
		width = 60
	}
	delay := time.Duration(m.cfg.UI.TypingDelayMs) * time.Millisecond
	return render.GlamourOptions(m.theme.GlamourStyle(), width, delay)
}

// =============================================================================
// COMMANDS
// =============================================================================

// submitCmd runs the pipeline for one submission off the UI loop.
func (m *Model) submitCmd(sub orchestrator.Submission, spoken bool) tea.Cmd {
	return func() tea.Msg {
		turn, err := m.session.Submit(context.Background(), sub)
		return TurnCompleteMsg{Turn: turn, Err: err, Spoken: spoken}
	}
}

// regenerateCmd replays the last user message.
func (m *Model) regenerateCmd() tea.Cmd {
	return func() tea.Msg {
		turn, err := m.session.Regenerate(context.Background())
		return RegenerateCompleteMsg{Turn: turn, Err: err}
	}
}

// listenCmd captures one voice transcript.
func (m *Model) listenCmd() tea.Cmd {
	return func() tea.Msg {
		text, err := m.voice.Listen(context.Background())
		return TranscriptMsg{Text: text, Err: err}
	}
}

// speakCmd reads a reply aloud.
func (m *Model) speakCmd(text string) tea.Cmd {
	return func() tea.Msg {
		err := m.voice.Speak(context.Background(), text)
		return SpeechDoneMsg{Err: err}
	}
}

// typewriterTickCmd schedules the next character step.
func (m *Model) typewriterTickCmd() tea.Cmd {
	seq := m.renderSeq
	return tea.Tick(m.active.Delay(), func(time.Time) tea.Msg {
		return TypewriterTickMsg{Seq: seq}
	})
}

// uploadCmd sends a document to the backend for indexing.
func (m *Model) uploadCmd(up backend.Upload) tea.Cmd {
	return func() tea.Msg {
		err := m.uploader.UploadDoc(context.Background(), up)
		return UploadDoneMsg{Name: up.Name, Err: err}
	}
}

// exportCmd writes the current conversation to a Markdown file.
func (m *Model) exportCmd() tea.Cmd {
	conv := m.store.Current()
	return func() tea.Msg {
		path, err := export.Markdown(conv, nil)
		return ExportDoneMsg{Path: path, Err: err}
	}
}

// =============================================================================
// TYPEWRITER CONTROL
// =============================================================================

// startTypewriter begins animating an assistant message. Any previous
// session is fast-forwarded first so its content stays intact in the
// transcript.
func (m *Model) startTypewriter(msg model.Message) tea.Cmd {
	if m.active != nil && !m.active.Done() {
		m.active.Cancel()
	}
	m.renderSeq++
	m.active = render.NewSession(msg.Content, m.renderOptions())
	return m.typewriterTickCmd()
}

// stopTypewriter fast-forwards the active session.
func (m *Model) stopTypewriter() {
	if m.active != nil {
		m.active.Cancel()
		m.refreshViewport(true)
	}
}
