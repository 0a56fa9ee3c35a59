// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/neochat/neochat-tui/internal/backend"
	"github.com/neochat/neochat-tui/internal/config"
	"github.com/neochat/neochat-tui/internal/orchestrator"
	"github.com/neochat/neochat-tui/internal/ui/styles"
)

// MaxUploadSize caps attached files at 20 MB.
const MaxUploadSize = 20 << 20

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)
	case tea.KeyMsg:
		return m.handleKey(msg)
	case TurnCompleteMsg:
		return m.handleTurnComplete(msg)
	case RegenerateCompleteMsg:
		return m.handleRegenerateComplete(msg)
	case TypewriterTickMsg:
		return m.handleTypewriterTick(msg)
	case TranscriptMsg:
		return m.handleTranscript(msg)
	case SpeechDoneMsg:
		if msg.Err != nil {
			m.logf("speech failed: %v", msg.Err)
		}
		return m, nil
	case ConfigReloadedMsg:
		return m.handleConfigReload(msg)
	case ExportDoneMsg:
		if msg.Err != nil {
			m.status = "export failed: " + msg.Err.Error()
		} else {
			m.status = "exported to " + msg.Path
		}
		return m, nil
	case UploadDoneMsg:
		if msg.Err != nil {
			m.status = "upload failed: " + msg.Err.Error()
		} else {
			m.status = "indexed " + msg.Name
		}
		return m, nil
	case StatusMsg:
		m.status = msg.Text
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	m.viewport.Width = msg.Width
	m.viewport.Height = msg.Height - chromeHeight
	if m.viewport.Height < 3 {
		m.viewport.Height = 3
	}
	m.input.Width = msg.Width - 6

	m.refreshViewport(m.animating())
	return m, nil
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.stopTypewriter()
		return m, tea.Quit

	case key.Matches(msg, m.keys.StopRender):
		m.stopTypewriter()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.handleSubmit()

	case key.Matches(msg, m.keys.NewChat):
		return m.handleNewChat()

	case key.Matches(msg, m.keys.NextChat):
		return m.handleNextChat()

	case key.Matches(msg, m.keys.Regenerate):
		if m.busy {
			m.status = "still working on the previous message"
			return m, nil
		}
		m.busy = true
		m.status = ""
		return m, tea.Batch(m.spinner.Tick, m.regenerateCmd())

	case key.Matches(msg, m.keys.ToggleWeb):
		on := !m.session.WebSearch()
		m.session.SetWebSearch(on)
		m.cfg.UI.WebSearch = on
		m.persistConfig()
		if on {
			m.status = "web search on"
		} else {
			m.status = "web search off"
		}
		return m, nil

	case key.Matches(msg, m.keys.ToggleVoice):
		return m.handleToggleVoice()

	case key.Matches(msg, m.keys.Export):
		conv := m.store.Current()
		if conv == nil || conv.Empty() {
			m.status = "nothing to export"
			return m, nil
		}
		return m, m.exportCmd()

	case key.Matches(msg, m.keys.Up):
		m.viewport.LineUp(1)
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.viewport.LineDown(1)
		return m, nil
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())

	if strings.HasPrefix(text, "/") {
		name, rest, _ := strings.Cut(text, " ")
		rest = strings.TrimSpace(rest)
		switch name {
		case "/file":
			return m.handleAttach(rest)
		case "/upload":
			return m.handleUpload(rest)
		case "/rename":
			return m.handleRename(rest)
		case "/delete":
			return m.handleDeleteChat()
		case "/clear":
			return m.handleClearChats()
		}
		// Not a command: send as a normal message.
	}

	if text == "" && m.pendingFile == nil {
		return m, nil
	}
	if m.busy {
		m.status = "still working on the previous message"
		return m, nil
	}

	sub := orchestrator.Submission{Text: text}
	if m.pendingFile != nil {
		sub.File = &backend.Upload{
			Name: m.pendingFile.name,
			MIME: m.pendingFile.mime,
			Data: m.pendingFile.data,
		}
		m.pendingFile = nil
	}

	m.input.Reset()
	m.busy = true
	m.status = ""
	return m, tea.Batch(m.spinner.Tick, m.submitCmd(sub, false))
}

// handleAttach stages a file for the next submission.
func (m Model) handleAttach(path string) (tea.Model, tea.Cmd) {
	info, err := os.Stat(path)
	if err != nil {
		m.status = "cannot read file: " + err.Error()
		return m, nil
	}
	if info.Size() > MaxUploadSize {
		m.status = "file too large to attach"
		return m, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		m.status = "cannot read file: " + err.Error()
		return m, nil
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	m.pendingFile = &pendingUpload{
		name: filepath.Base(path),
		mime: mimeType,
		data: data,
	}
	m.input.Reset()
	m.status = fmt.Sprintf("attached %s — press enter to send", filepath.Base(path))
	return m, nil
}

// handleUpload sends a document to the backend for indexing into the
// retrieval store.
func (m Model) handleUpload(path string) (tea.Model, tea.Cmd) {
	if m.uploader == nil {
		m.status = "document upload is not available"
		return m, nil
	}
	if path == "" {
		m.status = "usage: /upload <path>"
		return m, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		m.status = "cannot read file: " + err.Error()
		return m, nil
	}
	if info.Size() > MaxUploadSize {
		m.status = "file too large to upload"
		return m, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		m.status = "cannot read file: " + err.Error()
		return m, nil
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	m.input.Reset()
	m.status = "indexing " + filepath.Base(path) + "..."
	return m, m.uploadCmd(backend.Upload{
		Name: filepath.Base(path),
		MIME: mimeType,
		Data: data,
	})
}

// handleRename retitles the current conversation.
func (m Model) handleRename(title string) (tea.Model, tea.Cmd) {
	if title == "" {
		m.status = "usage: /rename <title>"
		return m, nil
	}
	if err := m.store.Rename(m.store.CurrentID(), title); err != nil {
		m.status = "rename failed: " + err.Error()
		return m, nil
	}
	m.input.Reset()
	m.status = "renamed to " + title
	return m, nil
}

// handleDeleteChat removes the current conversation. The store creates
// a fresh replacement so the view always has a conversation to show.
func (m Model) handleDeleteChat() (tea.Model, tea.Cmd) {
	if m.busy {
		m.status = "still working on the previous message"
		return m, nil
	}
	conv := m.store.Current()
	if conv == nil {
		m.status = "nothing to delete"
		return m, nil
	}

	m.stopTypewriter()
	if err := m.store.Delete(conv.ID); err != nil {
		m.status = "delete failed: " + err.Error()
		return m, nil
	}
	m.active = nil
	m.input.Reset()
	m.refreshViewport(false)
	m.status = "conversation deleted"
	return m, nil
}

// handleClearChats wipes all conversations and starts over.
func (m Model) handleClearChats() (tea.Model, tea.Cmd) {
	if m.busy {
		m.status = "still working on the previous message"
		return m, nil
	}

	m.stopTypewriter()
	if err := m.store.Clear(); err != nil {
		m.status = "clear failed: " + err.Error()
		return m, nil
	}
	m.active = nil
	m.input.Reset()
	m.refreshViewport(false)
	m.status = "all conversations cleared"
	return m, nil
}

func (m Model) handleNewChat() (tea.Model, tea.Cmd) {
	if m.busy {
		m.status = "still working on the previous message"
		return m, nil
	}
	m.stopTypewriter()
	if _, err := m.store.Create(); err != nil {
		m.status = "new chat failed: " + err.Error()
		return m, nil
	}
	m.active = nil
	m.refreshViewport(false)
	m.status = ""
	return m, nil
}

// handleNextChat cycles through conversations by recency.
func (m Model) handleNextChat() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	summaries := m.store.ListByRecency()
	if len(summaries) < 2 {
		m.status = "no other conversations"
		return m, nil
	}

	for i, s := range summaries {
		if s.Current {
			next := summaries[(i+1)%len(summaries)]
			if err := m.store.SetCurrent(next.ID); err != nil {
				m.status = err.Error()
				return m, nil
			}
			break
		}
	}

	m.stopTypewriter()
	m.active = nil
	m.refreshViewport(false)
	m.status = ""
	return m, nil
}

func (m Model) handleToggleVoice() (tea.Model, tea.Cmd) {
	if !m.voice.Supported() {
		m.status = "voice input is not available"
		return m, nil
	}
	on, err := m.voice.Toggle()
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	if !on {
		m.status = "voice mode off"
		return m, nil
	}
	m.status = "listening..."
	return m, m.listenCmd()
}

// =============================================================================
// PIPELINE RESULTS
// =============================================================================

func (m Model) handleTurnComplete(msg TurnCompleteMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	if msg.Err != nil {
		if errors.Is(msg.Err, orchestrator.ErrBusy) {
			m.status = "still working on the previous message"
		} else {
			m.status = msg.Err.Error()
			m.logf("submit failed: %v", msg.Err)
		}
		return m, nil
	}

	cmds := []tea.Cmd{m.startTypewriter(msg.Turn.AssistantMessage)}
	m.refreshViewport(true)

	if msg.Spoken && !msg.Turn.Failed {
		cmds = append(cmds, m.speakCmd(msg.Turn.AssistantMessage.Content))
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleRegenerateComplete(msg RegenerateCompleteMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	if msg.Err != nil {
		switch {
		case errors.Is(msg.Err, orchestrator.ErrNoUserTurn):
			m.status = "no user message to regenerate from"
		default:
			m.status = msg.Err.Error()
		}
		m.logf("regenerate failed: %v", msg.Err)
		return m, nil
	}

	cmd := m.startTypewriter(msg.Turn.AssistantMessage)
	m.refreshViewport(true)
	return m, cmd
}

func (m Model) handleTypewriterTick(msg TypewriterTickMsg) (tea.Model, tea.Cmd) {
	// Stale tick from a replaced session.
	if m.active == nil || msg.Seq != m.renderSeq {
		return m, nil
	}

	frame := m.active.Advance()
	m.refreshViewport(!frame.Done)
	if frame.Done {
		return m, nil
	}
	return m, m.typewriterTickCmd()
}

func (m Model) handleTranscript(msg TranscriptMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.status = "voice capture failed"
		m.logf("voice capture failed: %v", msg.Err)
		return m, nil
	}
	if msg.Text == "" {
		// Silence leaves voice mode armed; keep the loop going until a
		// real transcript arrives or the user toggles it off.
		if m.voice.Enabled() {
			m.status = "listening..."
			return m, m.listenCmd()
		}
		m.status = "heard nothing"
		return m, nil
	}
	if m.busy {
		m.status = "still working on the previous message"
		return m, nil
	}

	m.busy = true
	m.status = ""
	return m, tea.Batch(m.spinner.Tick, m.submitCmd(orchestrator.Submission{Text: msg.Text}, true))
}

func (m Model) handleConfigReload(msg ConfigReloadedMsg) (tea.Model, tea.Cmd) {
	m.cfg = msg.Config
	m.theme = styles.NewTheme(msg.Config.UI.Theme)
	m.refreshViewport(m.animating())
	m.status = "configuration reloaded"
	return m, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (m *Model) animating() bool {
	return m.active != nil && !m.active.Done()
}

// persistConfig writes toggle changes back to disk so they survive
// restarts. Failures are logged, not surfaced.
func (m *Model) persistConfig() {
	path, err := config.DefaultPath()
	if err != nil {
		m.logf("config path: %v", err)
		return
	}
	if err := m.cfg.Save(path); err != nil {
		m.logf("config save: %v", err)
	}
}

func (m *Model) logf(format string, args ...interface{}) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}
