// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/neochat/neochat-tui/internal/cli"
	"github.com/neochat/neochat-tui/internal/model"
	"github.com/neochat/neochat-tui/internal/orchestrator"
	"github.com/neochat/neochat-tui/internal/render"
	"github.com/neochat/neochat-tui/internal/util"
)

// chromeHeight is the vertical space taken by header, input box, and
// status bar around the viewport.
const chromeHeight = 7

// =============================================================================
// VIEW
// =============================================================================

// View implements tea.Model.
func (m Model) View() string {
	if m.width > 0 && m.width < cli.MinTerminalWidth {
		return m.theme.ErrorBox.Render(
			fmt.Sprintf("Terminal too narrow.\nResize to at least %d columns.", cli.MinTerminalWidth))
	}

	var b strings.Builder

	b.WriteString(m.headerView())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.inputView())
	b.WriteString("\n")
	b.WriteString(m.statusView())

	return b.String()
}

func (m Model) headerView() string {
	title := model.DefaultTitle
	if conv := m.store.Current(); conv != nil {
		title = conv.Title
	}
	if m.width > 24 {
		title = util.TruncateWidth(title, m.width-16)
	}

	left := m.theme.HeaderTitle.Render("NeoChat")
	right := m.theme.Header.Render(title)
	return lipgloss.JoinHorizontal(lipgloss.Center, left, "  ", right)
}

func (m Model) inputView() string {
	prompt := m.theme.InputPrompt.Render("> ")
	line := prompt + m.input.View()

	if m.pendingFile != nil {
		line += "  " + m.theme.FileTag.Render("📎 "+m.pendingFile.name)
	}
	if m.busy {
		line += "  " + m.spinner.View() + m.theme.ThinkingText.Render(" thinking...")
	}
	return m.theme.InputContainer.Width(max(m.width-2, 20)).Render(line)
}

func (m Model) statusView() string {
	var parts []string

	if m.session.WebSearch() {
		parts = append(parts, m.theme.ToggleOn.Render("WEB"))
	} else {
		parts = append(parts, m.theme.ToggleOff.Render("WEB"))
	}
	if m.voice.Enabled() {
		parts = append(parts, m.theme.ToggleOn.Render("VOICE"))
	} else if m.voice.Supported() {
		parts = append(parts, m.theme.ToggleOff.Render("VOICE"))
	}
	if m.camera.Active() {
		parts = append(parts, m.theme.CameraBadge.Render("● CAM"))
	}

	if m.status != "" {
		parts = append(parts, m.theme.ThinkingText.Render(m.status))
	} else {
		parts = append(parts, m.shortcutsView())
	}

	return m.theme.StatusBar.Width(max(m.width, 20)).Render(strings.Join(parts, "  "))
}

func (m Model) shortcutsView() string {
	var parts []string
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		parts = append(parts, m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDesc.Render(h.Desc))
	}
	return strings.Join(parts, "  ")
}

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

// refreshViewport rebuilds the transcript. When animating is true, the
// last assistant message is drawn from the active typewriter session
// instead of a static render.
func (m *Model) refreshViewport(animating bool) {
	conv := m.store.Current()
	if conv == nil || len(conv.Messages) == 0 {
		m.viewport.SetContent(m.welcomeView())
		return
	}

	bubbleWidth := m.viewport.Width - 8
	if bubbleWidth < 20 {
		bubbleWidth = 60
	}
	opts := m.renderOptions()

	var blocks []string
	for i, msg := range conv.Messages {
		last := i == len(conv.Messages)-1

		switch msg.Role {
		case model.RoleUser:
			blocks = append(blocks, m.userBlock(msg, bubbleWidth))
		case model.RoleAssistant:
			if last && animating && m.active != nil {
				blocks = append(blocks, m.assistantBlock(m.active.View(), false, bubbleWidth))
			} else {
				failed := msg.Content == orchestrator.FailureReply
				blocks = append(blocks, m.assistantBlock(render.Static(msg.Content, opts), failed, bubbleWidth))
			}
		}
	}

	m.viewport.SetContent(strings.Join(blocks, "\n\n"))
	m.viewport.GotoBottom()
}

func (m *Model) userBlock(msg model.Message, width int) string {
	content := msg.Content
	if msg.File != nil {
		tag := m.theme.FileTag.Render(fmt.Sprintf("📎 %s (%s)", msg.File.Name, msg.File.MIME))
		if content == "" {
			content = tag
		} else {
			content = content + "\n" + tag
		}
	}
	return m.theme.UserBubble.MaxWidth(width).Render(content)
}

func (m *Model) assistantBlock(rendered string, failed bool, width int) string {
	style := m.theme.AssistantBubble
	if failed {
		style = m.theme.FailureBubble
	}
	return style.MaxWidth(width).Render(rendered)
}

func (m Model) welcomeView() string {
	lines := []string{
		m.theme.HeaderTitle.Render("NeoChat"),
		"",
		m.theme.ThinkingText.Render("Ask anything, or try:"),
		"  • open the camera",
		"  • take a photo",
		"  • what do you see?",
		"  • /file photo.jpg to attach an image",
		"  • /upload doc.pdf to index a document",
		"  • /rename, /delete, /clear to manage conversations",
	}
	if recent := m.recentView(); recent != "" {
		lines = append(lines, "", recent)
	}
	return strings.Join(lines, "\n")
}

// recentView lists other conversations so switching with C-p has
// something to aim at from an empty chat.
func (m Model) recentView() string {
	summaries := m.store.ListByRecency()
	if len(summaries) < 2 {
		return ""
	}

	lines := []string{m.theme.ThinkingText.Render("Recent conversations (C-p to switch):")}
	for i, s := range summaries {
		if i >= 5 {
			break
		}
		style := m.theme.SessionItem
		if s.Current {
			style = m.theme.SessionItemSelected
		}
		meta := m.theme.SessionMeta.Render(fmt.Sprintf("%d messages", s.MessageCount))
		lines = append(lines, style.Render(util.TruncateWidth(s.Title, 32))+" "+meta)
	}
	return strings.Join(lines, "\n")
}
