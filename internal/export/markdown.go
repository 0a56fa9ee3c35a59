// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/neochat/neochat-tui/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter renders a conversation as a Markdown document with
// a YAML frontmatter header.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a conversation to Markdown.
func (e *MarkdownExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, fmt.Errorf("conversation is nil")
	}
	if len(conv.Messages) == 0 {
		return nil, fmt.Errorf("conversation has no messages")
	}

	var sb strings.Builder

	sb.WriteString("---\n")
	sb.WriteString(fmt.Sprintf("title: %s\n", escapeYAML(conv.Title)))
	sb.WriteString(fmt.Sprintf("date: %s\n", conv.CreatedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("updated: %s\n", conv.UpdatedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("messages: %d\n", len(conv.Messages)))
	sb.WriteString(fmt.Sprintf("exported: %s\n", time.Now().Format(time.RFC3339)))
	sb.WriteString("generator: neochat\n")
	sb.WriteString("---\n\n")

	sb.WriteString(fmt.Sprintf("# %s\n\n", conv.Title))

	for i, msg := range conv.Messages {
		label := roleLabel(msg.Role)
		if e.options.IncludeTimestamps {
			sb.WriteString(fmt.Sprintf("### %s <sub>%s</sub>\n\n", label, formatShortTimestamp(msg.Timestamp)))
		} else {
			sb.WriteString(fmt.Sprintf("### %s\n\n", label))
		}

		if msg.File != nil {
			sb.WriteString(fmt.Sprintf("*Attached file: %s (%s)*\n\n", msg.File.Name, msg.File.MIME))
		}
		if msg.Content != "" {
			sb.WriteString(msg.Content)
			sb.WriteString("\n\n")
		}

		if i < len(conv.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString(fmt.Sprintf("\n*Exported %s*\n", formatTimestamp(time.Now())))
	return []byte(sb.String()), nil
}

// FileExtension returns the Markdown extension.
func (e *MarkdownExporter) FileExtension() string { return ".md" }

func roleLabel(role model.Role) string {
	switch role {
	case model.RoleUser:
		return "🧑 User"
	case model.RoleAssistant:
		return "🤖 Assistant"
	default:
		return string(role)
	}
}

// escapeYAML quotes a frontmatter value when it contains characters
// that would break plain YAML scalars.
func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":#{}[]&*!|>'\"%@`\n") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
