// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"time"
)

// =============================================================================
// CONVERSATION
// =============================================================================

// DefaultTitle is the title given to freshly created conversations
// until the user renames them.
const DefaultTitle = "New Conversation"

// Conversation is an ordered, append-only message log. It is owned
// exclusively by the store; all mutation goes through store operations.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Seq is the creation sequence number, used as a stable tie-break
	// when two conversations share a timestamp.
	Seq int `json:"seq"`

	Messages []Message `json:"messages"`
}

// NewConversation allocates a conversation with a time-derived id and
// an empty message log.
func NewConversation(seq int) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        fmt.Sprintf("chat_%d", now.UnixMilli()),
		Title:     DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
		Seq:       seq,
	}
}

// LastMessage returns the final message, or nil for an empty log.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// LastUserText returns the content of the most recent user message
// that is not a file upload. Returns ("", false) if none exists.
// Regeneration uses this to find the turn to replay.
func (c *Conversation) LastUserText() (string, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		m := c.Messages[i]
		if m.Role == RoleUser && m.File == nil {
			return m.Content, true
		}
	}
	return "", false
}

// Empty reports whether the conversation has no messages.
func (c *Conversation) Empty() bool {
	return len(c.Messages) == 0
}
