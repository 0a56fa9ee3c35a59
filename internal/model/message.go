// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model defines the conversation data model for the neochat TUI.
package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLES
// =============================================================================

// Role identifies the author of a message.
type Role string

const (
	// RoleUser marks messages typed or spoken by the user.
	RoleUser Role = "user"
	// RoleAssistant marks replies produced by the pipeline.
	RoleAssistant Role = "assistant"
)

// =============================================================================
// MESSAGE
// =============================================================================

// FileRef describes an upload attached to a user message. Only the
// descriptor is persisted; file bytes are consumed by the dispatch and
// never stored.
type FileRef struct {
	Name string `json:"name"`
	MIME string `json:"mime"`
}

// Message is a single conversation turn. Messages are immutable once
// appended; the only removal path is Store.PopLast before regeneration.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// File is set when the message originated from an upload.
	File *FileRef `json:"file,omitempty"`
}

// NewUserMessage creates a user message with a fresh id.
func NewUserMessage(content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserFileMessage creates a user message carrying a file descriptor.
func NewUserFileMessage(content string, file FileRef) Message {
	m := NewUserMessage(content)
	m.File = &file
	return m
}

// NewAssistantMessage creates an assistant message with a fresh id.
func NewAssistantMessage(content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
	}
}
