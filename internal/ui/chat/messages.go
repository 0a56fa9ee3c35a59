// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the conversation view for the TUI.
//
// This file defines the Bubble Tea message types used by the chat
// interface. All message types follow Bubble Tea conventions and are
// immutable.
package chat

import (
	"github.com/neochat/neochat-tui/internal/config"
	"github.com/neochat/neochat-tui/internal/orchestrator"
)

// =============================================================================
// PIPELINE MESSAGES
// =============================================================================

// TurnCompleteMsg delivers the outcome of a submitted turn.
type TurnCompleteMsg struct {
	Turn orchestrator.Turn
	Err  error
	// Spoken marks turns that originated from a voice transcript; their
	// replies are read aloud once rendering completes.
	Spoken bool
}

// RegenerateCompleteMsg delivers the outcome of a regeneration.
type RegenerateCompleteMsg struct {
	Turn orchestrator.Turn
	Err  error
}

// =============================================================================
// RENDERING MESSAGES
// =============================================================================

// TypewriterTickMsg drives one character step of the active render
// session. Seq identifies the session the tick belongs to; stale ticks
// from a replaced session are dropped.
type TypewriterTickMsg struct {
	Seq int
}

// =============================================================================
// VOICE MESSAGES
// =============================================================================

// TranscriptMsg delivers a captured voice transcript.
type TranscriptMsg struct {
	Text string
	Err  error
}

// SpeechDoneMsg signals that speech synthesis finished.
type SpeechDoneMsg struct {
	Err error
}

// =============================================================================
// CONFIGURATION MESSAGES
// =============================================================================

// ConfigReloadedMsg delivers a hot-reloaded configuration.
type ConfigReloadedMsg struct {
	Config *config.Config
}

// =============================================================================
// STATUS MESSAGES
// =============================================================================

// StatusMsg shows a transient line in the status bar.
type StatusMsg struct {
	Text string
}

// ExportDoneMsg reports the outcome of a conversation export.
type ExportDoneMsg struct {
	Path string
	Err  error
}

// UploadDoneMsg reports the outcome of a document indexing upload.
type UploadDoneMsg struct {
	Name string
	Err  error
}
