// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package voice manages hands-free conversation turns.
//
// Voice mode listens until it hears something: silence keeps the
// microphone armed, and the first real transcript disarms it and hands
// the text to the normal message pipeline. The reply is spoken with
// link clutter stripped out. Speech recognition and synthesis are
// pluggable so the TUI can run without either.
package voice

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// =============================================================================
// CAPABILITY INTERFACES
// =============================================================================

// Recognizer captures one utterance and returns its transcript.
type Recognizer interface {
	Listen(ctx context.Context) (string, error)
}

// Speaker reads text aloud. Cancel interrupts any in-flight speech.
type Speaker interface {
	Speak(ctx context.Context, text string) error
	Cancel()
}

// =============================================================================
// ERRORS
// =============================================================================

// Error describes a voice subsystem failure.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is supports errors.Is comparison against voice sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == e.Message
}

var (
	// ErrNoRecognizer means listening was requested with no recognizer wired.
	ErrNoRecognizer = &Error{Message: "no speech recognizer configured"}
	// ErrDisabled means listening was requested while voice mode is off.
	ErrDisabled = &Error{Message: "voice mode is disabled"}
)

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller tracks the enabled flag and serializes listen/speak
// transitions. Capturing a real transcript disables voice mode; the
// caller re-enables it explicitly for the next turn.
type Controller struct {
	mu         sync.Mutex
	recognizer Recognizer
	speaker    Speaker
	enabled    bool
}

// NewController wires optional speech capabilities. Either argument
// may be nil.
func NewController(r Recognizer, s Speaker) *Controller {
	return &Controller{recognizer: r, speaker: s}
}

// Supported reports whether speech input is available at all.
func (c *Controller) Supported() bool {
	return c.recognizer != nil
}

// Enabled reports whether voice mode is currently armed.
func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// SetEnabled arms or disarms voice mode. Arming interrupts any
// speech in progress so the microphone does not pick up the reply.
func (c *Controller) SetEnabled(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if on && c.recognizer == nil {
		return ErrNoRecognizer
	}
	if on && c.speaker != nil {
		c.speaker.Cancel()
	}
	c.enabled = on
	return nil
}

// Toggle flips voice mode and returns the new state.
func (c *Controller) Toggle() (bool, error) {
	if err := c.SetEnabled(!c.Enabled()); err != nil {
		return false, err
	}
	return c.Enabled(), nil
}

// Listen captures one utterance. Voice mode disarms as soon as a real
// transcript arrives, before the caller processes it, so a slow
// pipeline can never trigger a second capture. Silence (an empty
// transcript) leaves voice mode armed so the caller can listen again.
func (c *Controller) Listen(ctx context.Context) (string, error) {
	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return "", ErrDisabled
	}
	if c.recognizer == nil {
		c.mu.Unlock()
		return "", ErrNoRecognizer
	}
	r := c.recognizer
	c.mu.Unlock()

	transcript, err := r.Listen(ctx)
	transcript = strings.TrimSpace(transcript)

	c.mu.Lock()
	if err != nil || transcript != "" {
		c.enabled = false
	}
	c.mu.Unlock()

	if err != nil {
		return "", fmt.Errorf("listen: %w", err)
	}
	return transcript, nil
}

// Speak reads an assistant reply aloud, with sources and links removed
// first. A nil speaker makes this a no-op.
func (c *Controller) Speak(ctx context.Context, text string) error {
	if c.speaker == nil {
		return nil
	}
	spoken := SpeakableText(text)
	if spoken == "" {
		return nil
	}
	if err := c.speaker.Speak(ctx, spoken); err != nil {
		return fmt.Errorf("speak: %w", err)
	}
	return nil
}

// =============================================================================
// TEXT PREPARATION
// =============================================================================

// SpeakableText strips an assistant reply down to what is worth
// reading aloud: everything from a trailing "Resources:" section on is
// cut, lines containing URLs are dropped, and the remaining lines are
// joined with spaces.
func SpeakableText(text string) string {
	if i := strings.Index(text, "Resources:"); i >= 0 {
		text = text[:i]
	}

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.Contains(line, "http://") || strings.Contains(line, "https://") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, " ")
}
