// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package voice

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// =============================================================================
// EXEC-BACKED SPEECH
// =============================================================================

// ExecRecognizer shells out to a user-configured command that records
// one utterance and prints the transcript to stdout.
type ExecRecognizer struct {
	command string
}

// NewExecRecognizer builds a recognizer from the configured listen
// command. Returns nil for an empty command so the controller reports
// voice input as unsupported.
func NewExecRecognizer(command string) *ExecRecognizer {
	if strings.TrimSpace(command) == "" {
		return nil
	}
	return &ExecRecognizer{command: command}
}

// Listen runs the capture command and returns its stdout.
func (r *ExecRecognizer) Listen(ctx context.Context) (string, error) {
	fields := strings.Fields(r.command)
	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("listen command: %w: %s", err, msg)
		}
		return "", fmt.Errorf("listen command: %w", err)
	}
	return stdout.String(), nil
}

// ExecSpeaker pipes text into a user-configured synthesis command.
// Only one utterance plays at a time; Cancel kills the running one.
type ExecSpeaker struct {
	command string

	mu      sync.Mutex
	current *exec.Cmd
}

// NewExecSpeaker builds a speaker from the configured speak command.
// Returns nil for an empty command.
func NewExecSpeaker(command string) *ExecSpeaker {
	if strings.TrimSpace(command) == "" {
		return nil
	}
	return &ExecSpeaker{command: command}
}

// Speak runs the synthesis command with text on stdin and waits for it
// to finish.
func (s *ExecSpeaker) Speak(ctx context.Context, text string) error {
	s.Cancel()

	fields := strings.Fields(s.command)
	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	cmd.Stdin = strings.NewReader(text)

	s.mu.Lock()
	s.current = cmd
	s.mu.Unlock()

	err := cmd.Run()

	s.mu.Lock()
	if s.current == cmd {
		s.current = nil
	}
	s.mu.Unlock()

	return err
}

// Cancel interrupts any utterance in progress.
func (s *ExecSpeaker) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil && s.current.Process != nil {
		_ = s.current.Process.Kill()
	}
}
