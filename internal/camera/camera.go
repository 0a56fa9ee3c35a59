// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package camera exposes the local camera as a typed capability.
//
// A Device can always be opened and closed; frame capture is optional
// and detected once, at controller construction, by interface
// assertion. Callers therefore branch on a stored bool rather than
// re-probing the device per request.
package camera

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// =============================================================================
// ERRORS
// =============================================================================

// Error describes a camera operation failure.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is supports errors.Is comparison against camera sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == e.Message
}

var (
	// ErrUnavailable means no device is configured at all.
	ErrUnavailable = &Error{Message: "camera unavailable"}
	// ErrInactive means a capture was requested with the camera closed.
	ErrInactive = &Error{Message: "camera is not active"}
	// ErrNoCapture means the device cannot produce frames.
	ErrNoCapture = &Error{Message: "device does not support frame capture"}
)

// =============================================================================
// DEVICE INTERFACES
// =============================================================================

// Device is the minimal camera surface: a preview stream that can be
// started and stopped.
type Device interface {
	Open(ctx context.Context) error
	Close() error
}

// FrameCapturer is the optional extension for devices that can grab a
// single still frame while open.
type FrameCapturer interface {
	CaptureFrame(ctx context.Context) (Frame, error)
}

// Frame is one captured still image.
type Frame struct {
	Data []byte
	MIME string
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller serializes access to one device and tracks whether it is
// active. Open and Close are idempotent.
type Controller struct {
	mu       sync.Mutex
	device   Device
	capturer FrameCapturer // nil when the device cannot capture
	active   bool
}

// NewController wraps a device. The capture capability is resolved
// here, exactly once; dev may be nil for hosts with no camera.
func NewController(dev Device) *Controller {
	c := &Controller{device: dev}
	if fc, ok := dev.(FrameCapturer); ok {
		c.capturer = fc
	}
	return c
}

// Available reports whether a device is configured.
func (c *Controller) Available() bool {
	return c.device != nil
}

// CanCapture reports whether the device supports still frames.
func (c *Controller) CanCapture() bool {
	return c.capturer != nil
}

// Active reports whether the camera is currently open.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Open starts the device. Opening an already-open camera succeeds
// without touching the device again.
func (c *Controller) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return ErrUnavailable
	}
	if c.active {
		return nil
	}
	if err := c.device.Open(ctx); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	c.active = true
	return nil
}

// Close stops the device. Closing an already-closed camera is a no-op.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return ErrUnavailable
	}
	if !c.active {
		return nil
	}
	if err := c.device.Close(); err != nil {
		return fmt.Errorf("close camera: %w", err)
	}
	c.active = false
	return nil
}

// Capture grabs one still frame. The camera must be open and the
// device must support capture.
func (c *Controller) Capture(ctx context.Context) (Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return Frame{}, ErrUnavailable
	}
	if !c.active {
		return Frame{}, ErrInactive
	}
	if c.capturer == nil {
		return Frame{}, ErrNoCapture
	}

	frame, err := c.capturer.CaptureFrame(ctx)
	if err != nil {
		return Frame{}, fmt.Errorf("capture frame: %w", err)
	}
	return frame, nil
}

// =============================================================================
// EXEC-BACKED DEVICE
// =============================================================================

// ExecDevice shells out to a user-configured capture command that
// writes one JPEG to stdout (fswebcam, libcamera-still, imagesnap).
// Open and Close are bookkeeping only; the command runs per capture.
type ExecDevice struct {
	command string
}

// NewExecDevice builds a device from the configured capture command.
// Returns nil for an empty command so the controller reports the
// camera as unavailable.
func NewExecDevice(command string) *ExecDevice {
	if strings.TrimSpace(command) == "" {
		return nil
	}
	return &ExecDevice{command: command}
}

func (d *ExecDevice) Open(ctx context.Context) error { return nil }

func (d *ExecDevice) Close() error { return nil }

// CaptureFrame runs the capture command and returns its stdout as a
// JPEG frame.
func (d *ExecDevice) CaptureFrame(ctx context.Context) (Frame, error) {
	fields := strings.Fields(d.command)
	if len(fields) == 0 {
		return Frame{}, ErrNoCapture
	}

	// SECURITY: the command comes from the user's own config file, not
	// from conversation text, and runs without a shell.
	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return Frame{}, fmt.Errorf("capture command: %w: %s", err, msg)
		}
		return Frame{}, fmt.Errorf("capture command: %w", err)
	}
	if stdout.Len() == 0 {
		return Frame{}, &Error{Message: "capture command produced no image"}
	}
	return Frame{Data: stdout.Bytes(), MIME: "image/jpeg"}, nil
}
