// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dispatch maps a routed intent to exactly one backend or
// device action and produces the assistant's reply text.
//
// Dispatch precedence is fixed: an attached file always runs object
// detection, device intents run only when their score clears the
// threshold, and everything else degrades to retrieval-augmented chat.
// Every branch resolves to a non-empty reply string.
package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/neochat/neochat-tui/internal/backend"
	"github.com/neochat/neochat-tui/internal/camera"
	"github.com/neochat/neochat-tui/internal/router"
)

// EmptyAnswer replaces missing or blank backend answers so no branch
// can yield empty reply text.
const EmptyAnswer = "(empty answer)"

// Detection guidance shown when object detection has nothing to look at.
const detectGuidance = "For object detection, please upload an image or say 'open camera', 'Object detect'."

// Shown when take_photo targets a camera that cannot capture frames.
const photoGuidance = "Camera functions must be implemented to take a photo."

// =============================================================================
// BACKEND SURFACE
// =============================================================================

// Backend is the slice of the HTTP client that dispatch needs.
type Backend interface {
	Chat(ctx context.Context, message string) (string, error)
	Rag(ctx context.Context, question string, useInternet, webOnly bool) (backend.RagResult, error)
	Detect(ctx context.Context, up backend.Upload, draw bool) (backend.DetectResult, error)
	Photo(ctx context.Context, up backend.Upload) (backend.PhotoResult, error)
}

// =============================================================================
// DISPATCHER
// =============================================================================

// Dispatcher executes routed actions against the backend and the
// local camera.
type Dispatcher struct {
	backend Backend
	camera  *camera.Controller
}

// New builds a dispatcher. The camera controller must be non-nil; use
// one wrapping a nil device when the host has no camera.
func New(b Backend, cam *camera.Controller) *Dispatcher {
	return &Dispatcher{backend: b, camera: cam}
}

// DispatchFile runs object detection on an uploaded file. Attachments
// take precedence over classification, so this never consults a route
// decision.
func (d *Dispatcher) DispatchFile(ctx context.Context, up backend.Upload) (string, error) {
	res, err := d.backend.Detect(ctx, up, true)
	if err != nil {
		return "", fmt.Errorf("detect file: %w", err)
	}
	return detectReply(res), nil
}

// Dispatch executes one route decision and returns the reply text.
// Device intents require an actionable score; a below-threshold device
// decision falls through to the retrieval branch like any other text.
func (d *Dispatcher) Dispatch(ctx context.Context, text string, dec router.RouteDecision, webSearch bool) (string, error) {
	if dec.Intent.IsDevice() && dec.Actionable() {
		return d.dispatchDevice(ctx, dec)
	}

	if dec.Intent == router.IntentChat && dec.Actionable() {
		if webSearch {
			// Web toggle on: answer from fresh web chunks only.
			res, err := d.backend.Rag(ctx, text, true, true)
			if err != nil {
				return "", fmt.Errorf("rag: %w", err)
			}
			return ragReply(res), nil
		}
		answer, err := d.backend.Chat(ctx, text)
		if err != nil {
			return "", fmt.Errorf("chat: %w", err)
		}
		return orEmpty(answer), nil
	}

	// Retrieval branch: the backend decides between document context
	// and fallback; the web flag widens its source pool.
	res, err := d.backend.Rag(ctx, text, webSearch, false)
	if err != nil {
		return "", fmt.Errorf("rag: %w", err)
	}
	return ragReply(res), nil
}

// Conversational dispatches a regenerated turn. Regeneration trusts
// the intent label without a score check and never touches devices:
// the only outcomes are chat and retrieval, and the replayed answer
// carries no sources block.
func (d *Dispatcher) Conversational(ctx context.Context, text string, intent router.Intent, webSearch bool) (string, error) {
	if intent == router.IntentChat {
		if webSearch {
			res, err := d.backend.Rag(ctx, text, true, true)
			if err != nil {
				return "", fmt.Errorf("rag: %w", err)
			}
			return orEmpty(res.Answer), nil
		}
		answer, err := d.backend.Chat(ctx, text)
		if err != nil {
			return "", fmt.Errorf("chat: %w", err)
		}
		return orEmpty(answer), nil
	}

	res, err := d.backend.Rag(ctx, text, webSearch, false)
	if err != nil {
		return "", fmt.Errorf("rag: %w", err)
	}
	return orEmpty(res.Answer), nil
}

// =============================================================================
// DEVICE BRANCHES
// =============================================================================

func (d *Dispatcher) dispatchDevice(ctx context.Context, dec router.RouteDecision) (string, error) {
	switch dec.Intent {
	case router.IntentOpenCamera:
		if err := d.camera.Open(ctx); err != nil {
			return "", err
		}
		if dec.Narration != "" {
			return dec.Narration, nil
		}
		return "I will open the camera for you now.", nil

	case router.IntentCloseCamera:
		if err := d.camera.Close(); err != nil {
			return "", err
		}
		if dec.Narration != "" {
			return dec.Narration, nil
		}
		return "The camera was turned off.", nil

	case router.IntentTakePhoto:
		// A camera without a capture primitive gets explanatory text,
		// not an error.
		if !d.camera.CanCapture() {
			return photoGuidance, nil
		}
		frame, err := d.camera.Capture(ctx)
		if err != nil {
			return "", err
		}
		res, err := d.backend.Photo(ctx, backend.Upload{
			Name: "snapshot.jpg",
			MIME: frame.MIME,
			Data: frame.Data,
		})
		if err != nil {
			return "", fmt.Errorf("photo: %w", err)
		}
		reply := "Photo saved"
		if res.ImageURL != "" {
			reply += " and available at " + res.ImageURL
		}
		return reply + ". I've also sent it to your phone.", nil

	case router.IntentObjectDetect:
		// Detection needs a frame: only an active, capture-capable
		// camera can provide one. Anything else gets guidance text,
		// not an error.
		if !d.camera.Active() || !d.camera.CanCapture() {
			return detectGuidance, nil
		}
		frame, err := d.camera.Capture(ctx)
		if err != nil {
			return "", err
		}
		res, err := d.backend.Detect(ctx, backend.Upload{
			Name: "frame.jpg",
			MIME: frame.MIME,
			Data: frame.Data,
		}, true)
		if err != nil {
			return "", fmt.Errorf("detect frame: %w", err)
		}
		return detectReply(res), nil
	}

	return "", fmt.Errorf("unhandled device intent %q", dec.Intent)
}

// =============================================================================
// REPLY FORMATTING
// =============================================================================

// detectReply formats a detection result: optional narration, the
// object summary, and an optional image reference.
func detectReply(res backend.DetectResult) string {
	var b strings.Builder
	if res.Narration != "" {
		b.WriteString(res.Narration)
		b.WriteString("\n\n")
	}
	b.WriteString("Object summary: ")
	b.WriteString(res.Summary)
	if res.ImageURL != "" {
		b.WriteString("\n\n(Image: ")
		b.WriteString(res.ImageURL)
		b.WriteString(")")
	}
	return b.String()
}

// ragReply formats a retrieval answer, appending the sources block
// only when document context was actually used.
func ragReply(res backend.RagResult) string {
	reply := orEmpty(res.Answer)
	if res.UsedContext && len(res.Sources) > 0 {
		reply += "\n\nResources:\n- " + strings.Join(res.Sources, "\n- ")
	}
	return reply
}

func orEmpty(answer string) string {
	if strings.TrimSpace(answer) == "" {
		return EmptyAnswer
	}
	return answer
}
