// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router classifies user messages into backend actions.
//
// Classification itself is a remote call; this package owns the input
// normalization, the confidence threshold defaulting and the decision
// type the dispatcher acts on. The router never retries: remote faults
// are the orchestrator's concern.
package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/neochat/neochat-tui/internal/backend"
)

// =============================================================================
// INTENTS
// =============================================================================

// Intent is the classified category of a user message.
type Intent string

const (
	// IntentChat is general conversation handled by the chat model.
	IntentChat Intent = "chat"
	// IntentOpenCamera requests camera stream acquisition.
	IntentOpenCamera Intent = "open_camera"
	// IntentCloseCamera requests camera stream release.
	IntentCloseCamera Intent = "close_camera"
	// IntentTakePhoto requests a single frame capture and upload.
	IntentTakePhoto Intent = "take_photo"
	// IntentObjectDetect requests object detection on a live frame.
	IntentObjectDetect Intent = "object_detect"
)

// IsDevice reports whether the intent targets the camera capability.
func (i Intent) IsDevice() bool {
	switch i {
	case IntentOpenCamera, IntentCloseCamera, IntentTakePhoto, IntentObjectDetect:
		return true
	}
	return false
}

// =============================================================================
// ROUTE DECISION
// =============================================================================

// DefaultThreshold is substituted when the classifier reports no usable
// threshold of its own.
const DefaultThreshold = 0.70

// RouteDecision is the classifier verdict for a single message. It
// governs exactly one dispatch and is never persisted.
type RouteDecision struct {
	Intent    Intent
	Score     float64
	Threshold float64
	// Narration is optional canned confirmation text for device
	// intents, spoken/shown instead of the built-in default.
	Narration string
}

// Actionable reports whether the confidence clears the threshold.
// Below threshold the decision is ignored and the message takes the
// default RAG/chat path.
func (d RouteDecision) Actionable() bool {
	return d.Score >= d.Threshold
}

// String returns a compact summary for logging.
func (d RouteDecision) String() string {
	return fmt.Sprintf("%s (score=%.2f, threshold=%.2f)", d.Intent, d.Score, d.Threshold)
}

// =============================================================================
// ROUTER
// =============================================================================

// Classifier is the remote intent classification capability.
type Classifier interface {
	ClassifyIntent(ctx context.Context, text string) (backend.IntentResult, error)
}

// Router wraps a Classifier with deterministic input normalization.
type Router struct {
	classifier Classifier
}

// New creates a router backed by the given classifier.
func New(classifier Classifier) *Router {
	return &Router{classifier: classifier}
}

// Normalize prepares text for classification: surrounding whitespace
// and any trailing sentence-terminal punctuation run (".", "!", "?")
// are removed. The classifier is sensitive to this trimming, so it must
// be reproduced exactly for deterministic routing.
func Normalize(text string) string {
	return strings.TrimRight(strings.TrimSpace(text), ".!?")
}

// Classify normalizes text, performs the remote classification and
// returns the decision with the threshold defaulted if needed.
func (r *Router) Classify(ctx context.Context, text string) (RouteDecision, error) {
	res, err := r.classifier.ClassifyIntent(ctx, Normalize(text))
	if err != nil {
		return RouteDecision{}, fmt.Errorf("intent classification failed: %w", err)
	}

	decision := RouteDecision{
		Intent:    Intent(res.Intent),
		Score:     res.Score,
		Threshold: DefaultThreshold,
		Narration: res.Narration,
	}
	if res.HasThreshold {
		decision.Threshold = res.Threshold
	}
	return decision, nil
}
