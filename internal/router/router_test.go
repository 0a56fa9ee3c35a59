// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"context"
	"errors"
	"testing"

	"github.com/neochat/neochat-tui/internal/backend"
)

// fakeClassifier records the text it was given and returns a canned result.
type fakeClassifier struct {
	gotText string
	result  backend.IntentResult
	err     error
}

func (f *fakeClassifier) ClassifyIntent(ctx context.Context, text string) (backend.IntentResult, error) {
	f.gotText = text
	return f.result, f.err
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"open the camera", "open the camera"},
		{"open the camera.", "open the camera"},
		{"really?!?", "really"},
		{"  padded...  ", "padded"},
		{"no punctuation", "no punctuation"},
		{"...", ""},
		{"a.b.c.", "a.b.c"},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClassify_PassesNormalizedText(t *testing.T) {
	fake := &fakeClassifier{result: backend.IntentResult{Intent: "chat", Score: 0.9}}
	r := New(fake)

	if _, err := r.Classify(context.Background(), "Tell me about quantum computing."); err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if fake.gotText != "Tell me about quantum computing" {
		t.Errorf("classifier saw %q", fake.gotText)
	}
}

func TestClassify_ThresholdDefault(t *testing.T) {
	// Classifier reported no threshold: 0.70 is substituted, and a 0.5
	// score falls below it.
	fake := &fakeClassifier{result: backend.IntentResult{Intent: "open_camera", Score: 0.5}}
	d, err := New(fake).Classify(context.Background(), "open camera")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if d.Threshold != DefaultThreshold {
		t.Errorf("Threshold = %v, want %v", d.Threshold, DefaultThreshold)
	}
	if d.Actionable() {
		t.Error("score 0.5 must not be actionable under the default threshold")
	}
}

func TestClassify_BackendThresholdWins(t *testing.T) {
	fake := &fakeClassifier{result: backend.IntentResult{
		Intent: "take_photo", Score: 0.6, Threshold: 0.55, HasThreshold: true,
	}}
	d, err := New(fake).Classify(context.Background(), "take a photo")
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if d.Threshold != 0.55 {
		t.Errorf("Threshold = %v, want 0.55", d.Threshold)
	}
	if !d.Actionable() {
		t.Error("score 0.6 should clear the reported 0.55 threshold")
	}
}

func TestClassify_RemoteFault(t *testing.T) {
	sentinel := errors.New("boom")
	fake := &fakeClassifier{err: sentinel}

	_, err := New(fake).Classify(context.Background(), "anything")
	if !errors.Is(err, sentinel) {
		t.Errorf("expected wrapped remote error, got %v", err)
	}
}

func TestIntentIsDevice(t *testing.T) {
	for _, intent := range []Intent{IntentOpenCamera, IntentCloseCamera, IntentTakePhoto, IntentObjectDetect} {
		if !intent.IsDevice() {
			t.Errorf("%s should be a device intent", intent)
		}
	}
	if IntentChat.IsDevice() {
		t.Error("chat is not a device intent")
	}
	if Intent("weather").IsDevice() {
		t.Error("unknown intents are not device intents")
	}
}
