// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"fmt"
	"strings"
	"testing"

	"github.com/neochat/neochat-tui/internal/markdown"
)

// identityOpts makes frames inspectable: prose is tagged, code is raw.
func identityOpts() Options {
	return Options{
		RenderMarkdown: func(s string) string { return "md(" + s + ")" },
		HighlightCode:  func(code, lang string) string { return "hl[" + lang + "](" + code + ")" },
	}
}

// drain advances until done, guarding against runaway loops.
func drain(t *testing.T, s *Session) Frame {
	t.Helper()
	var f Frame
	for i := 0; i < 100000; i++ {
		f = s.Advance()
		if f.Done {
			return f
		}
	}
	t.Fatal("session never completed")
	return f
}

func TestSession_TextProgression(t *testing.T) {
	s := NewSession("hi", identityOpts())

	if s.State() != StateIdle {
		t.Fatalf("initial state = %v, want idle", s.State())
	}

	f := s.Advance()
	if f.View != "md(h)" {
		t.Errorf("frame 1 = %q", f.View)
	}
	if s.State() != StateTypingText {
		t.Errorf("state = %v, want typing-text", s.State())
	}

	f = s.Advance()
	if !f.Done {
		t.Fatal("two-rune text should complete in two steps")
	}
	if f.View != "md(hi)" {
		t.Errorf("final frame = %q", f.View)
	}
	if s.State() != StateDone {
		t.Errorf("state = %v, want done", s.State())
	}
}

func TestSession_ProseReRendersWholePrefix(t *testing.T) {
	// Every step renders the full prefix, not just the new character.
	s := NewSession("abc", identityOpts())

	want := []string{"md(a)", "md(ab)", "md(abc)"}
	for i, w := range want {
		if f := s.Advance(); f.View != w {
			t.Errorf("step %d = %q, want %q", i+1, f.View, w)
		}
	}
}

func TestSession_CodeRawUntilComplete(t *testing.T) {
	s := NewSession("```go\nx=1\n```", identityOpts())

	f := s.Advance()
	if s.State() != StateTypingCode {
		t.Fatalf("state = %v, want typing-code", s.State())
	}
	if f.View != "x" {
		t.Errorf("partial code frame = %q, want raw character", f.View)
	}

	f = drain(t, s)
	if f.View != "hl[go](x=1)" {
		t.Errorf("final frame = %q, want highlighted block", f.View)
	}
}

func TestSession_SegmentOrderAndJoin(t *testing.T) {
	in := "Look:\n```py\na\n```\nend"
	s := NewSession(in, identityOpts())

	var finished []string
	s.opts.OnSegmentDone = func(i int, seg markdown.Segment) {
		finished = append(finished, fmt.Sprintf("%d:%d", i, seg.Kind))
	}

	f := drain(t, s)
	want := strings.Join([]string{"md(Look:\n)", "hl[py](a)", "md(\nend)"}, "\n")
	if f.View != want {
		t.Errorf("final view = %q, want %q", f.View, want)
	}

	// Completion order is strictly segment order.
	wantOrder := []string{"0:0", "1:1", "2:0"}
	if strings.Join(finished, ",") != strings.Join(wantOrder, ",") {
		t.Errorf("completion order = %v, want %v", finished, wantOrder)
	}
}

func TestSession_CancelFastForwards(t *testing.T) {
	in := "some prose\n```go\ncode\n```\ntail"
	s := NewSession(in, identityOpts())

	s.Advance()
	s.Advance()
	s.Cancel()

	if !s.Done() {
		t.Fatal("Cancel must complete the session synchronously")
	}
	if got, want := s.View(), Static(in, identityOpts()); got != want {
		t.Errorf("cancelled view = %q, want static render %q", got, want)
	}
}

func TestSession_CancelBeforeFirstStep(t *testing.T) {
	s := NewSession("hello", identityOpts())
	s.Cancel()
	if !s.Done() {
		t.Fatal("cancel from idle must complete")
	}
	if s.View() != "md(hello)" {
		t.Errorf("view = %q", s.View())
	}
}

func TestSession_CancelIdempotent(t *testing.T) {
	s := NewSession("x", identityOpts())
	s.Cancel()
	s.Cancel()
	if f := s.Advance(); !f.Done {
		t.Error("advance after cancel must stay done")
	}
}

func TestSession_OnDoneFiresOnce(t *testing.T) {
	var calls int
	opts := identityOpts()
	opts.OnDone = func() { calls++ }

	s := NewSession("ab", opts)
	drain(t, s)
	s.Advance()
	s.Cancel()

	if calls != 1 {
		t.Errorf("OnDone fired %d times, want 1", calls)
	}
}

func TestSession_EmptyText(t *testing.T) {
	s := NewSession("", identityOpts())
	f := s.Advance()
	if !f.Done || f.View != "" {
		t.Errorf("frame = %+v, want immediately done and empty", f)
	}
}

func TestSession_UnicodeSteps(t *testing.T) {
	// Multi-byte runes advance one character per step, never split.
	s := NewSession("héé", identityOpts())
	f := s.Advance()
	if f.View != "md(h)" {
		t.Errorf("step 1 = %q", f.View)
	}
	f = s.Advance()
	if f.View != "md(hé)" {
		t.Errorf("step 2 = %q", f.View)
	}
	f = s.Advance()
	if !f.Done || f.View != "md(héé)" {
		t.Errorf("final = %+v", f)
	}
}

func TestStatic_MatchesFinalFrame(t *testing.T) {
	inputs := []string{
		"plain",
		"a\n```go\ncode\n```\nb",
		"```\nbare\n```",
		"lead\n```js\none\n```\nmid\n```py\ntwo\n```",
	}
	for _, in := range inputs {
		s := NewSession(in, identityOpts())
		f := drain(t, s)
		if got := Static(in, identityOpts()); got != f.View {
			t.Errorf("Static(%q) = %q, final frame = %q", in, got, f.View)
		}
	}
}

func TestSession_DefaultDelay(t *testing.T) {
	s := NewSession("x", Options{})
	if s.Delay() <= 0 {
		t.Error("default delay must be positive")
	}
}
