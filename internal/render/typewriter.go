// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/neochat/neochat-tui/internal/markdown"
)

// =============================================================================
// STATES
// =============================================================================

// State is the typewriter phase.
type State int

const (
	// StateIdle means no step has run yet.
	StateIdle State = iota
	// StateTypingText means a prose segment is being typed.
	StateTypingText
	// StateTypingCode means a code segment is being typed.
	StateTypingCode
	// StateDone means all segments are rendered.
	StateDone
)

// String returns the phase name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTypingText:
		return "typing-text"
	case StateTypingCode:
		return "typing-code"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures a render session.
type Options struct {
	// Delay is the inter-character delay. The scheduler (one timer
	// chain per session) waits this long between Advance calls.
	Delay time.Duration

	// RenderMarkdown renders prose. During typing it is re-applied to
	// the whole prefix so far on every step.
	RenderMarkdown func(string) string

	// HighlightCode highlights a completed code block.
	HighlightCode func(code, language string) string

	// OnSegmentDone fires when a segment finishes, including during a
	// fast-forward cancel.
	OnSegmentDone func(index int, seg markdown.Segment)

	// OnDone fires exactly once when the session completes.
	OnDone func()
}

// withDefaults fills unset hooks.
func (o Options) withDefaults() Options {
	if o.Delay <= 0 {
		o.Delay = 2 * time.Millisecond
	}
	if o.RenderMarkdown == nil {
		o.RenderMarkdown = func(s string) string { return s }
	}
	if o.HighlightCode == nil {
		o.HighlightCode = Highlight
	}
	return o
}

// GlamourOptions returns Options wired to glamour markdown rendering
// and chroma highlighting for the given theme ("dark" or "light") and
// wrap width.
func GlamourOptions(theme string, width int, delay time.Duration) Options {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(theme),
		glamour.WithWordWrap(width),
	)
	renderMarkdown := func(s string) string {
		if err != nil || renderer == nil {
			return s
		}
		out, rerr := renderer.Render(s)
		if rerr != nil {
			return s
		}
		return strings.TrimRight(out, "\n")
	}
	return Options{
		Delay:          delay,
		RenderMarkdown: renderMarkdown,
		HighlightCode:  Highlight,
	}
}

// =============================================================================
// RENDER SESSION
// =============================================================================

// Frame is one visible snapshot of a session.
type Frame struct {
	View string
	Done bool
}

// Session renders segments strictly in order, one character per
// Advance call. It is the explicit state machine behind the typewriter:
// a single scheduler loop drives Advance, and Cancel fast-forwards the
// current and all remaining steps to completion rather than truncating.
//
// At most one session should be active per visible assistant message;
// starting a new one must cancel the prior session first, otherwise the
// old timer chain keeps writing.
type Session struct {
	mu sync.Mutex

	opts     Options
	segments []markdown.Segment

	state     State
	seg       int      // index of the segment being typed
	cursor    int      // runes emitted within the current segment
	runes     []rune   // body of the current segment
	completed []string // final views of finished segments
	cancelled bool
	doneFired bool
}

// NewSession segments text and prepares an idle session.
func NewSession(text string, opts Options) *Session {
	return &Session{
		opts:     opts.withDefaults(),
		segments: markdown.Split(text),
	}
}

// Delay returns the configured inter-character delay.
func (s *Session) Delay() time.Duration {
	return s.opts.Delay
}

// State returns the current phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done reports whether the session has completed.
func (s *Session) Done() bool {
	return s.State() == StateDone
}

// Cancel fast-forwards the session: every remaining step completes
// immediately, completion hooks fire, and the final frame equals the
// full static render. Safe to call repeatedly.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
	s.fastForwardLocked()
}

// Advance performs one character step and returns the resulting frame.
// Once the session is done further calls are no-ops.
func (s *Session) Advance() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Cancellation is observed here, between characters.
	if s.cancelled {
		s.fastForwardLocked()
	}

	switch s.state {
	case StateDone:
		return s.frameLocked()
	case StateIdle:
		s.enterSegmentLocked(0)
		if s.state == StateDone {
			return s.frameLocked()
		}
	}

	s.cursor++
	if s.cursor >= len(s.runes) {
		s.finishSegmentLocked()
	}
	return s.frameLocked()
}

// View returns the current frame's text.
func (s *Session) View() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// =============================================================================
// INTERNAL TRANSITIONS
// =============================================================================

// enterSegmentLocked moves the machine to segment i, skipping nothing:
// empty-bodied segments complete on the next Advance.
func (s *Session) enterSegmentLocked(i int) {
	if i >= len(s.segments) {
		s.state = StateDone
		s.fireDoneLocked()
		return
	}
	s.seg = i
	s.cursor = 0
	s.runes = []rune(s.segments[i].Body)
	if s.segments[i].Kind == markdown.KindCode {
		s.state = StateTypingCode
	} else {
		s.state = StateTypingText
	}
}

// finishSegmentLocked records the segment's final view and advances.
func (s *Session) finishSegmentLocked() {
	seg := s.segments[s.seg]
	s.completed = append(s.completed, s.finalViewLocked(seg))
	if s.opts.OnSegmentDone != nil {
		s.opts.OnSegmentDone(s.seg, seg)
	}
	s.enterSegmentLocked(s.seg + 1)
}

// fastForwardLocked completes the current and all remaining segments.
func (s *Session) fastForwardLocked() {
	if s.state == StateDone {
		return
	}
	if s.state == StateIdle {
		s.enterSegmentLocked(0)
	}
	for s.state != StateDone {
		s.cursor = len(s.runes)
		s.finishSegmentLocked()
	}
}

func (s *Session) fireDoneLocked() {
	if s.doneFired {
		return
	}
	s.doneFired = true
	if s.opts.OnDone != nil {
		s.opts.OnDone()
	}
}

// finalViewLocked renders a completed segment: highlighted code, or
// fully markdown-rendered prose.
func (s *Session) finalViewLocked(seg markdown.Segment) string {
	if seg.Kind == markdown.KindCode {
		return s.opts.HighlightCode(seg.Body, seg.Language)
	}
	return s.opts.RenderMarkdown(seg.Body)
}

func (s *Session) frameLocked() Frame {
	return Frame{View: s.viewLocked(), Done: s.state == StateDone}
}

// viewLocked assembles completed segment views plus the in-progress
// partial. Prose partials re-render the whole prefix through markdown
// each step; code partials are raw characters until the block closes.
func (s *Session) viewLocked() string {
	views := make([]string, 0, len(s.completed)+1)
	views = append(views, s.completed...)

	switch s.state {
	case StateTypingText:
		views = append(views, s.opts.RenderMarkdown(string(s.runes[:s.cursor])))
	case StateTypingCode:
		views = append(views, string(s.runes[:s.cursor]))
	}

	return strings.Join(views, "\n")
}

// =============================================================================
// STATIC RENDERING
// =============================================================================

// Static renders text immediately with the same segmentation and
// highlighting as an animated session. Used for history replay; the
// output equals the final frame of a completed (or cancelled) session.
func Static(text string, opts Options) string {
	opts = opts.withDefaults()
	segments := markdown.Split(text)

	views := make([]string, 0, len(segments))
	for _, seg := range segments {
		if seg.Kind == markdown.KindCode {
			views = append(views, opts.HighlightCode(seg.Body, seg.Language))
		} else {
			views = append(views, opts.RenderMarkdown(seg.Body))
		}
	}
	return strings.Join(views, "\n")
}
