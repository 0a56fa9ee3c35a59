// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package orchestrator runs the full message pipeline: persist the
// user turn, route it, dispatch the resulting action, and persist the
// reply. One session object owns the whole flow; the UI only observes
// results.
//
// The pipeline is single-flight. A submission that arrives while
// another is in progress is rejected with ErrBusy rather than queued,
// so a conversation can never interleave turns.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/neochat/neochat-tui/internal/backend"
	"github.com/neochat/neochat-tui/internal/model"
	"github.com/neochat/neochat-tui/internal/router"
	"github.com/neochat/neochat-tui/internal/store"
)

// FailureReply is shown when any pipeline stage fails. The failure is
// logged; the conversation gets a stable apology instead of raw error
// text.
const FailureReply = "Sorry, an error occurred. Please try again."

// =============================================================================
// ERRORS
// =============================================================================

// Error describes an orchestration failure.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is supports errors.Is comparison against orchestrator sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == e.Message
}

var (
	// ErrBusy means a turn is already in flight.
	ErrBusy = &Error{Message: "a message is already being processed"}
	// ErrEmptySubmission means there was neither text nor a file.
	ErrEmptySubmission = &Error{Message: "nothing to send"}
	// ErrNoUserTurn means regeneration found no user text to replay.
	ErrNoUserTurn = &Error{Message: "no user message to regenerate from"}
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Dispatcher executes routed actions. Satisfied by dispatch.Dispatcher.
type Dispatcher interface {
	DispatchFile(ctx context.Context, up backend.Upload) (string, error)
	Dispatch(ctx context.Context, text string, dec router.RouteDecision, webSearch bool) (string, error)
	Conversational(ctx context.Context, text string, intent router.Intent, webSearch bool) (string, error)
}

// Classifier resolves text to a route decision. Satisfied by
// router.Router.
type Classifier interface {
	Classify(ctx context.Context, text string) (router.RouteDecision, error)
}

// =============================================================================
// SESSION
// =============================================================================

// Submission is one user turn: text, an optional attachment, or both.
type Submission struct {
	Text string
	File *backend.Upload
}

// Turn is the persisted outcome of a submission.
type Turn struct {
	UserMessage      model.Message
	AssistantMessage model.Message
	// Failed is set when the reply is the generic failure text.
	Failed bool
}

// Session orchestrates turns for whichever conversation is current in
// the store.
type Session struct {
	store      *store.Store
	classifier Classifier
	dispatcher Dispatcher
	logger     *log.Logger

	mu        sync.Mutex
	inFlight  bool
	webSearch bool
}

// New builds a session. logger may be nil to discard pipeline logs.
func New(st *store.Store, cl Classifier, dp Dispatcher, logger *log.Logger) *Session {
	return &Session{store: st, classifier: cl, dispatcher: dp, logger: logger}
}

// WebSearch reports whether the web-search toggle is on.
func (s *Session) WebSearch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.webSearch
}

// SetWebSearch flips the web-search toggle.
func (s *Session) SetWebSearch(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webSearch = on
}

// Busy reports whether a turn is currently in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

func (s *Session) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return ErrBusy
	}
	s.inFlight = true
	return nil
}

func (s *Session) release() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit runs one full turn: the user message is appended first and
// survives regardless of what happens after, then the reply (or the
// generic failure text) is appended. An attached file bypasses intent
// classification entirely.
func (s *Session) Submit(ctx context.Context, sub Submission) (Turn, error) {
	if sub.Text == "" && sub.File == nil {
		return Turn{}, ErrEmptySubmission
	}
	if err := s.acquire(); err != nil {
		return Turn{}, err
	}
	defer s.release()

	convID := s.store.CurrentID()

	var userMsg model.Message
	if sub.File != nil {
		userMsg = model.NewUserFileMessage(sub.Text, model.FileRef{
			Name: sub.File.Name,
			MIME: sub.File.MIME,
		})
	} else {
		userMsg = model.NewUserMessage(sub.Text)
	}
	if err := s.store.Append(convID, userMsg); err != nil {
		return Turn{}, fmt.Errorf("persist user message: %w", err)
	}

	reply, failed := s.produceReply(ctx, sub)

	assistantMsg := model.NewAssistantMessage(reply)
	if err := s.store.Append(convID, assistantMsg); err != nil {
		return Turn{}, fmt.Errorf("persist assistant message: %w", err)
	}

	return Turn{UserMessage: userMsg, AssistantMessage: assistantMsg, Failed: failed}, nil
}

// produceReply resolves the submission to reply text, converting every
// pipeline fault into the generic failure string.
func (s *Session) produceReply(ctx context.Context, sub Submission) (string, bool) {
	if sub.File != nil {
		reply, err := s.dispatcher.DispatchFile(ctx, *sub.File)
		if err != nil {
			s.logf("file dispatch failed: %v", err)
			return FailureReply, true
		}
		return reply, false
	}

	dec, err := s.classifier.Classify(ctx, sub.Text)
	if err != nil {
		s.logf("classification failed: %v", err)
		return FailureReply, true
	}
	s.logf("routed %s", dec)

	webSearch := s.WebSearch()
	reply, err := s.dispatcher.Dispatch(ctx, sub.Text, dec, webSearch)
	if err != nil {
		s.logf("dispatch failed: %v", err)
		return FailureReply, true
	}
	return reply, false
}

// =============================================================================
// REGENERATE
// =============================================================================

// Regenerate drops the last assistant message and replays the last
// textual user message through classification and conversational
// dispatch. The intent label is trusted without a score check and
// device actions never run, so regeneration can only produce chat or
// retrieval answers.
//
// If the replay fails, the popped reply stays dropped and the failure
// text is appended in its place.
func (s *Session) Regenerate(ctx context.Context) (Turn, error) {
	if err := s.acquire(); err != nil {
		return Turn{}, err
	}
	defer s.release()

	convID := s.store.CurrentID()

	conv, err := s.store.Get(convID)
	if err != nil {
		return Turn{}, err
	}
	lastUser, ok := conv.LastUserText()
	if !ok {
		return Turn{}, ErrNoUserTurn
	}

	if _, err := s.store.PopLast(convID); err != nil {
		return Turn{}, err
	}

	reply, failed := s.regenerateReply(ctx, lastUser)

	assistantMsg := model.NewAssistantMessage(reply)
	if err := s.store.Append(convID, assistantMsg); err != nil {
		return Turn{}, fmt.Errorf("persist regenerated message: %w", err)
	}
	return Turn{AssistantMessage: assistantMsg, Failed: failed}, nil
}

func (s *Session) regenerateReply(ctx context.Context, text string) (string, bool) {
	dec, err := s.classifier.Classify(ctx, text)
	if err != nil {
		s.logf("regenerate classification failed: %v", err)
		return FailureReply, true
	}

	reply, err := s.dispatcher.Conversational(ctx, text, dec.Intent, s.WebSearch())
	if err != nil {
		s.logf("regenerate dispatch failed: %v", err)
		return FailureReply, true
	}
	return reply, false
}

func (s *Session) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
