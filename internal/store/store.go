// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store provides conversation persistence for the neochat TUI.
//
// All conversations live in one JSON file mapping conversation id to
// conversation record. Every mutating operation re-serializes the full
// state and writes it through atomically, so a crash between UI actions
// never loses a completed turn.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/neochat/neochat-tui/internal/model"
	"github.com/neochat/neochat-tui/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrConversationNotFound is returned when a conversation doesn't exist.
// Use errors.Is(err, ErrConversationNotFound) to check for this error.
var ErrConversationNotFound = &ConversationError{Message: "conversation not found"}

// ErrNoAssistantTurn is returned by PopLast when the log is empty or the
// last message is not assistant-authored.
var ErrNoAssistantTurn = &ConversationError{Message: "last message is not an assistant turn"}

// ConversationError represents a conversation-related error.
type ConversationError struct {
	Message string
}

// Error implements the error interface.
func (e *ConversationError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing conversation errors.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// SUMMARIES
// =============================================================================

// Summary contains conversation metadata for sidebar listing.
type Summary struct {
	ID           string
	Title        string
	MessageCount int
	Preview      string
	Current      bool
}

// =============================================================================
// STORE
// =============================================================================

// fileState is the on-disk layout: a single serialized mapping from
// conversation id to conversation record.
type fileState struct {
	Conversations map[string]*model.Conversation `json:"conversations"`
}

// Store owns all conversations and the notion of the current one.
// It is safe for concurrent use.
type Store struct {
	mu sync.Mutex

	path    string
	convs   map[string]*model.Conversation
	current string
	nextSeq int
}

// Open loads the store from path, creating the file on first mutation.
// An empty store immediately allocates one conversation so the system
// always has an active conversation.
func Open(path string) (*Store, error) {
	s := &Store{
		path:  path,
		convs: make(map[string]*model.Conversation),
	}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	if err == nil {
		var state fileState
		if err := json.Unmarshal(data, &state); err != nil {
			return nil, fmt.Errorf("failed to parse history: %w", err)
		}
		if state.Conversations != nil {
			s.convs = state.Conversations
		}
	}

	for _, c := range s.convs {
		if c.Seq >= s.nextSeq {
			s.nextSeq = c.Seq + 1
		}
	}

	if len(s.convs) == 0 {
		if _, err := s.create(); err != nil {
			return nil, err
		}
	} else {
		// Most recently updated conversation becomes current.
		s.current = s.sortedLocked()[0].ID
	}

	return s, nil
}

// persistLocked re-serializes the full store state and writes it
// through atomically. Caller must hold the lock.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(fileState{Conversations: s.convs}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	return util.AtomicWriteFile(s.path, data, 0644)
}

// =============================================================================
// LIFECYCLE OPERATIONS
// =============================================================================

// Create allocates a new conversation with an empty log, makes it
// current and persists immediately.
func (s *Store) Create() (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.create()
}

func (s *Store) create() (*model.Conversation, error) {
	conv := model.NewConversation(s.nextSeq)
	// Millisecond-derived ids can collide when conversations are
	// created back to back; nudge until unique.
	for {
		if _, exists := s.convs[conv.ID]; !exists {
			break
		}
		conv.ID += "x"
	}
	s.nextSeq++
	s.convs[conv.ID] = conv
	s.current = conv.ID
	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return conv, nil
}

// Append appends a message to the conversation's log. If the id no
// longer exists (UI race against delete), the conversation is recreated
// under the same id rather than failing.
func (s *Store) Append(conversationID string, msg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		conv = model.NewConversation(s.nextSeq)
		s.nextSeq++
		conv.ID = conversationID
		s.convs[conversationID] = conv
		if s.current == "" {
			s.current = conversationID
		}
	}

	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = msg.Timestamp
	return s.persistLocked()
}

// Rename sets a conversation's title.
func (s *Store) Rename(conversationID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		return ErrConversationNotFound
	}
	conv.Title = title
	return s.persistLocked()
}

// Delete removes a conversation. Deleting the current conversation
// creates a replacement so the store is never left without an active
// conversation.
func (s *Store) Delete(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.convs[conversationID]; !ok {
		return ErrConversationNotFound
	}
	delete(s.convs, conversationID)

	if s.current == conversationID {
		if _, err := s.create(); err != nil {
			return err
		}
		return nil // create persisted
	}
	return s.persistLocked()
}

// Clear removes all conversations and starts a fresh one.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.convs = make(map[string]*model.Conversation)
	s.current = ""
	_, err := s.create()
	return err
}

// PopLast removes and returns the last message of the conversation.
// Only assistant turns may be retracted; used before regeneration.
func (s *Store) PopLast(conversationID string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		return nil, ErrConversationNotFound
	}
	last := conv.LastMessage()
	if last == nil || last.Role != model.RoleAssistant {
		return nil, ErrNoAssistantTurn
	}

	popped := *last
	conv.Messages = conv.Messages[:len(conv.Messages)-1]
	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	return &popped, nil
}

// =============================================================================
// READ OPERATIONS
// =============================================================================

// Get returns the conversation with the given id.
func (s *Store) Get(conversationID string) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.convs[conversationID]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

// CurrentID returns the id of the active conversation.
func (s *Store) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Current returns the active conversation.
func (s *Store) Current() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.convs[s.current]
}

// SetCurrent switches the active conversation.
func (s *Store) SetCurrent(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.convs[conversationID]; !ok {
		return ErrConversationNotFound
	}
	s.current = conversationID
	return nil
}

// ListByRecency returns conversation summaries sorted descending by
// update timestamp, with creation order as a stable tie-break.
func (s *Store) ListByRecency() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	var summaries []Summary
	for _, conv := range s.sortedLocked() {
		preview := ""
		for _, msg := range conv.Messages {
			if msg.Role == model.RoleUser {
				preview = util.TruncateRunes(util.FirstLine(msg.Content), 80)
				break
			}
		}
		summaries = append(summaries, Summary{
			ID:           conv.ID,
			Title:        conv.Title,
			MessageCount: len(conv.Messages),
			Preview:      preview,
			Current:      conv.ID == s.current,
		})
	}
	return summaries
}

// sortedLocked returns conversations most recent first. Caller must
// hold the lock.
func (s *Store) sortedLocked() []*model.Conversation {
	convs := make([]*model.Conversation, 0, len(s.convs))
	for _, c := range s.convs {
		convs = append(convs, c)
	}
	sort.SliceStable(convs, func(i, j int) bool {
		if !convs[i].UpdatedAt.Equal(convs[j].UpdatedAt) {
			return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
		}
		// Later-created wins the tie so the listing stays stable.
		return convs[i].Seq > convs[j].Seq
	})
	return convs
}
