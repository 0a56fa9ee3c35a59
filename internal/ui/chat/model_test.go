// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/neochat/neochat-tui/internal/backend"
	"github.com/neochat/neochat-tui/internal/camera"
	"github.com/neochat/neochat-tui/internal/config"
	"github.com/neochat/neochat-tui/internal/model"
	"github.com/neochat/neochat-tui/internal/orchestrator"
	"github.com/neochat/neochat-tui/internal/router"
	"github.com/neochat/neochat-tui/internal/store"
	"github.com/neochat/neochat-tui/internal/voice"
)

type stubClassifier struct{}

func (stubClassifier) Classify(ctx context.Context, text string) (router.RouteDecision, error) {
	return router.RouteDecision{Intent: router.IntentChat, Score: 0.9, Threshold: 0.7}, nil
}

type stubDispatcher struct{ reply string }

func (s stubDispatcher) DispatchFile(ctx context.Context, up backend.Upload) (string, error) {
	return "detected " + up.Name, nil
}

func (s stubDispatcher) Dispatch(ctx context.Context, text string, dec router.RouteDecision, webSearch bool) (string, error) {
	return s.reply, nil
}

func (s stubDispatcher) Conversational(ctx context.Context, text string, intent router.Intent, webSearch bool) (string, error) {
	return s.reply, nil
}

type stubRecognizer struct{ transcript string }

func (s stubRecognizer) Listen(ctx context.Context) (string, error) {
	return s.transcript, nil
}

type stubUploader struct{ uploads []backend.Upload }

func (s *stubUploader) UploadDoc(ctx context.Context, up backend.Upload) error {
	s.uploads = append(s.uploads, up)
	return nil
}

func newTestModel(t *testing.T) Model {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	st, err := store.Open(filepath.Join(t.TempDir(), "history.json"))
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	session := orchestrator.New(st, stubClassifier{}, stubDispatcher{reply: "hello"}, nil)

	return New(Deps{
		Config:  cfg,
		Session: session,
		Store:   st,
		Camera:  camera.NewController(nil),
		Voice:   voice.NewController(nil, nil),
	})
}

func TestNew_ShowsWelcome(t *testing.T) {
	m := newTestModel(t)
	if !strings.Contains(m.View(), "NeoChat") {
		t.Error("welcome view missing brand")
	}
}

func TestSubmit_EmptyInputIsNoop(t *testing.T) {
	m := newTestModel(t)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	nm := next.(Model)
	if cmd != nil || nm.busy {
		t.Error("empty submit must do nothing")
	}
}

func TestSubmit_SetsBusyAndIssuesCommand(t *testing.T) {
	m := newTestModel(t)
	m.input.SetValue("hello there")

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	nm := next.(Model)
	if !nm.busy {
		t.Error("submit must mark the model busy")
	}
	if cmd == nil {
		t.Fatal("submit must issue a pipeline command")
	}
	if nm.input.Value() != "" {
		t.Error("input must reset on submit")
	}
}

func TestFileAttachCommand(t *testing.T) {
	m := newTestModel(t)

	path := filepath.Join(t.TempDir(), "photo.jpg")
	if err := os.WriteFile(path, []byte("jpegdata"), 0o644); err != nil {
		t.Fatal(err)
	}

	m.input.SetValue("/file " + path)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	nm := next.(Model)

	if nm.pendingFile == nil {
		t.Fatal("attach must stage the file")
	}
	if nm.pendingFile.name != "photo.jpg" {
		t.Errorf("staged name = %q", nm.pendingFile.name)
	}
	if nm.pendingFile.mime != "image/jpeg" {
		t.Errorf("staged mime = %q", nm.pendingFile.mime)
	}
	if !strings.Contains(nm.status, "photo.jpg") {
		t.Errorf("status = %q, want attach confirmation", nm.status)
	}
}

func TestFileAttach_MissingFile(t *testing.T) {
	m := newTestModel(t)
	m.input.SetValue("/file /does/not/exist.png")
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	nm := next.(Model)
	if nm.pendingFile != nil {
		t.Error("missing file must not be staged")
	}
	if !strings.Contains(nm.status, "cannot read file") {
		t.Errorf("status = %q", nm.status)
	}
}

func TestTurnComplete_StartsTypewriter(t *testing.T) {
	m := newTestModel(t)
	m.busy = true

	turn := orchestrator.Turn{
		UserMessage:      model.NewUserMessage("hi"),
		AssistantMessage: model.NewAssistantMessage("hello back"),
	}
	next, cmd := m.Update(TurnCompleteMsg{Turn: turn})
	nm := next.(Model)

	if nm.busy {
		t.Error("turn completion must clear the busy flag")
	}
	if nm.active == nil {
		t.Fatal("turn completion must start a render session")
	}
	if cmd == nil {
		t.Error("turn completion must schedule the first tick")
	}
}

func TestTypewriterTick_StaleSeqIgnored(t *testing.T) {
	m := newTestModel(t)
	turn := orchestrator.Turn{AssistantMessage: model.NewAssistantMessage("text")}
	next, _ := m.Update(TurnCompleteMsg{Turn: turn})
	nm := next.(Model)

	// A tick tagged with an old sequence must not advance the session.
	before := nm.active.State()
	next2, cmd := nm.Update(TypewriterTickMsg{Seq: nm.renderSeq - 1})
	nm2 := next2.(Model)
	if cmd != nil {
		t.Error("stale tick must not reschedule")
	}
	if nm2.active.State() != before {
		t.Error("stale tick must not advance the session")
	}
}

func TestToggleWeb_FlipsSessionFlag(t *testing.T) {
	m := newTestModel(t)
	if m.session.WebSearch() {
		t.Fatal("web search should start off")
	}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlW})
	nm := next.(Model)
	if !nm.session.WebSearch() {
		t.Error("ctrl+w must enable web search")
	}
	if !nm.cfg.UI.WebSearch {
		t.Error("toggle must update the config for persistence")
	}
}

func TestToggleVoice_Unsupported(t *testing.T) {
	m := newTestModel(t)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlV})
	nm := next.(Model)
	if cmd != nil {
		t.Error("unsupported voice must not start listening")
	}
	if !strings.Contains(nm.status, "not available") {
		t.Errorf("status = %q", nm.status)
	}
}

func TestRenameCommand(t *testing.T) {
	m := newTestModel(t)

	m.input.SetValue("/rename Weekend plans")
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	nm := next.(Model)

	if got := nm.store.Current().Title; got != "Weekend plans" {
		t.Errorf("title = %q, want %q", got, "Weekend plans")
	}
	if !strings.Contains(nm.status, "renamed") {
		t.Errorf("status = %q", nm.status)
	}
}

func TestDeleteCommand_CreatesReplacement(t *testing.T) {
	m := newTestModel(t)
	old := m.store.Current()
	if err := m.store.Append(old.ID, model.NewUserMessage("hi")); err != nil {
		t.Fatal(err)
	}

	m.input.SetValue("/delete")
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	nm := next.(Model)

	cur := nm.store.Current()
	if cur == nil {
		t.Fatal("deleting the current conversation must create a replacement")
	}
	if cur.ID == old.ID {
		t.Error("replacement must be a fresh conversation")
	}
	if !cur.Empty() {
		t.Error("replacement must start empty")
	}
	if got := len(nm.store.ListByRecency()); got != 1 {
		t.Errorf("conversations after delete = %d, want 1", got)
	}
}

func TestClearCommand(t *testing.T) {
	m := newTestModel(t)
	for i := 0; i < 3; i++ {
		if _, err := m.store.Create(); err != nil {
			t.Fatal(err)
		}
	}

	m.input.SetValue("/clear")
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	nm := next.(Model)

	if got := len(nm.store.ListByRecency()); got != 1 {
		t.Errorf("conversations after clear = %d, want 1", got)
	}
	if !nm.store.Current().Empty() {
		t.Error("clear must leave one empty conversation")
	}
}

func TestUploadCommand_IndexesDocument(t *testing.T) {
	m := newTestModel(t)
	up := &stubUploader{}
	m.uploader = up

	path := filepath.Join(t.TempDir(), "manual.txt")
	if err := os.WriteFile(path, []byte("warranty terms"), 0o644); err != nil {
		t.Fatal(err)
	}

	m.input.SetValue("/upload " + path)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	nm := next.(Model)
	if cmd == nil {
		t.Fatal("upload must issue a command")
	}

	done, ok := cmd().(UploadDoneMsg)
	if !ok {
		t.Fatal("upload command must yield an UploadDoneMsg")
	}
	if done.Err != nil {
		t.Fatal(done.Err)
	}
	if len(up.uploads) != 1 || up.uploads[0].Name != "manual.txt" {
		t.Errorf("uploads = %+v", up.uploads)
	}

	next2, _ := nm.Update(done)
	nm2 := next2.(Model)
	if !strings.Contains(nm2.status, "indexed") {
		t.Errorf("status = %q", nm2.status)
	}
}

func TestUploadCommand_Unavailable(t *testing.T) {
	m := newTestModel(t)
	m.input.SetValue("/upload somewhere.txt")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	nm := next.(Model)
	if cmd != nil {
		t.Error("upload without an uploader must not issue a command")
	}
	if !strings.Contains(nm.status, "not available") {
		t.Errorf("status = %q", nm.status)
	}
}

func TestTranscript_SilenceKeepsListening(t *testing.T) {
	m := newTestModel(t)
	m.voice = voice.NewController(stubRecognizer{}, nil)
	if err := m.voice.SetEnabled(true); err != nil {
		t.Fatal(err)
	}

	next, cmd := m.Update(TranscriptMsg{Text: ""})
	nm := next.(Model)
	if cmd == nil {
		t.Fatal("silence with voice mode armed must schedule another listen")
	}
	if nm.busy {
		t.Error("silence must not start the pipeline")
	}
	if !strings.Contains(nm.status, "listening") {
		t.Errorf("status = %q", nm.status)
	}

	// With voice mode off, silence just reports itself.
	m2 := newTestModel(t)
	next2, cmd2 := m2.Update(TranscriptMsg{Text: ""})
	nm2 := next2.(Model)
	if cmd2 != nil {
		t.Error("silence with voice mode off must not re-listen")
	}
	if !strings.Contains(nm2.status, "heard nothing") {
		t.Errorf("status = %q", nm2.status)
	}
}

func TestWelcomeListsRecentConversations(t *testing.T) {
	m := newTestModel(t)
	old := m.store.Current()
	if err := m.store.Rename(old.ID, "Older chat"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.store.Create(); err != nil {
		t.Fatal(err)
	}

	view := m.welcomeView()
	if !strings.Contains(view, "Older chat") {
		t.Error("welcome view must list other conversations")
	}

	// A lone conversation gets no list.
	m2 := newTestModel(t)
	if strings.Contains(m2.welcomeView(), "Recent conversations") {
		t.Error("a single conversation must not produce a list")
	}
}

func TestView_NarrowTerminal(t *testing.T) {
	m := newTestModel(t)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 30, Height: 20})
	nm := next.(Model)
	if !strings.Contains(nm.View(), "narrow") {
		t.Error("sub-minimum width must show the resize notice")
	}
}

func TestEscFastForwardsActiveSession(t *testing.T) {
	m := newTestModel(t)
	turn := orchestrator.Turn{AssistantMessage: model.NewAssistantMessage("long reply text")}
	next, _ := m.Update(TurnCompleteMsg{Turn: turn})
	nm := next.(Model)

	next2, _ := nm.Update(tea.KeyMsg{Type: tea.KeyEscape})
	nm2 := next2.(Model)
	if !nm2.active.Done() {
		t.Error("esc must fast-forward the active session")
	}
}
