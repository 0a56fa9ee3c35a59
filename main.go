// neochat - a terminal client for the NeoChat assistant backend.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/neochat/neochat-tui/internal/backend"
	"github.com/neochat/neochat-tui/internal/camera"
	"github.com/neochat/neochat-tui/internal/cli"
	"github.com/neochat/neochat-tui/internal/config"
	"github.com/neochat/neochat-tui/internal/dispatch"
	"github.com/neochat/neochat-tui/internal/orchestrator"
	"github.com/neochat/neochat-tui/internal/router"
	"github.com/neochat/neochat-tui/internal/store"
	"github.com/neochat/neochat-tui/internal/ui/chat"
	"github.com/neochat/neochat-tui/internal/voice"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "config file path (default ~/.neochat/config.toml)")
		backendURL  = flag.String("backend", "", "backend base URL override")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("neochat %s (%s, %s)\n", Version, GitCommit, BuildDate)
		return
	}

	if !cli.IsTTY() {
		fmt.Fprintln(os.Stderr, "neochat needs an interactive terminal")
		os.Exit(1)
	}

	if err := run(*configPath, *backendURL); err != nil {
		fmt.Fprintf(os.Stderr, "neochat: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, backendURL string) error {
	// Configuration
	if configPath == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return fmt.Errorf("resolve config path: %w", err)
		}
		configPath = p
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if backendURL != "" {
		cfg.Backend.BaseURL = backendURL
	}

	// Logging goes to a file; stdout belongs to the TUI.
	logger, closeLog, err := openLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	logger.Printf("neochat %s starting, backend %s", Version, cfg.Backend.BaseURL)

	// Conversation store
	historyPath := cfg.HistoryPath
	if historyPath == "" {
		dir, err := config.Dir()
		if err != nil {
			return fmt.Errorf("resolve history path: %w", err)
		}
		historyPath = filepath.Join(dir, "history.json")
	}
	st, err := store.Open(historyPath)
	if err != nil {
		return fmt.Errorf("open conversation store: %w", err)
	}

	// Backend client and pipeline
	client := backend.NewClient(cfg.Backend.BaseURL).
		WithTimeout(time.Duration(cfg.Backend.TimeoutSecs) * time.Second).
		WithRateLimit(cfg.Backend.RequestsPerSec)

	var camDevice camera.Device
	if dev := camera.NewExecDevice(cfg.Camera.CaptureCommand); dev != nil {
		camDevice = dev
	}
	cam := camera.NewController(camDevice)

	var recognizer voice.Recognizer
	if r := voice.NewExecRecognizer(cfg.Voice.ListenCommand); r != nil {
		recognizer = r
	}
	var speaker voice.Speaker
	if s := voice.NewExecSpeaker(cfg.Voice.SpeakCommand); s != nil {
		speaker = s
	}
	voiceCtl := voice.NewController(recognizer, speaker)

	session := orchestrator.New(st, router.New(client), dispatch.New(client, cam), logger)

	// TUI
	m := chat.New(chat.Deps{
		Config:   cfg,
		Session:  session,
		Store:    st,
		Camera:   cam,
		Voice:    voiceCtl,
		Uploader: client,
		Logger:   logger,
	})

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	// Config hot reload feeds the running program.
	watcher, err := config.NewWatcher(configPath, func(updated *config.Config) {
		logger.Printf("configuration reloaded from %s", configPath)
		p.Send(chat.ConfigReloadedMsg{Config: updated})
	})
	if err != nil {
		logger.Printf("config watcher unavailable: %v", err)
	} else {
		if err := watcher.Watch(); err != nil {
			logger.Printf("config watcher failed: %v", err)
		}
		defer watcher.Close()
	}

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run TUI: %w", err)
	}
	logger.Printf("neochat exiting")
	return nil
}

// openLogger opens the debug log file, creating its directory. A
// failure to open the log falls back to discarding output rather than
// blocking startup.
func openLogger(cfg *config.Config) (*log.Logger, func(), error) {
	path := cfg.LogPath
	if path == "" {
		dir, err := config.Dir()
		if err != nil {
			return nil, nil, fmt.Errorf("resolve log path: %w", err)
		}
		path = filepath.Join(dir, "neochat.log")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return log.New(io.Discard, "", 0), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return log.New(io.Discard, "", 0), func() {}, nil
	}

	logger := log.New(f, "", log.LstdFlags)
	return logger, func() { _ = f.Close() }, nil
}
