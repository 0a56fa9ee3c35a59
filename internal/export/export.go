// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes conversations to shareable files. Markdown is
// the human-facing format; JSON is a faithful dump of the stored
// conversation that can be re-imported.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/neochat/neochat-tui/internal/model"
	"github.com/neochat/neochat-tui/internal/util"
)

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter converts one conversation to a target format.
type Exporter interface {
	Export(conv *model.Conversation) ([]byte, error)

	// FileExtension returns the output extension (e.g. ".md").
	FileExtension() string
}

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is where files are written. Default: current directory.
	OutputDir string

	// IncludeTimestamps includes per-message timestamps.
	IncludeTimestamps bool
}

// DefaultOptions returns the default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeTimestamps: true,
	}
}

// =============================================================================
// FILE WRITING
// =============================================================================

// ToFile exports a conversation and writes it under opts.OutputDir as
// "<title>_<timestamp><ext>". Returns the output path.
func ToFile(conv *model.Conversation, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	content, err := exporter.Export(conv)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("%s_%s%s",
		sanitizeFilename(conv.Title),
		timestamp,
		exporter.FileExtension(),
	)

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	outputPath := filepath.Join(opts.OutputDir, filename)
	if err := util.AtomicWriteFile(outputPath, content, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return outputPath, nil
}

// Markdown exports a conversation to a Markdown file.
func Markdown(conv *model.Conversation, opts *Options) (string, error) {
	return ToFile(conv, NewMarkdownExporter(opts), opts)
}

// JSON exports a conversation to a JSON file.
func JSON(conv *model.Conversation, opts *Options) (string, error) {
	return ToFile(conv, NewJSONExporter(), opts)
}

// =============================================================================
// HELPERS
// =============================================================================

// sanitizeFilename replaces characters that are invalid in filenames
// on either Windows or Unix, and caps the length.
func sanitizeFilename(s string) string {
	runes := []rune(s)
	if len(runes) > 50 {
		s = string(runes[:50])
	}

	replacer := map[rune]rune{
		'/': '-', '\\': '-', ':': '-', '*': '-', '?': '-',
		'"': '-', '<': '-', '>': '-', '|': '-',
		' ': '_', '\t': '_', '\n': '_', '\r': '_',
	}

	var result []rune
	for _, r := range s {
		switch {
		case replacer[r] != 0:
			result = append(result, replacer[r])
		case r < 32 || r == 127:
			result = append(result, '-')
		default:
			result = append(result, r)
		}
	}

	if len(result) == 0 {
		return "conversation"
	}
	return string(result)
}

func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func formatShortTimestamp(t time.Time) string {
	return t.Format("15:04:05")
}
