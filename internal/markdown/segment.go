// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package markdown splits assistant text into typed segments for
// structured progressive rendering.
//
// Segmentation is purely textual: fenced code regions are delimited by
// triple backticks with an optional language tag, the first closing
// fence terminates a block, and nothing is parsed recursively. Segments
// are derived at render time and never persisted.
package markdown

import "strings"

// =============================================================================
// SEGMENT TYPE
// =============================================================================

// Kind tags a segment variant.
type Kind int

const (
	// KindText is prose rendered through the markdown renderer.
	KindText Kind = iota
	// KindCode is a fenced code block rendered raw with syntax
	// highlighting applied once complete.
	KindCode
)

// DefaultLanguage is assumed for fences without a language tag.
const DefaultLanguage = "plaintext"

// Segment is one typed chunk of assistant text.
type Segment struct {
	Kind     Kind
	Language string // set for code segments only
	Body     string
}

// =============================================================================
// SPLITTING
// =============================================================================

// Split scans text for fenced code regions and returns the ordered
// segment sequence. A well-formed fence is "```" plus an optional
// word-character language tag, a newline, the body, and a closing
// newline-"```". Anything else, including an unterminated fence, is
// treated as plain text.
func Split(text string) []Segment {
	var segs []Segment

	start := 0  // beginning of the pending text span
	search := 0 // scan position
	for {
		open := strings.Index(text[search:], "```")
		if open < 0 {
			break
		}
		open += search

		nl := strings.IndexByte(text[open+3:], '\n')
		if nl < 0 {
			break // no language line terminator: rest is text
		}
		lang := text[open+3 : open+3+nl]
		if !isLanguageTag(lang) {
			// Not a fence opener; keep scanning past the backticks.
			search = open + 3
			continue
		}

		bodyStart := open + 3 + nl + 1
		closing := strings.Index(text[bodyStart:], "\n```")
		if closing < 0 {
			break // unterminated fence degrades to plain text
		}

		if open > start {
			segs = append(segs, Segment{Kind: KindText, Body: text[start:open]})
		}

		language := strings.TrimSpace(lang)
		if language == "" {
			language = DefaultLanguage
		}
		segs = append(segs, Segment{
			Kind:     KindCode,
			Language: language,
			Body:     text[bodyStart : bodyStart+closing],
		})

		start = bodyStart + closing + 4
		search = start
	}

	if start < len(text) {
		segs = append(segs, Segment{Kind: KindText, Body: text[start:]})
	}
	return segs
}

// isLanguageTag reports whether s is a valid fence language tag:
// word characters only (letters, digits, underscore), possibly empty.
func isLanguageTag(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_':
		default:
			return false
		}
	}
	return true
}
