// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "testing"

func TestNewTheme_ForcedModes(t *testing.T) {
	dark := NewTheme("dark")
	if !dark.IsDark {
		t.Error("dark mode must force a dark palette")
	}
	if dark.GlamourStyle() != "dark" {
		t.Errorf("GlamourStyle = %q", dark.GlamourStyle())
	}

	light := NewTheme("light")
	if light.IsDark {
		t.Error("light mode must force a light palette")
	}
	if light.GlamourStyle() != "light" {
		t.Errorf("GlamourStyle = %q", light.GlamourStyle())
	}
}

func TestNewTheme_StylesInitialized(t *testing.T) {
	th := NewTheme("dark")

	// Spot-check that the core styles carry their accents.
	if th.UserBubble.GetBorderTopForeground() != Cyan {
		t.Error("user bubble should be cyan-bordered")
	}
	if th.AssistantBubble.GetBorderTopForeground() != Purple {
		t.Error("assistant bubble should be purple-bordered")
	}
	if th.FailureBubble.GetBorderTopForeground() != Rose {
		t.Error("failure bubble should be rose-bordered")
	}
	if !th.ToggleOn.GetBold() {
		t.Error("active toggle should be bold")
	}
}
