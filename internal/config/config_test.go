// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package config

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestOn(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"", false},
		{"0", false},
		{"00", false},
		{"0ff", false},
		{"1", true},
		{"yes", true},
		{"true", true},
		{" ", true},
		{"off", true}, // only a leading '0' disables
	}
	for _, tt := range tests {
		if got := on(tt.value); got != tt.want {
			t.Errorf("on(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	env := map[string]string{
		EnvTestPattern:  "1",
		EnvForceFlush:   "0",
		EnvUseOverlay:   "yes",
		EnvNoVBlankSync: "",
	}
	got := Parse(func(k string) string { return env[k] })
	want := Flags{TestPattern: true, UseOverlay: true}
	if got != want {
		t.Errorf("Parse = %+v, want %+v", got, want)
	}
}

func TestLoadCached(t *testing.T) {
	t.Setenv(EnvTestPattern, "1")
	first := Load()
	t.Setenv(EnvTestPattern, "0")
	if second := Load(); second != first {
		t.Errorf("Load changed after environment update: %+v then %+v", first, second)
	}
}

func TestLogValue(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))
	l.Info("flags", "debug", Flags{ForceFlush: true})
	out := buf.String()
	for _, want := range []string{"debug.force_flush=on", "debug.test_pattern=off", "debug.no_vblank_sync=off"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}
