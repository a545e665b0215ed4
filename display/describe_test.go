// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package display

import (
	"errors"
	"testing"

	"github.com/gogpu/scanout/kms/kmstest"
)

func TestDescribe(t *testing.T) {
	dev := kmstest.New()
	r, err := Describe(dev, PreferPrimary)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if r.Err != nil {
		t.Fatalf("Report.Err = %v", r.Err)
	}
	if len(r.Connectors) != 1 || len(r.Connectors[0].Modes) != 2 {
		t.Fatalf("connectors = %+v", r.Connectors)
	}
	if len(r.Planes) != 3 {
		t.Fatalf("planes = %+v, want primary, overlay and cursor", r.Planes)
	}
	types := map[string]bool{}
	for _, p := range r.Planes {
		types[p.Type] = true
	}
	for _, want := range []string{"primary", "overlay", "cursor"} {
		if !types[want] {
			t.Errorf("plane type %q missing", want)
		}
	}
	if r.Mode.Width != 1280 || r.Mode.PlaneID != kmstest.PrimaryPlaneID {
		t.Errorf("selected mode = %+v", r.Mode)
	}
	// Describe never commits.
	if n := dev.Calls().SetCrtc; n != 0 {
		t.Errorf("SetCrtc calls = %d, want 0", n)
	}
}

func TestDescribeDisconnected(t *testing.T) {
	r, err := Describe(kmstest.New(kmstest.WithDisconnected()), PreferPrimary)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if !errors.Is(r.Err, ErrNoConnector) {
		t.Errorf("Report.Err = %v, want ErrNoConnector", r.Err)
	}
}
