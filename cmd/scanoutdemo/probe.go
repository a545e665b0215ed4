// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	errorsGo "github.com/go-errors/errors"
	"github.com/spf13/cobra"

	"github.com/gogpu/scanout/display"
	"github.com/gogpu/scanout/kms"
)

func init() { rootCmd.AddCommand(probeCmd) }

var probeOverlay bool

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "list connectors, modes and planes",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		run(probe)
	},
}

func init() {
	probeCmd.Flags().BoolVar(&probeOverlay, "overlay", false, "resolve an overlay plane")
}

func probe() error {
	card, err := kms.OpenCard(deviceFlag)
	if err != nil {
		return errorsGo.Wrap(err, 0)
	}
	defer card.Close()

	pref := display.PreferPrimary
	if probeOverlay {
		pref = display.PreferOverlay
	}
	r, err := display.Describe(card, pref)
	if err != nil {
		return errorsGo.Wrap(err, 0)
	}
	printReport(os.Stdout, deviceFlag, r)
	return nil
}

func printReport(w io.Writer, path string, r *display.Report) {
	fmt.Fprintf(w, "%s\n", path)
	for _, c := range r.Connectors {
		state := "disconnected"
		if c.Connection == kms.Connected {
			state = "connected"
		}
		fmt.Fprintf(w, "  connector %d (type %d) %s\n", c.ID, c.Type, state)
		for _, m := range c.Modes {
			mark := ""
			if m.Preferred() {
				mark = " *"
			}
			fmt.Fprintf(w, "    %s%s\n", m.String(), mark)
		}
	}
	for _, p := range r.Planes {
		fmt.Fprintf(w, "  plane %d %s crtcs=%#x formats=%s\n",
			p.ID, p.Type, p.PossibleCRTCs, strings.Join(p.Formats, ","))
	}
	if r.Err != nil {
		fmt.Fprintf(w, "  selection: %v\n", r.Err)
		return
	}
	fmt.Fprintf(w, "  selection: %s\n", r.Mode.String())
}
