// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Mistral - split air conditioner IR remote toolkit
//
// Encodes and decodes the 70-code IR frames of the remote, and talks to an
// IR bridge to capture and transmit them.

package main

import (
	"os"

	"github.com/Thermoquad/mistral/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
