// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package logging provides structured diagnostics for mistral commands.
//
// It wraps a global zap logger that is silent unless a level is given with
// --log-level or MISTRAL_LOG_LEVEL. Command output stays on stdout; log
// entries go to stderr, or to a rotated JSON file when --log-file is set.
//
//	if err := logging.Initialize(logging.Options{Level: "debug"}); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
//	logging.LogFrame("structured", codes, err)
//
// All logging functions are safe for concurrent use.
package logging
