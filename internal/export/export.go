// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes chat transcripts to plain text files.
package export

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/privgpt-studio/privgpt-tui/internal/model"
	"github.com/privgpt-studio/privgpt-tui/internal/util"
)

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is the directory where files will be saved.
	// Default: current working directory
	OutputDir string

	// OpenAfterExport opens the file in the default application.
	OpenAfterExport bool
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:       ".",
		OpenAfterExport: false,
	}
}

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

// unknownTime is shown for messages without a timestamp.
const unknownTime = "Unknown Time"

// Render produces the plain text transcript for a session. The layout is
// shared with stored exports from other clients of the same backend, so
// the header and message lines are fixed.
func Render(session model.ChatSession, messages []*model.Message, exportedAt time.Time) string {
	var b strings.Builder

	b.WriteString("CHATBOT CONVERSATION\n")
	b.WriteString("====================================\n\n")
	fmt.Fprintf(&b, "Session ID: %s\n", session.ID)
	fmt.Fprintf(&b, "Session Name: %s\n", session.Name)
	fmt.Fprintf(&b, "Exported At: %s\n\n", exportedAt.Format("1/2/2006, 3:04:05 PM"))
	b.WriteString("------------------------------------\n\n")

	for _, msg := range messages {
		ts := unknownTime
		if !msg.Timestamp.IsZero() {
			ts = msg.Timestamp.Format("3:04:05 PM")
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n\n", ts, msg.Role.DisplayName(), msg.Content)
	}

	return b.String()
}

// Filename returns the export filename for a session. The session name
// is reduced to lowercase alphanumerics with underscores, matching
// exports produced elsewhere.
func Filename(session model.ChatSession) string {
	return fmt.Sprintf("chat_%s_%s.txt", sanitizeName(session.Name), session.ID)
}

// ExportToFile renders the transcript and writes it under opts.OutputDir.
// Returns the output file path.
func ExportToFile(session model.ChatSession, messages []*model.Message, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}

	content := Render(session, messages, time.Now())
	outputPath := filepath.Join(dir, Filename(session))

	if err := util.AtomicWriteFile(outputPath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}

	if opts.OpenAfterExport {
		if err := openFile(outputPath); err != nil {
			// Non-fatal - the file was still created.
			fmt.Printf("Warning: Could not open file: %v\n", err)
		}
	}

	return outputPath, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeName lowercases the session name and replaces every
// non-alphanumeric rune with an underscore.
func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "unnamed"
	}
	return b.String()
}

// openFile opens a file in the default application for the OS.
func openFile(path string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", `""`, path)
	case "darwin":
		cmd = exec.Command("open", path)
	case "linux":
		cmd = exec.Command("xdg-open", path)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
