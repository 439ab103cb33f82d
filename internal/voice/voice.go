// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package voice defines the speech-to-text hook for message input.
//
// No transcription engine ships with the application. A Transcriber can
// be plugged in where one is available; everywhere else the feature
// reports ErrUnavailable and the UI leaves the microphone affordance
// out.
package voice

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when no transcription engine is installed.
var ErrUnavailable = errors.New("voice input is not available")

// Transcriber converts one spoken utterance into text. Implementations
// block until the utterance ends or ctx is cancelled.
type Transcriber interface {
	Transcribe(ctx context.Context) (string, error)
}

// Unavailable is the Transcriber used when no engine is configured.
type Unavailable struct{}

// Transcribe always reports that voice input is not available.
func (Unavailable) Transcribe(context.Context) (string, error) {
	return "", ErrUnavailable
}

// Available reports whether t is a working transcriber.
func Available(t Transcriber) bool {
	if t == nil {
		return false
	}
	_, isNop := t.(Unavailable)
	return !isNop
}
