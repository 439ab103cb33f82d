// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strconv"
	"strings"
)

// =============================================================================
// FILE ATTACHMENT
// =============================================================================

// FileKind classifies an attachment for presentation.
type FileKind int

const (
	FileOther FileKind = iota
	FileImage
	FileDocument
)

// FileRef describes a file attached to an outgoing message.
//
// Data holds the raw bytes until the transport takes them; the message keeps
// only the descriptive fields afterwards.
type FileRef struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`

	data []byte
}

// NewFileRef creates a FileRef holding the given bytes.
func NewFileRef(name, mimeType string, data []byte) *FileRef {
	return &FileRef{
		Name:     name,
		Size:     int64(len(data)),
		MimeType: mimeType,
		data:     data,
	}
}

// TakeData returns the attachment bytes and releases the local reference.
// The descriptive fields (Name, Size, MimeType) remain valid.
func (f *FileRef) TakeData() []byte {
	data := f.data
	f.data = nil
	return data
}

// HasData reports whether the bytes are still held locally.
func (f *FileRef) HasData() bool {
	return f.data != nil
}

// Kind classifies the attachment by MIME type.
func (f *FileRef) Kind() FileKind {
	switch {
	case strings.HasPrefix(f.MimeType, "image/"):
		return FileImage
	case strings.HasPrefix(f.MimeType, "text/"),
		f.MimeType == "application/pdf",
		f.MimeType == "application/json":
		return FileDocument
	default:
		return FileOther
	}
}

// FormatSize renders the size as a human-readable string.
func (f *FileRef) FormatSize() string {
	const unit = 1024
	size := f.Size
	if size < unit {
		return strconv.FormatInt(size, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	whole := size / div
	frac := (size % div) * 10 / div
	return strconv.FormatInt(whole, 10) + "." + strconv.FormatInt(frac, 10) + " " + []string{"KB", "MB", "GB", "TB"}[exp]
}
