// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mention parses @[display](id) session references out of
// message text. Mention-capable inputs emit that markup for each
// referenced chat; the backend wants the referenced IDs separately and
// the message body with only the @display form left in.
package mention

import (
	"regexp"
	"strings"
)

var (
	// markupRe matches one @[display](id) reference.
	markupRe = regexp.MustCompile(`@\[(.*?)\]\((.*?)\)`)

	// escapeRe matches backslash-escaped brackets and parens some mention
	// editors insert around the markup.
	escapeRe = regexp.MustCompile(`\\([\[\]()])`)
)

// Parse extracts session mentions from raw input text. It returns the
// display text, with each reference collapsed to "@display", and the
// referenced session IDs in order of appearance. The display text is
// trimmed of surrounding whitespace.
func Parse(input string) (text string, ids []string) {
	unescaped := escapeRe.ReplaceAllString(input, "$1")

	for _, m := range markupRe.FindAllStringSubmatch(unescaped, -1) {
		ids = append(ids, m[2])
	}

	text = markupRe.ReplaceAllString(unescaped, "@$1")
	return strings.TrimSpace(text), ids
}

// HasMention reports whether the input contains at least one reference.
func HasMention(input string) bool {
	return markupRe.MatchString(escapeRe.ReplaceAllString(input, "$1"))
}
