// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"bytes"
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

var stripPolicy = bluemonday.StrictPolicy()

// Excerpt derives a plain-text excerpt from markdown content.
// The markdown is rendered, all tags are stripped, whitespace is
// collapsed, and the text is cut at a word boundary within maxLen.
func Excerpt(markdown string, maxLen int) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		// Fall back to the raw text if the markdown does not parse.
		buf.Reset()
		buf.WriteString(markdown)
	}

	text := stripPolicy.Sanitize(buf.String())
	text = html.UnescapeString(text)
	text = strings.Join(strings.Fields(text), " ")

	if maxLen <= 0 || len(text) <= maxLen {
		return text
	}

	// Cut at the last word boundary before the limit.
	cut := text[:maxLen]
	if idx := strings.LastIndexFunc(cut, unicode.IsSpace); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimRightFunc(cut, unicode.IsPunct) + "…"
}
