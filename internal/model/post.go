// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model holds domain constants and pure content rules shared by
// the store and service layers.
package model

import "strings"

// Content length bounds enforced on draft saves.
const (
	TitleMinLen   = 2
	TitleMaxLen   = 60
	SummaryMinLen = 10
	SummaryMaxLen = 200
	BioMaxLen     = 500
	TaglineMaxLen = 100
)

// SearchText derives the full-text aggregate for a post from its
// content fields. It is recomputed whenever the fields change and is
// never edited independently.
func SearchText(title, content, summary, slug string) string {
	return strings.Join([]string{title, content, summary, slug}, " ")
}
