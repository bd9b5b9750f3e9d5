// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Slugs are lowercase word runs joined by single hyphens, no leading or
// trailing hyphen.
var slugPattern = regexp.MustCompile(`^(\w+)((-\w+)+)?$`)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// IsValidSlug reports whether s is acceptable as a post or author slug.
func IsValidSlug(s string) bool {
	return s != "" && slugPattern.MatchString(s)
}

func isValidURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// DraftContent is the author-supplied content of a draft save. It is
// stored verbatim: what an editor submits is exactly what history
// returns.
type DraftContent struct {
	Title    string
	Slug     string
	Summary  string
	Content  string
	ImageURL string
	AuthorID int64

	// Published records whether this edit is being published as it is
	// saved. The flag is part of the immutable version row.
	Published bool
}

// Validate returns per-field messages for every invalid field, empty
// when the draft is acceptable.
func (d DraftContent) Validate() map[string]string {
	fields := make(map[string]string)

	if n := utf8.RuneCountInString(d.Title); n < TitleMinLen || n > TitleMaxLen {
		fields["title"] = fmt.Sprintf("title must be between %d and %d characters", TitleMinLen, TitleMaxLen)
	}
	if !IsValidSlug(d.Slug) {
		fields["slug"] = "slug may only contain word characters separated by single hyphens"
	}
	// Summary and content may be empty; drafts are often saved before
	// either is written. The length bounds apply once a summary exists.
	if d.Summary != "" {
		if n := utf8.RuneCountInString(d.Summary); n < SummaryMinLen || n > SummaryMaxLen {
			fields["summary"] = fmt.Sprintf("summary must be between %d and %d characters", SummaryMinLen, SummaryMaxLen)
		}
	}
	if d.ImageURL != "" && !isValidURL(d.ImageURL) && !strings.HasPrefix(d.ImageURL, "/") {
		fields["imageUrl"] = "image URL must be absolute or site-relative"
	}
	return fields
}

// ProfileUpdate is the editable part of an author profile.
type ProfileUpdate struct {
	Name     string
	Email    string
	ImageURL string
	URL      string
	Tagline  string
	Bio      string
}

// Validate returns per-field messages for every invalid field, empty
// when the update is acceptable.
func (p ProfileUpdate) Validate() map[string]string {
	fields := make(map[string]string)

	if strings.TrimSpace(p.Name) == "" {
		fields["name"] = "name is required"
	}
	if !emailPattern.MatchString(p.Email) {
		fields["email"] = "email address is not valid"
	}
	if p.ImageURL != "" && !isValidURL(p.ImageURL) && !strings.HasPrefix(p.ImageURL, "/") {
		fields["imageUrl"] = "image URL must be absolute or site-relative"
	}
	if p.URL != "" && !isValidURL(p.URL) {
		fields["url"] = "URL must be absolute"
	}
	if utf8.RuneCountInString(p.Tagline) > TaglineMaxLen {
		fields["tagline"] = fmt.Sprintf("tagline must be at most %d characters", TaglineMaxLen)
	}
	if utf8.RuneCountInString(p.Bio) > BioMaxLen {
		fields["bio"] = fmt.Sprintf("bio must be at most %d characters", BioMaxLen)
	}
	return fields
}
