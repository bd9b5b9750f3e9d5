// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"strings"
	"testing"
)

func TestIsValidSlug(t *testing.T) {
	valid := []string{"a", "post", "my-first-post", "post-2", "a_b", "2024-review"}
	for _, s := range valid {
		if !IsValidSlug(s) {
			t.Errorf("IsValidSlug(%q) = false, want true", s)
		}
	}

	invalid := []string{"", "-post", "post-", "two--hyphens", "Has Space", "semi;colon", "über"}
	for _, s := range invalid {
		if IsValidSlug(s) {
			t.Errorf("IsValidSlug(%q) = true, want false", s)
		}
	}
}

func validDraftContent() DraftContent {
	return DraftContent{
		Title:   "A Reasonable Title",
		Slug:    "a-reasonable-title",
		Summary: "A summary of adequate length for a post.",
		Content: "Body text.",
	}
}

func TestDraftContentValidate(t *testing.T) {
	if fields := validDraftContent().Validate(); len(fields) > 0 {
		t.Fatalf("valid draft rejected: %v", fields)
	}

	tests := []struct {
		name  string
		mut   func(*DraftContent)
		field string
	}{
		{"title too short", func(d *DraftContent) { d.Title = "x" }, "title"},
		{"title too long", func(d *DraftContent) { d.Title = strings.Repeat("x", TitleMaxLen+1) }, "title"},
		{"bad slug", func(d *DraftContent) { d.Slug = "No Spaces Allowed" }, "slug"},
		{"summary too short", func(d *DraftContent) { d.Summary = "tiny" }, "summary"},
		{"summary too long", func(d *DraftContent) { d.Summary = strings.Repeat("x", SummaryMaxLen+1) }, "summary"},
		{"relative image url", func(d *DraftContent) { d.ImageURL = "images/cat.jpg" }, "imageUrl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraftContent()
			tt.mut(&d)
			fields := d.Validate()
			if _, ok := fields[tt.field]; !ok {
				t.Errorf("fields = %v, want a message for %q", fields, tt.field)
			}
		})
	}

	// Summary and content are optional: an early draft may carry a
	// title and slug only. The summary bounds kick in once one exists.
	d0 := validDraftContent()
	d0.Summary = ""
	d0.Content = ""
	if fields := d0.Validate(); len(fields) > 0 {
		t.Errorf("draft without summary or content rejected: %v", fields)
	}

	// Rune counts, not byte counts: multibyte titles within the limit
	// pass.
	d := validDraftContent()
	d.Title = strings.Repeat("ü", TitleMaxLen)
	if fields := d.Validate(); fields["title"] != "" {
		t.Errorf("multibyte title within limit rejected: %v", fields)
	}

	// Image URLs may be absolute or site-relative.
	d = validDraftContent()
	d.ImageURL = "https://example.com/cat.jpg"
	if fields := d.Validate(); fields["imageUrl"] != "" {
		t.Errorf("absolute image URL rejected: %v", fields)
	}
	d.ImageURL = "/uploads/cat.jpg"
	if fields := d.Validate(); fields["imageUrl"] != "" {
		t.Errorf("site-relative image URL rejected: %v", fields)
	}
}

func TestProfileUpdateValidate(t *testing.T) {
	valid := ProfileUpdate{
		Name:    "Maya Lindqvist",
		Email:   "maya@example.com",
		URL:     "https://maya.example",
		Tagline: "Writes about gardens.",
	}
	if fields := valid.Validate(); len(fields) > 0 {
		t.Fatalf("valid update rejected: %v", fields)
	}

	tests := []struct {
		name  string
		mut   func(*ProfileUpdate)
		field string
	}{
		{"empty name", func(p *ProfileUpdate) { p.Name = " " }, "name"},
		{"bad email", func(p *ProfileUpdate) { p.Email = "not an email" }, "email"},
		{"no tld", func(p *ProfileUpdate) { p.Email = "maya@localhost" }, "email"},
		{"relative url", func(p *ProfileUpdate) { p.URL = "/about" }, "url"},
		{"tagline too long", func(p *ProfileUpdate) { p.Tagline = strings.Repeat("x", TaglineMaxLen+1) }, "tagline"},
		{"bio too long", func(p *ProfileUpdate) { p.Bio = strings.Repeat("x", BioMaxLen+1) }, "bio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mut(&p)
			fields := p.Validate()
			if _, ok := fields[tt.field]; !ok {
				t.Errorf("fields = %v, want a message for %q", fields, tt.field)
			}
		})
	}
}

func TestSearchText(t *testing.T) {
	got := SearchText("Title", "Body text", "Summary", "title")
	want := "Title Body text Summary title"
	if got != want {
		t.Errorf("SearchText = %q, want %q", got, want)
	}
}
