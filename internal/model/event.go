// Copyright (c) 2025-2026 Verso Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// Event levels
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event categories
const (
	EventCategoryAuth    = "auth"
	EventCategoryPost    = "post"
	EventCategoryVersion = "version"
	EventCategoryUser    = "user"
	EventCategoryMedia   = "media"
	EventCategoryCache   = "cache"
	EventCategorySystem  = "system"
)
