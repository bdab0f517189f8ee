// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package slug derives URL-friendly category slugs from names.
package slug

import (
	"regexp"
	"strings"
)

var (
	// nonWord matches anything that is neither a word character nor whitespace.
	// Hyphens count as non-word, so they only come back from whitespace.
	nonWord = regexp.MustCompile(`[^\w\s]`)
	// whitespace matches runs of whitespace, collapsed to a single hyphen.
	whitespace = regexp.MustCompile(`\s+`)
)

// Generate creates a slug from a category name: lowercased, characters other
// than ASCII letters, digits and underscore stripped, whitespace runs replaced
// by one hyphen.
// Example: "Engine Parts & Pistons" → "engine-parts-pistons"
func Generate(s string) string {
	result := strings.ToLower(strings.TrimSpace(s))
	result = nonWord.ReplaceAllString(result, "")
	result = strings.TrimSpace(result)
	result = whitespace.ReplaceAllString(result, "-")
	return result
}
