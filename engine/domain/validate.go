package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const maxKeywordLength = 100

// validPlatform reports whether the platform is known. Qualified forms
// like "x:live" or "facebook:groups" are accepted.
func validPlatform(platform string) bool {
	if ValidPlatforms[platform] {
		return true
	}
	for base := range ValidPlatforms {
		if strings.HasPrefix(platform, base+":") {
			return true
		}
	}
	return false
}

// ValidatePost checks a collected post before it enters the pipeline.
func ValidatePost(p Post) error {
	if strings.TrimSpace(p.Text) == "" {
		return NewValidationError("text", p.Text, ErrEmptyText)
	}
	if !validPlatform(p.Platform) {
		return NewValidationError("platform", p.Platform, ErrUnknownPlatform)
	}
	if strings.TrimSpace(p.Keyword) == "" {
		return NewValidationError("keyword", p.Keyword, ErrMissingKeyword)
	}
	return nil
}

// ValidateKeyword checks a search keyword before a scrape job is queued.
func ValidateKeyword(kw string) error {
	trimmed := strings.TrimSpace(kw)
	if trimmed == "" {
		return NewValidationError("keyword", kw, ErrMissingKeyword)
	}
	if utf8.RuneCountInString(trimmed) > maxKeywordLength {
		return NewValidationError("keyword", trimmed, ErrKeywordTooLong)
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return NewValidationError("keyword", trimmed, ErrKeywordInvalid)
		}
	}
	return nil
}
