// Package validation holds input rules shared by services and request decoding.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxTitleLength        = 300
	MaxTopicContentLength = 50000
	MaxReplyContentLength = 10000
	MaxTags               = 10
	MaxTagLength          = 32
)

var tagRegex = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N} _.+#-]*$`)

// NormalizeTitle trims the title and checks it is present and short enough.
func NormalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", errors.New("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", fmt.Errorf("title too long (max %d characters)", MaxTitleLength)
	}
	return title, nil
}

// ValidateContent checks that body text is non-blank and at most max characters.
func ValidateContent(content string, max int) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("content is required")
	}
	if utf8.RuneCountInString(content) > max {
		return fmt.Errorf("content too long (max %d characters)", max)
	}
	return nil
}

// ValidateTag checks a single tag's shape.
func ValidateTag(tag string) error {
	if tag == "" {
		return errors.New("tags cannot be empty")
	}
	if utf8.RuneCountInString(tag) > MaxTagLength {
		return fmt.Errorf("tag %q is too long (max %d characters)", tag, MaxTagLength)
	}
	if !tagRegex.MatchString(tag) {
		return fmt.Errorf("tag %q contains invalid characters", tag)
	}
	return nil
}

// NormalizeTags trims each tag, rejects malformed ones and drops
// case-insensitive duplicates, keeping the first spelling and the input order.
func NormalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, raw := range tags {
		tag := strings.TrimSpace(raw)
		if err := ValidateTag(tag); err != nil {
			return nil, err
		}
		key := strings.ToLower(tag)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	if len(out) > MaxTags {
		return nil, fmt.Errorf("too many tags (max %d)", MaxTags)
	}
	return out, nil
}
