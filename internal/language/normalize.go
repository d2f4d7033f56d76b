package language

import "strings"

// NormalizeTag canonicalizes a BCP 47 style tag to lowercase subtags joined
// by "-". Blank input or non-alphabetic subtags normalize to "".
func NormalizeTag(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}

	parts := strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == '-' || r == '_'
	})

	subtags := make([]string, 0, len(parts))
	for _, part := range parts {
		if !isAlphaLower(part) {
			return ""
		}
		subtags = append(subtags, part)
	}

	if len(subtags) == 0 {
		return ""
	}
	return strings.Join(subtags, "-")
}

// NormalizeCode returns the primary language subtag (for example, "en" from "en-US").
func NormalizeCode(raw string) string {
	tag := NormalizeTag(raw)
	if tag == "" {
		return ""
	}
	if dash := strings.IndexByte(tag, '-'); dash >= 0 {
		return tag[:dash]
	}
	return tag
}

func isAlphaLower(value string) bool {
	for _, r := range value {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
