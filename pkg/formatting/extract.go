package formatting

import (
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?[ \t]*\r?\n?(.*?)\r?\n?```")

// ExtractTagged returns the trimmed content between the first <tag> and the
// following </tag>. Tag matching ignores ASCII case and runs on the original
// bytes, so offsets stay valid whatever the surrounding text holds.
func ExtractTagged(content, tag string) (string, bool) {
	open := "<" + tag + ">"
	closing := "</" + tag + ">"

	start := indexFold(content, open)
	if start < 0 {
		return "", false
	}
	start += len(open)

	end := indexFold(content[start:], closing)
	if end < 0 {
		return "", false
	}

	return strings.TrimSpace(content[start : start+end]), true
}

// indexFold is strings.Index with ASCII case folding. Non-ASCII bytes only
// match themselves.
func indexFold(s, sub string) int {
	n := len(sub)
	for i := 0; i+n <= len(s); i++ {
		if equalFoldASCII(s[i:i+n], sub) {
			return i
		}
	}
	return -1
}

func equalFoldASCII(a, b string) bool {
	for i := 0; i < len(a); i++ {
		if lowerASCII(a[i]) != lowerASCII(b[i]) {
			return false
		}
	}
	return true
}

func lowerASCII(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

// ExtractFenced returns the body of the first markdown code fence, with or
// without a json language tag.
func ExtractFenced(content string) (string, bool) {
	matches := fencePattern.FindStringSubmatch(content)
	if len(matches) < 2 {
		return "", false
	}
	return strings.TrimSpace(matches[1]), true
}

// ExtractObject returns the first balanced {...} span in content. Braces inside
// JSON string literals do not count toward balance.
func ExtractObject(content string) (string, bool) {
	start := strings.IndexByte(content, '{')
	for start >= 0 {
		if end, ok := matchBrace(content, start); ok {
			return content[start : end+1], true
		}
		next := strings.IndexByte(content[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
