package resolver

import (
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// Placeholders returns the distinct placeholder names in path, in the order
// they first appear.
func Placeholders(path string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(path, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		names = append(names, m[1])
	}
	return names
}

// HasPlaceholders reports whether path still contains a {name} token
func HasPlaceholders(path string) bool {
	return placeholderPattern.MatchString(path)
}

// Substitute replaces every {name} token in path with value
func Substitute(path, name, value string) string {
	return strings.ReplaceAll(path, "{"+name+"}", value)
}
