package parser

import (
	"regexp"
	"strings"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([\p{L}][\p{L}\p{N}_/-]*)`)

// ExtractTags returns the distinct #tags in text, in order of appearance.
func ExtractTags(text string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, m := range tagRe.FindAllStringSubmatch(text, -1) {
		t := strings.ToLower(m[1])
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
