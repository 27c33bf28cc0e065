// Package confirm decides whether a mutating action needs a yes/no answer
// and classifies the answer.
package confirm

import "strings"

// Answer is a classified reply to a confirmation prompt.
type Answer int

const (
	// Other is neither yes nor no.
	Other Answer = iota
	Yes
	No
)

func (a Answer) String() string {
	switch a {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "other"
	}
}

var (
	yesTokens = map[string]bool{
		"yes": true, "y": true, "yeah": true, "yep": true, "yup": true,
		"sure": true, "ok": true, "okay": true,
	}
	noTokens = map[string]bool{
		"no": true, "n": true, "nope": true, "nah": true, "cancel": true,
	}
)

// ShouldConfirm reports whether a mutating action must wait for a yes/no.
// Every mutating path asks this rather than testing the flag itself.
func ShouldConfirm(autoConfirm bool) bool {
	return !autoConfirm
}

// Classify maps free text to Yes, No or Other. The whole message must be a
// token; "yes please" is Other.
func Classify(text string) Answer {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.TrimRight(t, ".!?")
	switch {
	case yesTokens[t]:
		return Yes
	case noTokens[t]:
		return No
	default:
		return Other
	}
}

// IsCancel reports whether text is the bare word "cancel".
func IsCancel(text string) bool {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(text)), ".!") == "cancel"
}
