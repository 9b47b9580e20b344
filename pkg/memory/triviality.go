package memory

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// A single speaker token followed by whitespace, so clock times such as
	// "6:30" never read as a prefix.
	speakerPrefix = regexp.MustCompile(`^\s*[\p{L}\p{N}_.-]{1,32}:\s+`)

	greetings = map[string]bool{
		"hi": true, "hello": true, "hey": true, "yo": true,
		"ok": true, "okay": true, "k": true,
		"thanks": true, "thank you": true, "thx": true,
		"bye": true, "goodbye": true,
		"yes": true, "no": true, "sure": true, "cool": true,
		"lol": true, "hmm": true, "good morning": true, "good night": true,
	}
)

// IsTrivial reports whether text is too insubstantial to store. It is pure
// string work and never calls a collaborator.
func IsTrivial(text string, minLength int) bool {
	s := speakerPrefix.ReplaceAllString(text, "")
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimRight(s, ".!?,;~ ")

	if greetings[s] {
		return true
	}
	return utf8.RuneCountInString(s) < minLength
}
