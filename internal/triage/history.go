package triage

import (
	"regexp"
	"strings"
)

// MaxUserLines bounds how far back user-authored history can satisfy a marker.
const MaxUserLines = 6

var speakerPrefix = regexp.MustCompile(`^\s*(utilisateur|user|client|visiteur|moi|assistant|bot|ia|agent|conseiller)\s*:`)

var assistantSpeakers = map[string]bool{
	"assistant":  true,
	"bot":        true,
	"ia":         true,
	"agent":      true,
	"conseiller": true,
}

// userLines keeps the last MaxUserLines lines written by the user. A line
// without a speaker prefix belongs to the previous speaker; text before any
// prefix is attributed to the user. history must already be folded.
func userLines(history string) string {
	var kept []string
	assistant := false
	for _, line := range strings.Split(history, "\n") {
		if m := speakerPrefix.FindStringSubmatch(line); m != nil {
			assistant = assistantSpeakers[m[1]]
			line = line[len(m[0]):]
		}
		if assistant || strings.TrimSpace(line) == "" {
			continue
		}
		kept = append(kept, line)
	}
	if len(kept) > MaxUserLines {
		kept = kept[len(kept)-MaxUserLines:]
	}
	return strings.Join(kept, "\n")
}
