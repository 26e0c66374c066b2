package service

import (
	"strings"

	"basegraph.app/triage/internal/model"
)

var speakers = map[string]string{
	model.RoleUser:      "Utilisateur",
	model.RoleAssistant: "Assistant",
}

// historyFrom renders structured turns as the plain historique text the
// prompt and triage expect. System turns are skipped, as is a trailing user
// turn equal to the current question.
func historyFrom(turns []model.ConversationTurn, question string) string {
	if n := len(turns); n > 0 && turns[n-1].Role == model.RoleUser && strings.TrimSpace(turns[n-1].Content) == question {
		turns = turns[:n-1]
	}

	var sb strings.Builder
	for _, t := range turns {
		speaker, ok := speakers[t.Role]
		if !ok {
			continue
		}
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(speaker)
		sb.WriteString(" : ")
		sb.WriteString(content)
	}
	return sb.String()
}
