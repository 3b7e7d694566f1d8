package query

import (
	"fmt"
	"strings"

	"github.com/docassist/backend/internal/storage/models"
)

type contextKind int

const (
	contextNone contextKind = iota
	contextHistory
	contextCustom
)

// ContextSource is the single optional context applied to a query: prior
// conversation turns, administrator custom context, or nothing. The two
// sources are mutually exclusive and history always wins; callers pick one
// explicitly instead of the composer guessing from what happens to be set.
type ContextSource struct {
	kind   contextKind
	turns  []models.ChatTurn
	custom string
}

func NoContext() ContextSource {
	return ContextSource{kind: contextNone}
}

// HistoryContext builds a source from conversation turns, most-recent-last.
// An empty history degrades to no context.
func HistoryContext(turns []models.ChatTurn) ContextSource {
	if len(turns) == 0 {
		return NoContext()
	}
	return ContextSource{kind: contextHistory, turns: turns}
}

// CustomContext builds a source from administrator-supplied text. Empty
// text degrades to no context.
func CustomContext(text string) ContextSource {
	if text == "" {
		return NoContext()
	}
	return ContextSource{kind: contextCustom, custom: text}
}

func (s ContextSource) IsHistory() bool {
	return s.kind == contextHistory
}

// Compose merges the raw question with at most one context source into the
// enhanced retrieval query. With no context the raw query passes through
// verbatim.
func Compose(rawQuery string, source ContextSource) string {
	switch source.kind {
	case contextHistory:
		var lines []string
		for _, turn := range source.turns {
			lines = append(lines, fmt.Sprintf("Human: %s", turn.Query))
			lines = append(lines, fmt.Sprintf("Assistant: %s", turn.Response))
		}
		return fmt.Sprintf("Previous conversation context:\n%s\n\nCurrent question: %s",
			strings.Join(lines, "\n"), rawQuery)

	case contextCustom:
		return fmt.Sprintf("Additional context: %s\nQuestion: %s", source.custom, rawQuery)

	default:
		return rawQuery
	}
}
