package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/docassist/backend/internal/storage/models"
)

func TestComposeNoContextPassesThrough(t *testing.T) {
	raw := "what is the refund policy?"

	assert.Equal(t, raw, Compose(raw, NoContext()))
}

func TestComposeHistory(t *testing.T) {
	turns := []models.ChatTurn{
		{Query: "what is X?", Response: "X is..."},
	}

	got := Compose("and Y?", HistoryContext(turns))

	want := "Previous conversation context:\n" +
		"Human: what is X?\n" +
		"Assistant: X is...\n\n" +
		"Current question: and Y?"
	assert.Equal(t, want, got)
}

func TestComposeHistoryKeepsTurnOrder(t *testing.T) {
	turns := []models.ChatTurn{
		{Query: "first question", Response: "first answer"},
		{Query: "second question", Response: "second answer"},
	}

	got := Compose("third question", HistoryContext(turns))

	want := "Previous conversation context:\n" +
		"Human: first question\n" +
		"Assistant: first answer\n" +
		"Human: second question\n" +
		"Assistant: second answer\n\n" +
		"Current question: third question"
	assert.Equal(t, want, got)
}

func TestComposeCustomContext(t *testing.T) {
	got := Compose("what about enterprise plans?", CustomContext("Focus on pricing"))

	assert.Equal(t, "Additional context: Focus on pricing\nQuestion: what about enterprise plans?", got)
}

func TestEmptySourcesDegradeToNoContext(t *testing.T) {
	raw := "plain question"

	assert.Equal(t, raw, Compose(raw, HistoryContext(nil)))
	assert.Equal(t, raw, Compose(raw, CustomContext("")))
	assert.False(t, HistoryContext(nil).IsHistory())
}

func TestHistoryContextIsHistory(t *testing.T) {
	turns := []models.ChatTurn{{Query: "q", Response: "a"}}

	assert.True(t, HistoryContext(turns).IsHistory())
	assert.False(t, CustomContext("text").IsHistory())
	assert.False(t, NoContext().IsHistory())
}
