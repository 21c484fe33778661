package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDescriptionLineMatchesSpecFormat(t *testing.T) {
	got, ok := ParseDescriptionLine("Description (openai, gpt-4o): a red bicycle leaning on a wall")
	assert.True(t, ok)
	assert.Equal(t, "openai", got.Source)
	assert.Equal(t, "gpt-4o", got.Model)
	assert.Equal(t, "a red bicycle leaning on a wall", got.Text)
}

func TestParseDescriptionLineRejectsOtherLines(t *testing.T) {
	_, ok := ParseDescriptionLine("plan: blend A and B")
	assert.False(t, ok)
}

func TestQuoteArgQuotesWhitespaceAndBackslashes(t *testing.T) {
	assert.Equal(t, "plain.jpg", quoteArg("plain.jpg"))
	assert.Equal(t, `"has space.jpg"`, quoteArg("has space.jpg"))
	assert.Equal(t, `"a\"b"`, quoteArg(`a"b`))
}

func TestIsRunningReflectsState(t *testing.T) {
	s := &Session{}
	assert.False(t, s.IsRunning())
	assert.False(t, s.IsSpawning())
}
