package glob

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	t.Run("StarMatchesAnySuffix", func(t *testing.T) {
		assert.True(t, Match("*.txt", "report.txt"))
		assert.False(t, Match("*.txt", "report.csv"))
	})

	t.Run("QuestionMarkMatchesSingleRune", func(t *testing.T) {
		assert.True(t, Match("file?.go", "file1.go"))
		assert.False(t, Match("file?.go", "file12.go"))
	})

	t.Run("BracketClassMatchesSet", func(t *testing.T) {
		assert.True(t, Match("[abc].txt", "a.txt"))
		assert.False(t, Match("[abc].txt", "d.txt"))
	})

	t.Run("BracketRangeMatches", func(t *testing.T) {
		assert.True(t, Match("file[0-9].txt", "file5.txt"))
		assert.False(t, Match("file[0-9].txt", "filex.txt"))
	})

	t.Run("NegatedBracketClass", func(t *testing.T) {
		assert.True(t, Match("[!abc].txt", "d.txt"))
		assert.False(t, Match("[!abc].txt", "a.txt"))
	})

	t.Run("LeadingStarDoesNotMatchLeadingDot", func(t *testing.T) {
		assert.False(t, Match("*", ".hidden"))
		assert.True(t, Match(".*", ".hidden"))
	})

	t.Run("LeadingQuestionMarkDoesNotMatchLeadingDot", func(t *testing.T) {
		assert.False(t, Match("?hidden", ".hidden"))
	})

	t.Run("LiteralPatternRequiresExactMatch", func(t *testing.T) {
		assert.True(t, Match("readme.md", "readme.md"))
		assert.False(t, Match("readme.md", "README.md"))
	})
}
