package sections

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auto_newsletter_digest/models"
)

const sample = `Here is this week's edition.

**Chip export rules tighten again**
Washington added three more fabs to the list.
Suppliers expect a quarter of delays.
Strategic insight: Vertical integration is back in fashion.
Your move: Audit which of your vendors rely on a single fab.

**Retail media networks keep growing**
Every large retailer now sells ads against purchase data.
Strategic insight: First-party data is the moat.

**Key takeaways:** The cost of **owning** the stack is falling.
Distribution still decides who wins.
`

func TestParseSections(t *testing.T) {
	doc := Parse(sample)

	require.Len(t, doc.Sections, 2)
	first := doc.Sections[0]
	assert.Equal(t, "Chip export rules tighten again", first.Title)
	assert.Equal(t, []string{
		"Washington added three more fabs to the list.",
		"Suppliers expect a quarter of delays.",
	}, first.Body)
	assert.Equal(t, "Vertical integration is back in fashion.", first.Insight)
	assert.Equal(t, "Audit which of your vendors rely on a single fab.", first.Action)

	second := doc.Sections[1]
	assert.Equal(t, "Retail media networks keep growing", second.Title)
	assert.Equal(t, "First-party data is the moat.", second.Insight)
	assert.Empty(t, second.Action)

	require.NotNil(t, doc.Synthesis)
	assert.Equal(t, "The cost of owning the stack is falling. Distribution still decides who wins.", doc.Synthesis.Text)
	assert.False(t, doc.IsFallback())
}

func TestParseRoundTrip(t *testing.T) {
	for _, n := range []int{1, 3, 5} {
		t.Run(fmt.Sprintf("%d sections", n), func(t *testing.T) {
			var b strings.Builder
			for i := 1; i <= n; i++ {
				fmt.Fprintf(&b, "**Story %d**\nParagraph %d.\nStrategic insight: insight %d\nYour move: move %d\n\n", i, i, i, i)
			}
			b.WriteString("Key takeaways: all together now")

			doc := Parse(b.String())
			require.Len(t, doc.Sections, n)
			for i, s := range doc.Sections {
				assert.Equal(t, fmt.Sprintf("Story %d", i+1), s.Title)
				assert.Equal(t, []string{fmt.Sprintf("Paragraph %d.", i+1)}, s.Body)
				assert.Equal(t, fmt.Sprintf("insight %d", i+1), s.Insight)
				assert.Equal(t, fmt.Sprintf("move %d", i+1), s.Action)
			}
			require.NotNil(t, doc.Synthesis)
			assert.Equal(t, "all together now", doc.Synthesis.Text)
		})
	}
}

func TestParseFallback(t *testing.T) {
	tests := []struct {
		name  string
		input string
		body  string
	}{
		{"plain prose", "  Nothing structured here.\nJust two lines.  \n", "Nothing structured here.\nJust two lines."},
		{"only labels", "Strategic insight: orphan\nYour move: orphan", "Strategic insight: orphan\nYour move: orphan"},
		{"empty", "", ""},
		{"synthesis only", "Key takeaways: lonely", "Key takeaways: lonely"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Parse(tt.input)
			require.Len(t, doc.Sections, 1)
			assert.True(t, doc.IsFallback())
			assert.Equal(t, []string{tt.body}, doc.Sections[0].Body)
			assert.Nil(t, doc.Synthesis)
		})
	}
}

func TestParseDropsLabelsBeforeFirstTitle(t *testing.T) {
	doc := Parse("Strategic insight: too early\nintro text\n**Real story**\nbody")
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "Real story", doc.Sections[0].Title)
	assert.Empty(t, doc.Sections[0].Insight)
	assert.Equal(t, []string{"body"}, doc.Sections[0].Body)
}

func TestParseLastLabelWins(t *testing.T) {
	doc := Parse("**Story**\nStrategic insight: first\nStrategic insight: second")
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, "second", doc.Sections[0].Insight)
}

func TestParseSynthesisIsTerminal(t *testing.T) {
	doc := Parse("**Story**\nbody\n**Key Takeaways**\n**Not a title**\nStrategic insight: not an insight")
	require.Len(t, doc.Sections, 1)
	assert.Equal(t, []string{"body"}, doc.Sections[0].Body)
	assert.Empty(t, doc.Sections[0].Insight)
	require.NotNil(t, doc.Synthesis)
	assert.Equal(t, "Not a title Strategic insight: not an insight", doc.Synthesis.Text)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		line    string
		kind    lineKind
		payload string
	}{
		{"", kindBlank, ""},
		{"**Key takeaways:** rest", kindSynthesis, "rest"},
		{"## KEY TAKEAWAY - rest", kindSynthesis, "rest"},
		{"Key takeaways.", kindSynthesis, ""},
		{"**Strategic insight:** bold label", kindInsight, "bold label"},
		{"**Strategic insight: x**", kindInsight, "x"},
		{"_Your move_: call them", kindAction, "call them"},
		{"**A title**", kindTitle, "A title"},
		{"****", kindText, "****"},
		{"*****", kindText, "*****"},
		{"**bold** start only", kindText, "**bold** start only"},
		{"Key takeaway items are overrated", kindText, "Key takeaway items are overrated"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			kind, payload := classify(tt.line)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.payload, payload)
		})
	}
}

func TestParseAlwaysRenderable(t *testing.T) {
	inputs := []string{"", "\n\n", "**", "**Key takeaways:**", "random *** text"}
	for _, in := range inputs {
		doc := Parse(in)
		assert.NotEmpty(t, doc.Sections, "input %q", in)
		assert.IsType(t, models.Document{}, doc)
	}
}
