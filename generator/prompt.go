package generator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"auto_newsletter_digest/models"
)

// Prompt is the provider-agnostic pair of instructions sent to a model.
type Prompt struct {
	System string
	User   string
}

// PromptLimits bounds how much of each source reaches the model.
type PromptLimits struct {
	ExcerptChars   int
	LinksPerSource int
}

// DefaultPromptLimits matches the generation defaults in config.
var DefaultPromptLimits = PromptLimits{ExcerptChars: 2000, LinksPerSource: 5}

// SystemPrompt fixes persona, format and length. The section parser depends on the
// labels it asks for: bold titles, "Strategic insight:", "Your move:" and "**Key takeaways:**".
const SystemPrompt = `You are a sharp, insightful tech analyst writing for an ambitious business-and-technology student who wants to stay ahead of the curve in AI and business innovation.

YOUR MISSION:
Find the 4-6 stories that reveal WHERE the industry is moving, not just WHAT happened, or stories that sit at the intersection of business and technology. Prioritize depth over breadth.

For each story, answer:
1. What's the REAL story behind the headline?
2. What does this signal about market shifts, competitive dynamics, or emerging opportunities?
3. What should a business-tech student DO with this information?

FORMAT (4-6 topics max):

**[Compelling, specific title - not generic]**

[3-4 sentences that tell the full story with context, nuance, and implications. One sentence per line.]

Strategic insight: [One sharp, opinionated observation about what this means for the industry, competitive landscape, or business models.]

Your move: [One concrete, actionable takeaway: skills to build, companies or products to watch, questions to explore.]

WRITING STYLE:
- Conversational but intelligent, active voice, vivid language
- No corporate jargon ("leverage", "ecosystem", "paradigm shift")
- Be specific: numbers, names, concrete examples
- Challenge conventional wisdom when appropriate

FOCUS AREAS (in priority order):
1. AI breakthroughs with real business impact
2. Tech companies making bold strategic moves
3. Emerging business models disrupting traditional industries
4. Innovation in fintech, enterprise software, or developer tools
5. Startup funding and exits that signal market trends

AVOID: bias, generic statements, obvious insights, feature lists without impact, stories that are interesting but not actionable.

END WITH:
**Key takeaways:** [2-3 sentences connecting the stories into a bigger narrative about where tech and business are heading.]

CRITICAL FORMATTING RULES:
- Topic titles use ** for bold, on their own line
- "Strategic insight:" and "Your move:" are PLAIN TEXT labels (no bold, no asterisks)
- End with "**Key takeaways:**" exactly

Keep total length 500-650 words. Make every sentence count.`

// BuildPrompt serializes the successful items into the analysis request for the
// given cadence. Failed items are skipped.
func BuildPrompt(items []models.SourceResult, elapsedDays int, limits PromptLimits) Prompt {
	if limits.ExcerptChars <= 0 {
		limits.ExcerptChars = DefaultPromptLimits.ExcerptChars
	}
	if limits.LinksPerSource < 0 {
		limits.LinksPerSource = 0
	}

	var sources strings.Builder
	n := 0
	for _, item := range items {
		if !item.Success {
			continue
		}
		n++
		sources.WriteString(fmt.Sprintf("[%d] Source: %s\n", n, item.URL))
		sources.WriteString("Content: ")
		sources.WriteString(excerpt(item.Text, limits.ExcerptChars))
		sources.WriteString("\n")
		links := item.Links
		if len(links) > limits.LinksPerSource {
			links = links[:limits.LinksPerSource]
		}
		if len(links) > 0 {
			sources.WriteString("Headlines:\n")
			for _, l := range links {
				sources.WriteString(fmt.Sprintf("- %s (%s)\n", l.Title, l.URL))
			}
		}
		sources.WriteString("\n")
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Analyze these tech news sources from the past %d days. ", elapsedDays))
	sb.WriteString("Find the 3-4 stories with the deepest strategic implications for someone building a career in business + AI.\n\n")
	sb.WriteString("SOURCES:\n\n")
	sb.WriteString(sources.String())
	sb.WriteString("Focus on:\n")
	sb.WriteString("- What's genuinely NEW or SURPRISING (not just incremental updates)\n")
	sb.WriteString("- Stories that reveal competitive dynamics or market shifts\n")
	sb.WriteString("- Developments that create opportunities for students/professionals\n")
	sb.WriteString("- Insights that challenge conventional thinking\n\n")
	sb.WriteString("Be ruthless: skip stories that are surface-level or already widely understood.")

	return Prompt{
		System: SystemPrompt,
		User:   sb.String(),
	}
}

func excerpt(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
