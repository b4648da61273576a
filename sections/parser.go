// Package sections turns generated newsletter text into a structured Document.
package sections

import (
	"regexp"
	"strings"

	"auto_newsletter_digest/models"
)

type state int

const (
	stateScanning state = iota
	stateInSection
	stateInSynthesis
)

type lineKind int

const (
	kindBlank lineKind = iota
	kindSynthesis
	kindInsight
	kindAction
	kindTitle
	kindText
)

var (
	synthesisLine = regexp.MustCompile(`(?i)^[\s*_#]*key\s+takeaways?[\s*_]*(?:[:.\-][\s*_]*(.*)|$)`)
	insightLine   = regexp.MustCompile(`(?i)^[\s*_]*strategic\s+insight[\s*_]*:[\s*_]*(.*)$`)
	actionLine    = regexp.MustCompile(`(?i)^[\s*_]*your\s+move[\s*_]*:[\s*_]*(.*)$`)
)

// labelled line patterns, checked before the title rule
var labels = []struct {
	kind lineKind
	re   *regexp.Regexp
}{
	{kindSynthesis, synthesisLine},
	{kindInsight, insightLine},
	{kindAction, actionLine},
}

// classify returns the kind of a trimmed line and its payload: the captured
// remainder for labels, the stripped title for titles, the line itself otherwise.
func classify(line string) (lineKind, string) {
	if line == "" {
		return kindBlank, ""
	}
	// labels win over the title rule, so "**Strategic insight: x**" is an insight
	for _, l := range labels {
		if m := l.re.FindStringSubmatch(line); m != nil {
			return l.kind, strings.TrimSpace(strings.TrimRight(m[1], "*_ "))
		}
	}
	if len(line) > 4 && strings.HasPrefix(line, "**") && strings.HasSuffix(line, "**") {
		if title := strings.TrimSpace(strings.Trim(line, "*")); title != "" {
			return kindTitle, title
		}
	}
	return kindText, line
}

type parser struct {
	state     state
	current   *models.Section
	sections  []models.Section
	synthesis []string
	seenSynth bool
}

func (p *parser) finalize() {
	if p.current != nil {
		p.sections = append(p.sections, *p.current)
		p.current = nil
	}
}

func (p *parser) step(kind lineKind, payload string) {
	if kind == kindBlank {
		return
	}
	if p.state == stateInSynthesis {
		p.addSynthesis(payload)
		return
	}

	switch kind {
	case kindSynthesis:
		p.finalize()
		p.state = stateInSynthesis
		p.seenSynth = true
		p.addSynthesis(payload)
	case kindTitle:
		p.finalize()
		p.current = &models.Section{Title: payload}
		p.state = stateInSection
	case kindInsight:
		if p.state == stateInSection {
			p.current.Insight = payload
		}
	case kindAction:
		if p.state == stateInSection {
			p.current.Action = payload
		}
	case kindText:
		if p.state == stateInSection {
			p.current.Body = append(p.current.Body, payload)
		}
	}
}

func (p *parser) addSynthesis(s string) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "**", ""))
	if s != "" {
		p.synthesis = append(p.synthesis, s)
	}
}

// Parse never fails. Text with no recognisable section titles comes back as a
// single untitled section holding the trimmed input.
func Parse(text string) models.Document {
	p := &parser{state: stateScanning}
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		kind, payload := classify(line)
		if p.state == stateInSynthesis {
			// labels lose their meaning once the closing synthesis has started
			payload = line
		}
		p.step(kind, payload)
	}
	p.finalize()

	if len(p.sections) == 0 {
		return models.Document{Sections: []models.Section{{Body: []string{strings.TrimSpace(text)}}}}
	}
	doc := models.Document{Sections: p.sections}
	if p.seenSynth {
		doc.Synthesis = &models.Synthesis{Text: strings.Join(p.synthesis, " ")}
	}
	return doc
}
