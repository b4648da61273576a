package publisher

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"auto_newsletter_digest/models"
)

//go:embed templates/newsletter.html
var templateFS embed.FS

// DateLayout is used in the subject line and the footer.
const DateLayout = "January 02, 2006"

const (
	DefaultTitle    = "MBT Newsletter"
	DefaultSubtitle = "Tech & Business Insights for Ambitious Students"
)

// Renderer turns a parsed Document into the HTML mail body.
type Renderer struct {
	Title    string
	Subtitle string

	md   goldmark.Markdown
	page *template.Template
}

func NewRenderer(title, subtitle string) (*Renderer, error) {
	if title == "" {
		title = DefaultTitle
	}
	if subtitle == "" {
		subtitle = DefaultSubtitle
	}
	r := &Renderer{
		Title:    title,
		Subtitle: subtitle,
		// goldmark drops raw HTML unless WithUnsafe is set
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
	page, err := template.New("newsletter.html").Funcs(template.FuncMap{
		"markdown": r.markdown,
		"verbatim": verbatim,
	}).ParseFS(templateFS, "templates/newsletter.html")
	if err != nil {
		return nil, fmt.Errorf("parse newsletter template: %w", err)
	}
	r.page = page
	return r, nil
}

type pageData struct {
	Title     string
	Subtitle  string
	Date      string
	Sections  []models.Section
	Synthesis *models.Synthesis

	IsFallback bool
	Fallback   string
}

// Render produces the complete HTML page for doc, dated date.
func (r *Renderer) Render(doc models.Document, date time.Time) (string, error) {
	data := pageData{
		Title:     r.Title,
		Subtitle:  r.Subtitle,
		Date:      date.Format(DateLayout),
		Sections:  doc.Sections,
		Synthesis: doc.Synthesis,
	}
	if doc.IsFallback() {
		data.IsFallback = true
		data.Fallback = strings.Join(doc.Sections[0].Body, "\n")
		data.Sections = nil
	}

	var buf bytes.Buffer
	if err := r.page.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render newsletter: %w", err)
	}
	return buf.String(), nil
}

func (r *Renderer) markdown(s string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(s), &buf); err != nil {
		return "", err
	}
	return template.HTML(strings.TrimSpace(buf.String())), nil
}

// verbatim escapes s and keeps its line structure: blank lines split
// paragraphs, single newlines become <br>.
func verbatim(s string) template.HTML {
	escaped := template.HTMLEscapeString(s)
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	escaped = strings.ReplaceAll(escaped, "\n\n", "</p><p>")
	escaped = strings.ReplaceAll(escaped, "\n", "<br>")
	return template.HTML(escaped)
}

// Subject formats the mail subject for a run on date.
func Subject(prefix string, date time.Time) string {
	if prefix == "" {
		prefix = DefaultTitle
	}
	return fmt.Sprintf("%s - %s", prefix, date.Format(DateLayout))
}
