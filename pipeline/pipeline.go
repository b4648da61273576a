// Package pipeline runs one newsletter edition end to end: collect, generate,
// parse, render, deliver, and record the run.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"auto_newsletter_digest/models"
	"auto_newsletter_digest/publisher"
	"auto_newsletter_digest/sections"
)

type Collector interface {
	Collect(ctx context.Context, urls []string) []models.SourceResult
}

type Generator interface {
	Generate(ctx context.Context, items []models.SourceResult, elapsedDays int) (models.GenerationOutcome, error)
}

type Renderer interface {
	Render(doc models.Document, date time.Time) (string, error)
}

type Deliverer interface {
	Send(ctx context.Context, msg publisher.Message) (publisher.Report, error)
}

type RunTracker interface {
	ElapsedDays() int
	RecordSuccessfulRun(now time.Time) error
}

// RunResult summarises one run. HTML and Text are kept for the preview endpoint.
type RunResult struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Preview     bool      `json:"preview"`
	ElapsedDays int       `json:"elapsed_days"`

	SourcesAttempted int `json:"sources_attempted"`
	SourcesSucceeded int `json:"sources_succeeded"`

	Provider string              `json:"provider"`
	Role     models.ProviderRole `json:"role"`

	Subject   string          `json:"subject"`
	Document  models.Document `json:"document"`
	Delivered []string        `json:"delivered,omitempty"`
	Error     string          `json:"error,omitempty"`

	HTML string `json:"-"`
	Text string `json:"-"`
}

type Options struct {
	Sources       []string
	SubjectPrefix string
}

type Pipeline struct {
	opts      Options
	collector Collector
	generator Generator
	renderer  Renderer
	deliverer Deliverer
	tracker   RunTracker
	logger    arbor.ILogger
	now       func() time.Time

	mu   sync.RWMutex
	last *RunResult
}

func New(opts Options, c Collector, g Generator, r Renderer, d Deliverer, t RunTracker, logger arbor.ILogger) *Pipeline {
	return &Pipeline{
		opts:      opts,
		collector: c,
		generator: g,
		renderer:  r,
		deliverer: d,
		tracker:   t,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source, for tests.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Run produces and delivers one edition. The run state is written only after
// every step succeeded; on any earlier error it is left as it was.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	res, log, err := p.compose(ctx, false)
	if err != nil {
		return p.finish(res, err), err
	}
	if p.deliverer == nil {
		err = &models.ConfigurationError{Field: "mail", Reason: "no deliverer configured"}
		return p.finish(res, err), err
	}

	report, err := p.deliverer.Send(ctx, publisher.Message{
		Subject: res.Subject,
		Text:    res.Text,
		HTML:    res.HTML,
		Date:    res.StartedAt,
	})
	res.Delivered = report.Delivered
	if err != nil {
		log.Error().Err(err).Int("delivered", len(report.Delivered)).Msg("Delivery failed, run state unchanged")
		return p.finish(res, err), err
	}

	if err := p.tracker.RecordSuccessfulRun(p.now()); err != nil {
		log.Error().Err(err).Int("delivered", len(report.Delivered)).Msg("Newsletter delivered but run state could not be written")
		err = fmt.Errorf("record run: %w", err)
		return p.finish(res, err), err
	}

	log.Info().
		Int("delivered", len(report.Delivered)).
		Dur("duration", p.now().Sub(res.StartedAt)).
		Msg("Newsletter run complete")
	return p.finish(res, nil), nil
}

// Preview runs everything up to rendering. Nothing is sent and the run state is not touched.
func (p *Pipeline) Preview(ctx context.Context) (*RunResult, error) {
	res, log, err := p.compose(ctx, true)
	if err == nil {
		log.Info().Int("sections", len(res.Document.Sections)).Msg("Preview rendered")
	}
	return p.finish(res, err), err
}

func (p *Pipeline) compose(ctx context.Context, preview bool) (*RunResult, arbor.ILogger, error) {
	res := &RunResult{
		RunID:     uuid.NewString(),
		StartedAt: p.now(),
		Preview:   preview,
	}
	log := p.logger.WithCorrelationId(res.RunID)
	log.Info().Int("sources", len(p.opts.Sources)).Bool("preview", preview).Msg("Newsletter run started")

	results := p.collector.Collect(ctx, p.opts.Sources)
	ok := models.Successful(results)
	res.SourcesAttempted = len(results)
	res.SourcesSucceeded = len(ok)
	if len(ok) == 0 {
		failures := make(map[string]string, len(results))
		for _, r := range results {
			failures[r.URL] = r.Err
		}
		err := &models.CollectionError{Attempted: len(results), Failures: failures}
		log.Error().Err(err).Msg("No sources could be collected")
		return res, log, err
	}
	log.Info().Int("succeeded", len(ok)).Int("attempted", len(results)).Msg("Sources collected")

	res.ElapsedDays = p.tracker.ElapsedDays()

	outcome, err := p.generator.Generate(ctx, ok, res.ElapsedDays)
	if err != nil {
		log.Error().Err(err).Msg("Generation failed")
		return res, log, err
	}
	res.Provider = outcome.Provider
	res.Role = outcome.Role
	res.Text = outcome.Text

	res.Document = sections.Parse(outcome.Text)
	log.Info().
		Str("provider", outcome.Provider).
		Str("role", string(outcome.Role)).
		Int("sections", len(res.Document.Sections)).
		Bool("fallback", res.Document.IsFallback()).
		Msg("Newsletter generated")

	html, err := p.renderer.Render(res.Document, res.StartedAt)
	if err != nil {
		log.Error().Err(err).Msg("Render failed")
		return res, log, err
	}
	res.HTML = html
	res.Subject = publisher.Subject(p.opts.SubjectPrefix, res.StartedAt)
	return res, log, nil
}

func (p *Pipeline) finish(res *RunResult, err error) *RunResult {
	res.FinishedAt = p.now()
	if err != nil {
		res.Error = err.Error()
	}
	p.mu.Lock()
	p.last = res
	p.mu.Unlock()
	return res
}

// LastResult is the most recent run or preview, successful or not; nil before the first.
func (p *Pipeline) LastResult() *RunResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// ElapsedDays reports the interval the next run would cover.
func (p *Pipeline) ElapsedDays() int { return p.tracker.ElapsedDays() }
