package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"auto_newsletter_digest/collector"
	"auto_newsletter_digest/config"
	"auto_newsletter_digest/generator"
	"auto_newsletter_digest/models"
	"auto_newsletter_digest/pipeline"
	"auto_newsletter_digest/publisher"
	"auto_newsletter_digest/schedule"
	"auto_newsletter_digest/server"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file (defaults and environment only when empty)")
	test := flag.Bool("test", false, "generate and render the newsletter without sending it")
	out := flag.String("out", "", "with --test, write the rendered HTML to this file")
	sched := flag.Bool("schedule", false, "run on the configured schedule until interrupted")
	serve := flag.Bool("serve", false, "start the scheduler and the HTTP API")
	addr := flag.String("addr", "", "http listen address when --serve (overrides server.addr)")
	mock := flag.Bool("mock", false, "use the offline mock model instead of Gemini/OpenAI")
	verbose := flag.Bool("v", false, "enable debug logs")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}
	logger := config.NewLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, runMode{test: *test, out: *out, schedule: *sched, serve: *serve, addr: *addr, mock: *mock}); err != nil {
		logger.Error().Err(err).Msg("Newsletter failed")
		os.Exit(1)
	}
}

type runMode struct {
	test     bool
	out      string
	schedule bool
	serve    bool
	addr     string
	mock     bool
}

func run(ctx context.Context, cfg *config.Config, logger arbor.ILogger, mode runMode) error {
	coll := collector.New(collector.Options{
		UserAgent:  cfg.Sources.UserAgent,
		Timeout:    config.Duration(cfg.Sources.Timeout, 30*time.Second),
		FetchDelay: config.Duration(cfg.Sources.FetchDelay, 2*time.Second),
		MaxText:    cfg.Sources.MaxText,
		MaxLinks:   cfg.Sources.MaxLinks,
	}, logger)

	primary, secondary, err := buildProviders(ctx, cfg, mode.mock)
	if err != nil {
		return err
	}
	router := generator.NewRouter(primary, secondary, generator.PromptLimits{
		ExcerptChars:   cfg.Generation.ExcerptChars,
		LinksPerSource: cfg.Generation.LinksPerSource,
	}, logger)

	renderer, err := publisher.NewRenderer(cfg.Mail.SubjectPrefix, "")
	if err != nil {
		return err
	}
	tracker := schedule.NewTracker(cfg.Schedule.StateFile, cfg.Schedule.MinDays, logger)

	var deliverer pipeline.Deliverer
	if !mode.test {
		mailer, err := buildMailer(cfg, logger)
		if err != nil {
			return err
		}
		deliverer = mailer
	}

	p := pipeline.New(pipeline.Options{
		Sources:       cfg.Sources.URLs,
		SubjectPrefix: cfg.Mail.SubjectPrefix,
	}, coll, router, renderer, deliverer, tracker, logger)

	if mode.test {
		res, err := p.Preview(ctx)
		if err != nil {
			return err
		}
		fmt.Println(res.Text)
		if mode.out != "" {
			if err := os.WriteFile(mode.out, []byte(res.HTML), 0o644); err != nil {
				return fmt.Errorf("write preview: %w", err)
			}
			logger.Info().Str("path", mode.out).Msg("Preview written")
		}
		return nil
	}

	if !mode.schedule && !mode.serve {
		_, err := p.Run(ctx)
		return err
	}

	scheduler, err := schedule.NewScheduler(schedule.SchedulerOptions{
		Spec:    cfg.Schedule.Cron,
		CatchUp: cfg.Schedule.CatchUp,
	}, func(ctx context.Context) error {
		_, err := p.Run(ctx)
		return err
	}, tracker, logger)
	if err != nil {
		return err
	}
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer func() { <-scheduler.Stop().Done() }()

	if !mode.serve {
		<-ctx.Done()
		return nil
	}

	srv, err := server.New(scheduler, p, tracker, logger)
	if err != nil {
		return err
	}
	listen := cfg.Server.Addr
	if mode.addr != "" {
		listen = mode.addr
	}
	if listen == "" {
		listen = ":8080"
	}
	return srv.Serve(ctx, listen)
}

// buildProviders picks Gemini as primary when its key is set and only keeps
// OpenAI as the fallback when both keys are present.
func buildProviders(ctx context.Context, cfg *config.Config, mock bool) (generator.Provider, generator.Provider, error) {
	if mock {
		return &generator.MockLLM{}, nil, nil
	}
	settings := func(model, key, baseURL string) *generator.LLMSettings {
		return &generator.LLMSettings{
			Model:       model,
			APIKey:      key,
			BaseURL:     baseURL,
			Timeout:     config.Duration(cfg.Generation.Timeout, 60*time.Second),
			Temperature: cfg.Generation.Temperature,
			MaxTokens:   cfg.Generation.MaxTokens,
		}
	}

	var primary, secondary generator.Provider
	if cfg.Gemini.APIKey != "" {
		gemini, err := generator.NewGeminiLLMFromConfig(ctx, settings(cfg.Gemini.Model, cfg.Gemini.APIKey, ""))
		if err != nil {
			return nil, nil, err
		}
		primary = gemini
	}
	if cfg.OpenAI.APIKey != "" {
		openai, err := generator.NewOpenAILLMFromConfig(settings(cfg.OpenAI.Model, cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL))
		if err != nil {
			return nil, nil, err
		}
		secondary = openai
	}
	if primary == nil && secondary == nil {
		return nil, nil, &models.ConfigurationError{Field: "gemini.api_key", Reason: "set GEMINI_API_KEY or OPENAI_API_KEY"}
	}
	return primary, secondary, nil
}

func buildMailer(cfg *config.Config, logger arbor.ILogger) (*publisher.Mailer, error) {
	transport, err := publisher.NewSMTPTransport(publisher.SMTPConfig{
		Host:        cfg.Mail.Host,
		Port:        cfg.Mail.Port,
		Username:    cfg.Mail.Username,
		Password:    cfg.Mail.Password,
		DialTimeout: config.Duration(cfg.Mail.DialTimeout, 30*time.Second),
	})
	if err != nil {
		return nil, err
	}
	return publisher.NewMailer(publisher.MailerConfig{
		From:       cfg.Mail.From,
		FromName:   cfg.Mail.FromName,
		Recipients: cfg.Mail.Recipients,
	}, transport, logger)
}
