package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scottring/family-planner-sub006/pkg/ai"
	"github.com/scottring/family-planner-sub006/pkg/analysis"
	"github.com/scottring/family-planner-sub006/pkg/api"
	"github.com/scottring/family-planner-sub006/pkg/capture"
	"github.com/scottring/family-planner-sub006/pkg/command"
	"github.com/scottring/family-planner-sub006/pkg/db"
	"github.com/scottring/family-planner-sub006/pkg/family"
	"github.com/scottring/family-planner-sub006/pkg/integration/calendar"
	"github.com/scottring/family-planner-sub006/pkg/integration/discord"
	"github.com/scottring/family-planner-sub006/pkg/integration/drive"
	"github.com/scottring/family-planner-sub006/pkg/integration/gmail"
	"github.com/scottring/family-planner-sub006/pkg/integration/google"
	"github.com/scottring/family-planner-sub006/pkg/integration/sms"
	"github.com/scottring/family-planner-sub006/pkg/integration/telegram"
	"github.com/scottring/family-planner-sub006/pkg/metrics"
	"github.com/scottring/family-planner-sub006/pkg/ocr"
	"github.com/scottring/family-planner-sub006/pkg/reprocess"
	gitsync "github.com/scottring/family-planner-sub006/pkg/sync"
	"github.com/scottring/family-planner-sub006/pkg/vault"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the capture API, channel bots and background workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	now := func() time.Time { return time.Now().In(loc) }

	database, err := db.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()
	if err := database.InitSchema(); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	repo := db.NewRepository(database)

	recorder := metrics.New()
	roster := family.NewCache(repo, cfg.Pipeline.RosterTTL, cfg.Pipeline.RosterCacheSize)

	opts := []capture.Option{
		capture.WithRoster(roster),
		capture.WithAnalyzerTimeout(cfg.Pipeline.AnalyzerTimeout),
		capture.WithAutoConvert(cfg.Pipeline.AutoConvertThreshold),
		capture.WithRecorder(recorder),
		capture.WithLogger(logger),
		capture.WithClock(now),
	}

	// Generative analysis is optional; without it captures are still
	// analyzed by the rule-based and statistical analyzers.
	var generative analysis.Analyzer
	if cfg.AI.Provider != "" && cfg.AI.APIKey != "" {
		gen, err := ai.New(ctx, cfg.AI.Provider, cfg.AI.APIKey, cfg.AI.Model)
		if err != nil {
			logger.Warn("generative analysis disabled", "provider", cfg.AI.Provider, "error", err)
		} else {
			defer gen.Close()
			generative = analysis.NewGenerative(gen)
			logger.Info("generative analysis enabled", "provider", cfg.AI.Provider)
		}
	}
	opts = append(opts, capture.WithAnalyzers(analysis.Statistical{}, generative))

	engine, closeEngine, err := ocrEngine(ctx)
	if err != nil {
		logger.Warn("ocr disabled", "engine", cfg.OCR.Engine, "error", err)
	}
	defer closeEngine()
	var processor *ocr.Processor
	if engine != nil {
		processor = ocr.NewProcessor(engine, cfg.OCR.Timeout, logger)
	}
	opts = append(opts, capture.WithOCR(processor, cfg.UploadDir))

	if cfg.Export.Dir != "" {
		var committer vault.Committer
		if cfg.Export.Git {
			git := gitsync.NewGitManager(cfg.Export.Dir, cfg.Export.Push, logger)
			git.SSHKeyPath = cfg.Export.SSHKeyPath
			committer = git
		}
		opts = append(opts, capture.WithSinks(vault.NewExporter(cfg.Export.Dir, committer, logger)))
		logger.Info("markdown export enabled", "dir", cfg.Export.Dir, "git", cfg.Export.Git)
	}

	// late is filled in once the manager exists; the email monitor is both
	// a manager option and a manager client.
	late := &lateCaptures{}
	var monitor *gmail.Monitor
	if creds := cfg.Google.CredentialsFile; creds != "" {
		calendarAPI, err := calendar.NewService(ctx, cfg.Google.CalendarID, google.ClientOptions(creds, google.ScopeCalendar)...)
		if err != nil {
			logger.Warn("calendar sync disabled", "error", err)
		} else {
			opts = append(opts, capture.WithSinks(calendar.NewSink(calendarAPI, repo)))
			logger.Info("calendar sync enabled", "calendar", cfg.Google.CalendarID)
		}

		monitor, err = gmailMonitor(ctx, creds, late, repo)
		if err != nil {
			logger.Warn("email capture disabled", "error", err)
		} else {
			opts = append(opts, capture.WithSettingsListener(monitor))
		}
	}

	manager := capture.NewManager(repo, opts...)
	late.Manager = manager

	if monitor != nil {
		owners, err := repo.EmailOwners(ctx)
		if err != nil {
			logger.Error("failed to load email owners", "error", err)
		}
		for _, s := range owners {
			monitor.Start(s)
		}
		defer monitor.StopAll()
	}

	commands := command.NewInterpreter(manager, repo,
		command.WithLocation(loc),
		command.WithClock(now),
		command.WithLogger(logger),
	)
	fetcher := sms.NewHTTPFetcher("", "")

	if token := cfg.Telegram.Token; token != "" {
		tgBot, err := telegram.NewBot(token, cfg.Telegram.Owners, commands, manager, fetcher, logger)
		if err != nil {
			logger.Error("failed to create telegram bot", "error", err)
		} else if err := tgBot.Start(); err != nil {
			logger.Error("failed to start telegram bot", "error", err)
		} else {
			logger.Info("telegram bot started")
			defer tgBot.Stop()
		}
	}

	if token := cfg.Discord.Token; token != "" {
		bot, err := discord.NewBot(token, cfg.Discord.Owners, commands, manager, fetcher, logger)
		if err != nil {
			logger.Error("failed to create discord bot", "error", err)
		} else if err := bot.Start(); err != nil {
			logger.Error("failed to start discord bot", "error", err)
		} else {
			logger.Info("discord bot started")
			defer bot.Stop()
		}
	}

	if creds := cfg.Google.CredentialsFile; creds != "" && (cfg.Google.DriveFolderID != "" || cfg.Google.BackupFolderID != "") {
		stopDrive := startDrive(ctx, creds, manager, repo)
		defer stopDrive()
	}

	rp := reprocess.NewService(repo, manager, cfg.Reprocess.Interval,
		reprocess.WithMaxAttempts(cfg.Reprocess.MaxAttempts),
		reprocess.WithLogger(logger),
		reprocess.WithClock(now),
	)
	rp.Start(ctx)
	defer rp.Stop()

	handler := &api.Handler{
		Captures: manager,
		Family:   repo,
		Roster:   roster,
		Planner:  repo,
		SMS:      sms.NewHandler(manager, commands, sms.NewHTTPFetcher(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken), logger),
		Metrics:  recorder.Handler(),
		Location: loc,
		Logger:   logger,
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func ocrEngine(ctx context.Context) (ocr.Engine, func(), error) {
	noop := func() {}
	switch cfg.OCR.Engine {
	case "http":
		return ocr.NewHTTPEngine(cfg.OCR.Endpoint), noop, nil
	case "gemini":
		e, err := ocr.NewGeminiEngine(ctx, cfg.OCR.APIKey, cfg.OCR.Model)
		if err != nil {
			return nil, noop, err
		}
		return e, func() { e.Close() }, nil
	}
	return nil, noop, nil
}

type lateCaptures struct {
	*capture.Manager
}

func gmailMonitor(ctx context.Context, creds string, captures gmail.Captures, repo *db.Repository) (*gmail.Monitor, error) {
	var subject string
	if strings.Contains(cfg.Google.GmailUser, "@") {
		subject = cfg.Google.GmailUser
	}
	client, err := google.NewHTTPClient(ctx, creds, subject, google.ScopeGmail)
	if err != nil {
		return nil, err
	}
	mailbox, err := gmail.NewService(ctx, client)
	if err != nil {
		return nil, err
	}
	return gmail.NewMonitor(mailbox, captures, repo, cfg.Google.GmailUser, logger), nil
}

// startDrive runs the folder watcher and the export backup, whichever is
// configured, and returns a func stopping both.
func startDrive(ctx context.Context, creds string, manager *capture.Manager, repo *db.Repository) func() {
	var stops []func()
	stopAll := func() {
		for _, s := range stops {
			s()
		}
	}

	if folder, owner := cfg.Google.DriveFolderID, cfg.Google.DriveOwner; folder != "" && owner != "" {
		svc, err := drive.NewService(ctx, folder, google.ClientOptions(creds, google.ScopeDrive)...)
		if err != nil {
			logger.Warn("drive import disabled", "error", err)
		} else {
			w := drive.NewWatcher(svc, manager, repo, owner, cfg.Google.DrivePollInterval, logger)
			w.Start(ctx)
			stops = append(stops, w.Stop)
			logger.Info("drive import enabled", "folder", folder, "owner", owner)
		}
	}

	if folder := cfg.Google.BackupFolderID; folder != "" && cfg.Export.Dir != "" {
		svc, err := drive.NewService(ctx, folder, google.ClientOptions(creds, google.ScopeDrive)...)
		if err != nil {
			logger.Warn("drive backup disabled", "error", err)
		} else {
			b := drive.NewBackup(svc, repo, cfg.Export.Dir, cfg.Google.BackupInterval, logger)
			b.Start(ctx)
			stops = append(stops, b.Stop)
			logger.Info("drive backup enabled", "folder", folder, "dir", cfg.Export.Dir)
		}
	}
	return stopAll
}
