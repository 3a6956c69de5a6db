package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"meetlens/internal/cache"
	"meetlens/internal/capture"
	"meetlens/internal/classify"
	"meetlens/internal/config"
	"meetlens/internal/export"
	"meetlens/internal/hub"
	"meetlens/internal/ics"
	appLog "meetlens/internal/log"
	"meetlens/internal/meetings"
	"meetlens/internal/mock"
	"meetlens/internal/notify"
	"meetlens/internal/outlook"
	"meetlens/internal/refresh"
	"meetlens/internal/stats"
	"meetlens/internal/web"
)

const version = "0.3.0"

type flagConfig struct {
	configPath   string
	listen       string
	once         bool
	mock         bool
	exportFormat string
	out          string
	hashPassword string
}

func main() {
	flags := parseFlags()

	if flags.hashPassword != "" {
		hash, err := web.HashPassword(flags.hashPassword)
		if err != nil {
			appLog.Error("failed to hash password", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	appLog.Info("meetlens starting", "version", version)

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.Logging.Level))

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"range_days", conf.Preferences.DefaultRangeDays,
		"horizon_days", conf.HorizonDays,
		"ics_count", len(conf.ICS),
		"outlook", conf.Outlook.Enabled(),
		"notify", conf.Notify.Enabled,
		"capture", conf.Capture.Enabled,
		"once", flags.once,
		"mock", flags.mock,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, conf, flags); err != nil {
		appLog.Error("meetlens stopped with error", err)
		os.Exit(1)
	}
	appLog.Info("meetlens exiting")
}

func run(ctx context.Context, conf *config.Config, flags flagConfig) error {
	loc := conf.Location()

	store, err := cache.Open(conf.Cache.Path)
	if err != nil {
		return err
	}
	defer store.Close()
	if n, err := store.ClearExpired(ctx); err != nil {
		appLog.Warn("failed to purge expired cache entries", "cause", err)
	} else if n > 0 {
		appLog.Debug("purged expired cache entries", "count", n)
	}

	svc := meetings.NewService(buildSources(conf, loc), mock.New(loc), store, conf.Cache.TTL)

	classifier := classify.New()
	if rules := conf.Preferences.ClassificationRules; rules != nil {
		if err := classifier.Replace(*rules); err != nil {
			return fmt.Errorf("classification rules: %w", err)
		}
	}
	st := stats.New(loc)

	job := refresh.NewJob(svc, classifier, st, conf.Preferences.DefaultRangeDays, conf.HorizonDays)
	job.Location = loc
	job.UseMock = flags.mock

	if conf.Notify.Enabled {
		tg, err := notify.NewTelegram(conf.Notify.BotToken, conf.Notify.ChatID, notify.WithLocation(loc))
		if err != nil {
			appLog.Error("telegram notifier disabled", err)
		} else {
			job.Notifier = tg
		}
	}

	if flags.once {
		return runOnce(ctx, job, flags)
	}

	h := hub.New()
	go h.Run(ctx)
	job.Publisher = h

	if conf.Capture.Enabled {
		url := conf.Capture.URL
		if url == "" {
			url = capture.DashboardURL(conf.Listen)
		}
		job.Capturer = &capture.Chromium{Options: capture.Options{URL: url, OutputPath: conf.Capture.OutputPath}}
	}

	digestSpec := ""
	if job.Notifier != nil {
		digestSpec = conf.Notify.DigestCron
	}
	sched, err := refresh.NewScheduler(job, conf.RefreshCron, digestSpec, loc)
	if err != nil {
		return err
	}

	srv := web.NewServer(web.Deps{
		Config:     conf,
		ConfigPath: flags.configPath,
		Meetings:   svc,
		Classifier: classifier,
		Stats:      st,
		Hub:        h,
		Job:        job,
	})

	sched.Start()
	defer sched.Stop()
	appLog.Info("scheduler started", "next_refresh", sched.Next().Format(time.RFC3339))

	return srv.ListenAndServe(ctx, conf.Listen)
}

// runOnce refreshes, optionally exports and sends the digest, then returns.
func runOnce(ctx context.Context, job *refresh.Job, flags flagConfig) error {
	snap, err := job.Run(ctx)
	if err != nil {
		return err
	}
	s := snap.Statistics
	appLog.Info("statistics",
		"total", s.Total,
		"total_minutes", s.TotalDuration,
		"red", s.ByColor.Red,
		"blue", s.ByColor.Blue,
		"green", s.ByColor.Green,
		"default", s.ByColor.Default,
	)

	if flags.exportFormat != "" {
		if err := writeExport(snap, flags); err != nil {
			return err
		}
	}
	if job.Notifier != nil {
		if err := job.SendDigest(ctx); err != nil {
			return err
		}
	}
	return nil
}

func writeExport(snap *refresh.Snapshot, flags flagConfig) error {
	format, err := export.ParseFormat(flags.exportFormat)
	if err != nil {
		return err
	}
	path := flags.out
	if path == "" {
		path = format.Filename()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.Write(f, format, snap.Meetings); err != nil {
		f.Close()
		return fmt.Errorf("export %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	appLog.Info("export written", "path", path, "format", string(format), "meetings", len(snap.Meetings))
	return nil
}

// buildSources returns the configured calendars in priority order: Outlook
// first, then the ICS subscriptions.
func buildSources(conf *config.Config, loc *time.Location) []meetings.Source {
	var sources []meetings.Source

	if conf.Outlook.Enabled() {
		var tokens outlook.TokenSource = outlook.StaticToken(conf.Outlook.Token)
		if conf.Outlook.Token == "" {
			tokens = outlook.FileToken(conf.Outlook.TokenFile)
		}
		client := outlook.NewClient(conf.Outlook.BaseURL,
			outlook.NewCachedTokenSource(tokens, outlook.DefaultTokenTTL),
			outlook.WithTimeout(conf.Outlook.Timeout),
		)
		sources = append(sources, client)
	}

	if len(conf.ICS) > 0 {
		list := make([]ics.Source, 0, len(conf.ICS))
		for _, c := range conf.ICS {
			list = append(list, ics.Source{ID: c.ID, URL: c.URL})
		}
		cacheDir := filepath.Join(filepath.Dir(conf.Cache.Path), "ics-cache")
		sources = append(sources, ics.NewCalendar(ics.NewFetcher(cacheDir, 0), list, loc))
	}

	if len(sources) == 0 {
		appLog.Warn("no calendar source configured, serving demo data")
	}
	return sources
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one fetch+classify+aggregate cycle and exit")
	flag.BoolVar(&cfg.mock, "mock", false, "Use generated demo meetings instead of real calendars")
	flag.StringVar(&cfg.exportFormat, "export", "", "With -once, export meetings as csv, json or ics")
	flag.StringVar(&cfg.out, "out", "", "Export output path (default meetings-analytics.<format>)")
	flag.StringVar(&cfg.hashPassword, "hash-password", "", "Print a bcrypt hash for basic_auth.password_hash and exit")

	flag.Parse()

	if cfg.exportFormat != "" && !cfg.once {
		fmt.Fprintln(os.Stderr, "-export requires -once")
		os.Exit(2)
	}
	return cfg
}
