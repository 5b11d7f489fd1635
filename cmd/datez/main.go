package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"datez/internal/civil"
	"datez/internal/config"
	"datez/internal/ics"
	appLog "datez/internal/log"
	"datez/internal/report"
	"datez/internal/scheduler"
	"datez/internal/store"
	"datez/internal/web"
)

// flagConfig holds CLI flag values; non-empty values override the config file.
type flagConfig struct {
	configPath string
	dataPath   string
	listen     string
	once       bool
	now        string
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.dataPath != "" {
		conf.Data = flags.dataPath
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("effective config",
		"data", conf.Data,
		"ics_count", len(conf.ICS),
		"refresh", conf.Refresh,
		"timezone", conf.Timezone,
		"report", conf.Report,
		"listen", conf.Listen,
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := loadEvents(ctx, conf)
	if err != nil {
		appLog.Error("failed to load events", err, "data", conf.Data)
		os.Exit(1)
	}

	clock := time.Now
	if flags.now != "" {
		fixed, err := civil.Parse(flags.now)
		if err != nil {
			appLog.Error("invalid -now", err, "now", flags.now)
			os.Exit(2)
		}
		loc := conf.Location()
		clock = func() time.Time {
			return time.Date(fixed.Year, fixed.Month, fixed.Day, 12, 0, 0, 0, loc)
		}
	}

	sched, err := scheduler.New(st.Events(), scheduler.Options{
		Schedule: conf.Refresh,
		Location: conf.Location(),
		Mode:     conf.ReportMode(),
		Sink:     report.NewSink(os.Stdout),
		Now:      clock,
	})
	if err != nil {
		appLog.Error("failed to create scheduler", err, "refresh", conf.Refresh)
		os.Exit(1)
	}

	if flags.once {
		snap := sched.RunOnce()
		if failed := snap.Failed(); failed > 0 {
			appLog.Warn("some events could not be evaluated", "failed", failed, "events", len(snap.Results))
		}
		return
	}

	sched.Start()

	if conf.Listen != "" {
		go func() {
			if err := web.StartServer(ctx, conf, sched); err != nil {
				appLog.Error("HTTP server failed", err, "listen", conf.Listen)
				cancel()
			}
		}()
	}

	<-ctx.Done()
	appLog.Info("shutting down")

	select {
	case <-sched.Stop().Done():
	case <-time.After(5 * time.Second):
		appLog.Warn("timed out waiting for running cycle")
	}
	appLog.Info("datez exiting")
}

// loadEvents loads the events file and appends the events of every
// configured ICS calendar. Any failure is fatal: datez never runs with a
// partial event set.
func loadEvents(ctx context.Context, conf *config.Config) (*store.Store, error) {
	st, err := store.Load(conf.Data)
	if err != nil {
		return nil, err
	}
	if len(conf.ICS) == 0 {
		return st, nil
	}

	sources := make([]ics.Source, 0, len(conf.ICS))
	for _, c := range conf.ICS {
		sources = append(sources, ics.Source{ID: c.ID, URL: c.URL})
	}

	loadCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	specs, err := ics.NewFetcher(conf.ICSCacheDir, conf.Location()).LoadAll(loadCtx, sources)
	if err != nil {
		return nil, err
	}
	merged, err := st.With(specs...)
	if err != nil {
		return nil, fmt.Errorf("merging ics events: %w", err)
	}
	return merged, nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "datez.yaml", "Path to config file")
	flag.StringVar(&cfg.dataPath, "data", "", "Path to events file (overrides config if set)")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one cycle, print the report and exit")
	flag.StringVar(&cfg.now, "now", "", "Evaluate as if today were this date (YYYY-MM-DD)")

	flag.Parse()

	return cfg
}
