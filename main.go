package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"golang.org/x/oauth2"
	"gopkg.in/natefinch/lumberjack.v2"

	"planner/internal/analysis"
	"planner/internal/auth"
	"planner/internal/config"
	"planner/internal/service"
	"planner/internal/store"
	"planner/internal/strava"
	"planner/internal/tui"
)

type options struct {
	configDir string
	syncOnly  bool
	offline   bool
	today     string
	smoothing int
	port      int
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if opts.configDir == "" {
		if opts.configDir, err = config.GetConfigDir(); err != nil {
			return err
		}
	}

	// Load configuration
	cfg, err := config.LoadFrom(opts.configDir)
	if errors.Is(err, config.ErrNoConfig) {
		fmt.Println("No config file found. Creating example config...")
		if err := config.CreateExample(opts.configDir); err != nil {
			return fmt.Errorf("creating example config: %w", err)
		}
		fmt.Printf("\nPlease edit the config file at:\n  %s\n\n", filepath.Join(opts.configDir, "config.json"))
		fmt.Println("Set your FTP per sport, and add Strava API credentials to sync.")
		fmt.Println("Get them from: https://www.strava.com/settings/api")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Config validation failed: %v\n\n", err)
		fmt.Printf("Please edit the config file at:\n  %s\n", filepath.Join(opts.configDir, "config.json"))
		return nil
	}

	logger := newLogger(opts.configDir)

	today := time.Now()
	if opts.today != "" {
		if today, err = analysis.ParseDay(opts.today); err != nil {
			return fmt.Errorf("parsing --today: %w", err)
		}
	}

	// Open database
	db, err := store.Open(store.DefaultPath(opts.configDir))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	var client *strava.Client
	if !opts.offline {
		if err := cfg.ValidateStrava(); err != nil {
			if opts.syncOnly {
				return err
			}
			fmt.Printf("Strava sync disabled: %v\n", err)
		} else if client, err = connect(ctx, db, cfg, opts.port); err != nil {
			return fmt.Errorf("connecting to strava: %w", err)
		}
	}

	var syncSvc *service.SyncService
	if client != nil {
		syncSvc = service.NewSyncService(client, db, cfg.Athlete.FTP, logger)
	}

	if opts.syncOnly {
		if syncSvc == nil {
			return errors.New("--sync needs Strava credentials and cannot be combined with --offline")
		}
		return syncNow(ctx, syncSvc)
	}

	load := func() (*service.AnalyticsContext, error) {
		data, err := service.LoadContext(db, cfg.Athlete.FTP, today)
		if err != nil {
			return nil, err
		}
		data.SetSmoothingStep(opts.smoothing)
		return data, nil
	}

	lastSync, err := db.LastSync(store.SyncKeyLastActivities)
	if err != nil {
		logger.Printf("reading last sync: %v", err)
	}

	// Launch TUI. Nil interfaces keep the sync screen offline.
	var syncer tui.Syncer
	var limits tui.RateLimits
	if syncSvc != nil {
		syncer, limits = syncSvc, client
	}
	app := tui.NewApp(load, cfg.Display, syncer, limits, lastSync)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running TUI: %w", err)
	}

	return nil
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("planner", pflag.ContinueOnError)
	fs.StringVar(&opts.configDir, "config-dir", "", "directory holding config.json and the database (default ~/.planner)")
	fs.BoolVar(&opts.syncOnly, "sync", false, "sync with Strava and exit")
	fs.BoolVar(&opts.offline, "offline", false, "don't connect to Strava")
	fs.StringVar(&opts.today, "today", "", "analyze as of this day (YYYY-MM-DD)")
	fs.IntVar(&opts.smoothing, "smoothing", 2, "initial smoothing step for workout charts")
	fs.IntVar(&opts.port, "callback-port", auth.DefaultCallbackPort, "local port for the Strava login callback")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	return opts, nil
}

// newLogger writes to a rotating log file in the config directory; the
// terminal belongs to the TUI
func newLogger(dir string) *log.Logger {
	var w io.Writer = &lumberjack.Logger{
		Filename:   filepath.Join(dir, "planner.log"),
		MaxSize:    5, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	return log.New(w, "", log.LstdFlags)
}

// connect returns a Strava client, running the browser login when no
// token is stored
func connect(ctx context.Context, db *store.DB, cfg *config.Config, port int) (*strava.Client, error) {
	oauthCfg := auth.NewConfig(cfg.Strava.ClientID, cfg.Strava.ClientSecret, port)

	_, err := db.LoadToken()
	if errors.Is(err, store.ErrNoAuth) {
		fmt.Println("No authentication found. Starting OAuth flow...")
		tok, err := auth.Authorize(ctx, oauthCfg, db, port, os.Stdout)
		if err != nil {
			return nil, fmt.Errorf("authentication: %w", err)
		}
		fmt.Printf("\nSuccessfully authenticated as athlete %d!\n", auth.AthleteID(tok))
	} else if err != nil {
		return nil, fmt.Errorf("checking auth: %w", err)
	}

	ts, err := auth.TokenSource(ctx, oauthCfg, db)
	if err != nil {
		return nil, err
	}

	// A refresh that fails means the grant was revoked; log in again
	if _, err := ts.Token(); err != nil {
		var re *oauth2.RetrieveError
		if !errors.As(err, &re) {
			return nil, fmt.Errorf("refreshing token: %w", err)
		}
		fmt.Println("Stored token is invalid or expired. Re-authenticating...")
		if _, err := auth.Authorize(ctx, oauthCfg, db, port, os.Stdout); err != nil {
			return nil, fmt.Errorf("re-authentication: %w", err)
		}
		if ts, err = auth.TokenSource(ctx, oauthCfg, db); err != nil {
			return nil, err
		}
	}

	return strava.NewClient(ctx, ts), nil
}

// syncNow runs a sync from the command line, printing progress
func syncNow(ctx context.Context, svc *service.SyncService) error {
	progress := make(chan service.SyncProgress)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progress {
			if p.Phase == service.PhaseStreams && p.CurrentActivity != "" {
				fmt.Printf("\r  streams %d/%d  %-40.40s", p.Completed+1, p.Total, p.CurrentActivity)
			}
		}
		fmt.Println()
	}()

	result, err := svc.SyncAll(ctx, progress)
	<-done
	if result != nil {
		fmt.Printf("%d activities stored, %d streams downloaded, %d errors\n",
			result.ActivitiesStored, result.StreamsFetched, len(result.Errors))
	}
	return err
}
