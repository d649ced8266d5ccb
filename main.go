package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"riistakamera/internal/annotator"
	"riistakamera/internal/imagery"
	"riistakamera/internal/localstore"
	"riistakamera/internal/remote"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	var source string
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("riistakamera %s\n", Version)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			usage()
			return
		case "serve":
			if err := runServe(os.Args[2:]); err != nil {
				log.Fatal(err)
			}
			return
		default:
			source = os.Args[1]
		}
	}

	config, err := loadConfig(configPath())
	if err != nil {
		log.Fatal(err)
	}
	if source != "" {
		config.applySource(source)
	}
	if err := runReview(config); err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Println("riistakamera - review wildlife detections on camera-trap images")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  riistakamera [DIR|URL]          Review images in a data directory or on a server")
	fmt.Println("  riistakamera serve DIR [-addr]  Serve a data directory over the review API")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Printf("Config is read from $%s or %s.\n", configEnv, configPath())
}

func runReview(config *Config) error {
	logFile, err := openLogFile(config.LogFile)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger := newLogger(logFile, config.level())

	sessionID := uuid.NewString()
	backend, err := openBackend(config, sessionID, logger)
	if err != nil {
		return err
	}
	images, err := imagery.NewCache(backend, config.CacheSize, logger)
	if err != nil {
		return err
	}
	engine := annotator.New(config.engineConfig(), backend, images,
		annotator.WithLogger(logger),
		annotator.WithSessionID(sessionID),
	)

	p := tea.NewProgram(
		initialModel(engine, images, config, logger),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	_, err = p.Run()
	s := engine.Session()
	logger.Info("review session ended", "session", s.ID, "committed", s.Committed, "elapsed", time.Since(s.Start).Round(time.Second).String())
	return err
}

// openBackend picks the HTTP client when a server URL is configured and the
// local directory store otherwise.
func openBackend(config *Config, sessionID string, logger *slog.Logger) (annotator.Collaborator, error) {
	if config.ServerURL != "" {
		logger.Info("using review server", "url", config.ServerURL)
		return remote.NewClient(config.ServerURL,
			remote.WithTimeout(config.RequestTimeout),
			remote.WithSessionID(sessionID),
		), nil
	}
	logger.Info("using data directory", "dir", config.DataDir)
	store, err := localstore.Open(config.DataDir, localstore.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open data dir: %w", err)
	}
	return store, nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", "127.0.0.1:8080", "listen address")
	level := fs.String("log-level", "info", "log level")
	if err := fs.Parse(args); err != nil {
		return err
	}
	dir := "."
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}

	config := &Config{LogLevel: *level}
	logger := newLogger(os.Stderr, config.level())
	store, err := localstore.Open(dir, localstore.WithLogger(logger))
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           localstore.Handler(store, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", "err", err)
		}
	}()

	logger.Info("serving data directory", "dir", store.Root(), "addr", *addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func initialModel(engine *annotator.Engine, images *imagery.Cache, config *Config, logger *slog.Logger) model {
	return model{
		engine:  engine,
		images:  images,
		config:  config,
		log:     logger,
		palette: speciesPalette(engine.SpeciesSet()),
		cache:   &renderCache{},
		mode:    ModeNormal,
	}
}

func (m model) Init() tea.Cmd {
	return m.engine.Init()
}
