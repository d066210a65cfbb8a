package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/livetemplate/kayero"
	"github.com/livetemplate/kayero/internal/config"
	"github.com/livetemplate/kayero/internal/logger"
	"github.com/livetemplate/kayero/internal/server"
	"github.com/livetemplate/kayero/internal/session"
	"github.com/livetemplate/kayero/internal/store"
)

// stdout is where commands print their results.
var stdout io.Writer = os.Stdout

// serveOptions holds the serve flags. Unset flags leave the config alone.
type serveOptions struct {
	notebook   string
	configPath string
	port       int
	host       string
	watch      *bool
}

func parseServeFlags(args []string) (*serveOptions, error) {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	opts := &serveOptions{}
	fs.StringVarP(&opts.configPath, "config", "c", "", "Config file (default: kayero.yaml next to the notebook)")
	fs.IntVarP(&opts.port, "port", "p", 0, "Port to listen on")
	fs.StringVar(&opts.host, "host", "", "Host to bind to")
	watch := fs.BoolP("watch", "w", false, "Reload the notebook when it changes on disk")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w\n\nusage: kayero serve <file.md> [--port N] [--host H] [--watch] [--config FILE]", err)
	}
	if fs.NArg() != 1 {
		return nil, fmt.Errorf("usage: kayero serve <file.md> [--port N] [--host H] [--watch] [--config FILE]")
	}
	opts.notebook = fs.Arg(0)
	if fs.Changed("watch") {
		opts.watch = watch
	}
	return opts, nil
}

// loadConfig reads the config for a notebook and applies flag overrides.
func (o *serveOptions) loadConfig(dir string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.Load(o.configPath)
	} else {
		cfg, err = config.LoadFromDir(dir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// CLI flags override config
	if o.port != 0 {
		cfg.Server.Port = o.port
	}
	if o.host != "" {
		cfg.Server.Host = o.host
	}
	if o.watch != nil {
		cfg.Features.HotReload = *o.watch
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ServeCommand implements the serve command.
func ServeCommand(args []string) error {
	opts, err := parseServeFlags(args)
	if err != nil {
		return err
	}

	absPath, err := filepath.Abs(opts.notebook)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	if _, err := os.Stat(absPath); err != nil {
		return fmt.Errorf("notebook does not exist: %s", opts.notebook)
	}

	cfg, err := opts.loadConfig(filepath.Dir(absPath))
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store, log.Named("store"))
	if err != nil {
		return fmt.Errorf("failed to open share store: %w", err)
	}
	defer st.Close()

	location := cfg.Editor.BaseURL
	if location == "" {
		location = "http://" + cfg.Server.Addr() + "/"
	}
	// The default homepage follows the address actually served
	if cfg.Editor.Homepage == config.DefaultConfig().Editor.Homepage {
		cfg.Editor.Homepage = "http://" + cfg.Server.Addr() + "/shared"
	}
	config.SetLocation(location)

	sess := session.New(kayero.NewReducer(cfg.Editor.Homepage, config.Location), log.Named("session"))
	if err := sess.LoadFile(absPath); err != nil {
		return err
	}

	doc := sess.Document()
	fmt.Fprintf(stdout, "Editing: %s (%d blocks)\n", absPath, len(doc.Content))
	fmt.Fprintf(stdout, "Server:  http://%s\n", cfg.Server.Addr())
	if cfg.Features.HotReload {
		fmt.Fprintf(stdout, "Watch mode enabled - external edits reload the notebook\n")
	}

	srv := server.New(server.Options{
		Config:   cfg,
		Session:  sess,
		Store:    st,
		Notebook: absPath,
		Logger:   log,
	})
	if err := srv.Run(ctx); err != nil {
		log.Error("server stopped", zap.Error(err))
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
