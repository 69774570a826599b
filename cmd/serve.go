package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/switchboard/internal/config"
	"github.com/nextlevelbuilder/switchboard/internal/directory"
	"github.com/nextlevelbuilder/switchboard/internal/formatter"
	"github.com/nextlevelbuilder/switchboard/internal/httpapi"
	"github.com/nextlevelbuilder/switchboard/internal/identity"
	"github.com/nextlevelbuilder/switchboard/internal/router"
	"github.com/nextlevelbuilder/switchboard/internal/supervisor"
	"github.com/nextlevelbuilder/switchboard/internal/telemetry"
)

// supervisorLink is the intersection of the link capabilities serve wires
// into the router and the HTTP surface. Satisfied by both *supervisor.Link
// and supervisor.Offline.
type supervisorLink interface {
	router.SupervisorLink
	httpapi.LinkStatus
	Stop()
}

func runServe() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, Version)
	if err != nil {
		slog.Error("telemetry setup failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	dir, err := directory.Open(cfg.DirectoryOptions())
	if err != nil {
		slog.Error("failed to open directory", "error", err)
		os.Exit(1)
	}
	defer dir.Close()
	slog.Info("directory ready", "backend", cfg.Directory.Backend)

	link := buildLink(ctx, cfg)
	defer link.Stop()

	gate := identity.NewResolver(dir)
	rt := router.New(gate, link, router.LocalAssistant{})

	var mailer formatter.Mailer = formatter.LogMailer{}
	if cfg.Mail.SMTPAddr != "" {
		mailer = &formatter.SMTPMailer{
			Addr:     cfg.Mail.SMTPAddr,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		}
	}

	srv := httpapi.NewServer(cfg.Server, rt, formatter.NewEmailResponder(mailer), link)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}

// buildLink dials the supervisor when one is configured, or returns the
// offline stand-in. The initial connect retries in the background so a
// supervisor outage never blocks startup; once connected the link manages
// its own reconnection.
func buildLink(ctx context.Context, cfg *config.Config) supervisorLink {
	if cfg.Supervisor.URL == "" {
		slog.Info("no supervisor configured, running standalone")
		return supervisor.Offline{}
	}

	link := supervisor.New(supervisor.Config{
		URL:            cfg.Supervisor.URL,
		Token:          cfg.Supervisor.Token,
		RequestTimeout: cfg.Supervisor.RequestTimeout(),
		PingInterval:   cfg.Supervisor.PingInterval(),
		BackoffBase:    cfg.Supervisor.BackoffBase(),
		MaxReconnects:  cfg.Supervisor.MaxReconnects,
	})

	go func() {
		for {
			dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			err := link.Connect(dialCtx)
			cancel()
			if err == nil {
				return
			}
			if errors.Is(err, supervisor.ErrAuthRejected) || errors.Is(err, supervisor.ErrLinkClosed) {
				slog.Error("supervisor connect abandoned", "error", err)
				return
			}
			slog.Warn("supervisor connect failed, will retry", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(10 * time.Second):
			}
		}
	}()

	return link
}
