package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-dashboard-auth/internal/migrations"
	"github.com/goliatone/go-dashboard-auth/web"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts, migrate)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before serving")
	return cmd
}

func serve(ctx context.Context, opts *rootOptions, migrate bool) error {
	log := opts.logger.GetLogger("server")

	a, err := newApp(ctx, opts.cfg, opts.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if migrate {
		group, err := migrations.Apply(ctx, a.db)
		if err != nil {
			return err
		}
		log.Info("migrations applied", "group", group.ID)
	}

	if err := a.sessions.Start(ctx); err != nil {
		return err
	}

	server := a.httpServer()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", opts.cfg.Server.Addr)
		errCh <- server.Listen(opts.cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	return server.ShutdownWithTimeout(opts.cfg.Server.ShutdownTimeout)
}

// httpServer mounts the auth and dashboard routes. Request sessions come
// from bearer tokens issued by the provider.
func (a *app) httpServer() *fiber.App {
	server := fiber.New(fiber.Config{
		AppName:               "dashboard",
		DisableStartupMessage: true,
	})

	web.NewController(a.client, a.provider, a.store, a.routes).
		WithLogger(a.logger.GetLogger("web")).
		WithActivitySink(a.sink).
		Register(server)

	return server
}
