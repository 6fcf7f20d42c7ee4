package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/mapping/internal/configuration"
	"github.com/conduit-lang/mapping/internal/introspect"
	"github.com/conduit-lang/mapping/internal/watch"
)

var (
	servePortFlag  int
	serveHostFlag  string
	serveWatchFlag bool
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the mapping configuration over HTTP",
		Long: `Build the mapping configuration and serve it as a read-only JSON API.

Endpoints:
  GET  /health                  Liveness check
  GET  /configuration           Summary of the current configuration
  POST /configuration/reload    Rebuild from the domain files
  GET  /types[?kind=]           Mapped types
  GET  /types/{name}            One type with properties and end points
  GET  /classes/{id}            One class by class ID
  GET  /relations               Relations
  GET  /relations/{id}          One relation
  GET  /entities[?provider=]    Tables and views
  GET  /ddl[?provider=]         DDL script
  GET  /events                  WebSocket stream of reload events

A failed reload keeps serving the previous configuration. With --watch the
domain files are reloaded on change; with reload.redis_url every reload is
shared with the other instances on the same channel.`,
		Example: `  # Serve on the configured address
  mapping serve

  # Serve on all interfaces and reload on file changes
  mapping serve --host 0.0.0.0 --port 9000 --watch`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().IntVarP(&servePortFlag, "port", "p", 0, "Port (default: server.port)")
	cmd.Flags().StringVar(&serveHostFlag, "host", "", "Host (default: server.host)")
	cmd.Flags().BoolVarP(&serveWatchFlag, "watch", "w", false, "Reload when domain files change")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd, true)
	if err != nil {
		return err
	}
	defer env.logger.Sync()

	if servePortFlag != 0 {
		env.config.Server.Port = servePortFlag
	}
	if serveHostFlag != "" {
		env.config.Server.Host = serveHostFlag
	}

	builder, err := env.builder()
	if err != nil {
		return err
	}
	holder := configuration.NewHolder(builder)
	if _, err := holder.Current(); err != nil {
		if report(cmd.ErrOrStderr(), err) {
			return &reportedError{err: err}
		}
		return err
	}

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, cleanup, err := newIntrospectionServer(ctx, env, holder)
	if err != nil {
		return err
	}
	defer cleanup()

	infoColor := color.New(color.FgCyan)
	if noColorFlag {
		infoColor.DisableColor()
	}
	infoColor.Fprintf(cmd.OutOrStdout(), "Serving mapping configuration on http://%s%s\n",
		env.config.Address(), env.config.Server.APIPrefix)

	return server.Run(ctx, env.config.Address())
}

// newIntrospectionServer wires the reloader, event hub, file watcher and
// Redis notifier configured for env around holder
func newIntrospectionServer(ctx context.Context, env *environment, holder *configuration.Holder) (*introspect.Server, func(), error) {
	logger := env.logger
	hub := watch.NewHub(logger)
	cleanups := []func(){hub.Close}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	reloaderOpts := []watch.ReloaderOption{watch.WithHub(hub), watch.WithReloaderLogger(logger)}
	var notifier *watch.RedisNotifier
	if url := env.config.Reload.RedisURL; url != "" {
		var err error
		notifier, err = watch.NewRedisNotifier(watch.RedisConfig{URL: url, Channel: env.config.Reload.Channel}, logger)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		cleanups = append(cleanups, func() { _ = notifier.Close() })
		reloaderOpts = append(reloaderOpts, watch.WithPublisher(notifier))
	}
	reloader := watch.NewReloader(holder, reloaderOpts...)

	if notifier != nil {
		if err := reloader.Listen(ctx, notifier); err != nil {
			cleanup()
			return nil, nil, err
		}
		logger.Info("sharing reloads over redis", zap.String("channel", notifier.Channel()))
	}

	if serveWatchFlag || env.config.Reload.Watch {
		if err := reloader.Watch(ctx, env.config.Domain.Files, watch.WithDebounce(env.config.Reload.Debounce)); err != nil {
			cleanup()
			return nil, nil, err
		}
		logger.Info("watching domain files", zap.Strings("files", env.config.Domain.Files))
	}

	opts := []introspect.Option{
		introspect.WithLogger(logger),
		introspect.WithAPIPrefix(env.config.Server.APIPrefix),
		introspect.WithReloader(reloader),
		introspect.WithEvents(hub),
	}
	if secret := env.config.Server.TokenSecret; secret != "" {
		authority, err := introspect.NewTokenAuthority(secret)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		opts = append(opts, introspect.WithTokenAuthority(authority))
	}

	return introspect.NewServer(holder, opts...), cleanup, nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
