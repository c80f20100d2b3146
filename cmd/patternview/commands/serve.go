package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/areumknits/patternview/internal/catalog"
	"github.com/areumknits/patternview/internal/export"
	"github.com/areumknits/patternview/internal/render"
	"github.com/areumknits/patternview/internal/server"
	"github.com/areumknits/patternview/internal/storage"
)

// ServeFlags are the serve command's flags.
func ServeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "listen on `PORT` (overrides server.port)"},
		&cli.StringFlag{Name: "host", Usage: "listen on `HOST` (overrides server.host)"},
		&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "reload patterns when their files change"},
	}
}

// Serve runs the live viewer until ctx is cancelled.
func Serve(ctx context.Context, cmd *cli.Command) (err error) {
	ctx, env, err := Setup(ctx, cmd, cmd.Args().First())
	if err != nil {
		return err
	}
	defer env.Close()
	cfg, log := env.Cfg, env.Log

	if cmd.IsSet("port") {
		cfg.Server.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("host") {
		cfg.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("watch") {
		cfg.Catalog.Watch = cmd.Bool("watch")
	}

	cat := newCatalog(env)
	if err := cat.Discover(); err != nil {
		for _, e := range multierr.Errors(err) {
			log.Warn("pattern skipped", zap.Error(e))
		}
	}
	log.Info("patterns discovered", zap.String("dir", cfg.Catalog.Dir), zap.Int("count", cat.Len()))

	backend, err := storage.Open(ctx, cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		err = multierr.Append(err, backend.Close())
	}()

	srv, err := newServer(env, cat, backend)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, srv.Close())
	}()

	if cfg.Catalog.Watch {
		if err := srv.EnableWatch(); err != nil {
			return err
		}
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("server running", zap.String("url", "http://"+httpSrv.Addr),
			zap.String("storage", cfg.Storage.GetDriver()), zap.Bool("watch", cfg.Catalog.Watch))
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func newCatalog(env *Env) *catalog.Catalog {
	return catalog.New(env.Cfg.Catalog.Dir, env.Log)
}

func newServer(env *Env, cat *catalog.Catalog, backend storage.Backend) (*server.Server, error) {
	cfg, log := env.Cfg, env.Log

	r, err := newRenderer(env, true)
	if err != nil {
		return nil, err
	}
	e, err := newExporter(env)
	if err != nil {
		return nil, err
	}
	return server.New(server.Options{
		Config:   cfg,
		Catalog:  cat,
		Backend:  backend,
		Renderer: r,
		Exporter: e,
		Logger:   log.Named("server"),
	})
}

func newRenderer(env *Env, live bool) (*render.Renderer, error) {
	r, err := render.New(render.Options{
		SiteTitle: env.Cfg.Title,
		Live:      live,
		Debug:     env.Cfg.Server.Debug,
		Font:      env.sessionOptions(nil).Font,
		Logger:    env.Log.Named("render"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare templates: %w", err)
	}
	return r, nil
}

func newExporter(env *Env) (*export.Exporter, error) {
	e, err := export.New(export.Options{
		LiveURL: env.Cfg.Site.LiveURL,
		Minify:  env.Cfg.Export.Minify,
		Logger:  env.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare exporter: %w", err)
	}
	return e, nil
}
