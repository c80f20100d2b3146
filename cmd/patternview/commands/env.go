// Package commands implements the patternview CLI commands.
package commands

import (
	"context"
	"fmt"
	"path/filepath"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/areumknits/patternview/internal/config"
	"github.com/areumknits/patternview/internal/state"
	"github.com/areumknits/patternview/internal/units"
)

// Env is what every command runs with: the loaded configuration and the
// program logger.
type Env struct {
	Cfg *config.Config
	Log *zap.Logger
	Dir string
}

type envKey struct{}

// Setup loads the configuration for dir (or the global --config file) and
// prepares the logger. An explicit dir overrides catalog.dir. The result is stored in the returned context.
func Setup(ctx context.Context, cmd *cli.Command, dir string) (context.Context, *Env, error) {
	explicit := dir != ""
	if !explicit {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return ctx, nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	var cfg *config.Config
	if path := cmd.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(abs)
	}
	if err != nil {
		return ctx, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Bool("debug") {
		cfg.Logging.Level = "debug"
		cfg.Server.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return ctx, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := cfg.Logging.Prepare()
	if err != nil {
		return ctx, nil, fmt.Errorf("unable to prepare logs: %w", err)
	}

	env := &Env{Cfg: cfg, Log: log, Dir: abs}
	if explicit || cfg.Catalog.Dir == "" || cfg.Catalog.Dir == "." {
		cfg.Catalog.Dir = abs
	}
	return context.WithValue(ctx, envKey{}, env), env, nil
}

// EnvFromContext returns the Env stored by Setup, or nil.
func EnvFromContext(ctx context.Context) *Env {
	env, _ := ctx.Value(envKey{}).(*Env)
	return env
}

// Close flushes the logger.
func (e *Env) Close() {
	_ = e.Log.Sync()
}

// sessionOptions maps the viewer section to session options around store.
func (e *Env) sessionOptions(store state.Store) state.Options {
	vc := e.Cfg.Viewer
	unit, ok := units.ParseUnit(vc.DefaultUnit)
	if !ok {
		unit = units.Inches
	}
	theme, _ := state.ParseTheme(e.Cfg.Site.GetTheme())
	return state.Options{
		Store:  store,
		Theme:  state.StaticTheme(theme),
		Logger: e.Log,
		Font: state.Font{
			Min:     vc.Font.Min,
			Max:     vc.Font.Max,
			Step:    vc.Font.Step,
			Default: vc.Font.Default,
		},
		DefaultUnit:   unit,
		DefaultSize:   vc.DefaultSize,
		KeyPrefix:     vc.KeyPrefix,
		SchemaVersion: vc.SchemaVersion,
	}
}
