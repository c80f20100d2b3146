package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/areumknits/patternview"
	"github.com/areumknits/patternview/internal/state"
	"github.com/areumknits/patternview/internal/units"
)

// ExportFlags are the export command's flags.
func ExportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "size", Aliases: []string{"s"}, Usage: "selected size `KEY` (default: the first size)"},
		&cli.StringFlag{Name: "unit", Aliases: []string{"u"}, Usage: "measurement unit, \"in\" or \"cm\""},
		&cli.IntFlag{Name: "font-size", Usage: "instruction font size in `PX`"},
		&cli.StringFlag{Name: "theme", Usage: "\"light\" or \"dark\""},
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write to `PATH` (a directory or file name; default: current directory)"},
	}
}

// Export writes the standalone interactive file for one pattern.
func Export(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 2 {
		return errors.New("usage: patternview export <dir> <slug> [flags]")
	}
	ctx, env, err := Setup(ctx, cmd, cmd.Args().Get(0))
	if err != nil {
		return err
	}
	defer env.Close()

	cat := newCatalog(env)
	if err := cat.Discover(); err != nil {
		env.Log.Warn("catalog has problems", zap.Error(err))
	}
	slug := cmd.Args().Get(1)
	p, ok := cat.Get(slug)
	if !ok {
		return fmt.Errorf("pattern %q not found in %s", slug, env.Cfg.Catalog.Dir)
	}
	if p.IsStub() {
		return fmt.Errorf("%s: %w", slug, patternview.ErrNoContent)
	}

	sess, err := state.New(ctx, p, env.sessionOptions(state.NopStore{}))
	if err != nil {
		return err
	}
	if err := applyPreferences(ctx, cmd, sess); err != nil {
		return err
	}

	r, err := newRenderer(env, false)
	if err != nil {
		return err
	}
	e, err := newExporter(env)
	if err != nil {
		return err
	}
	doc, err := e.Pattern(r, p, sess.Snapshot(), sess.Defaults())
	if err != nil {
		return err
	}

	path := outputPath(cmd.String("out"), doc.Filename)
	if err := os.WriteFile(path, doc.HTML, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintln(cmd.Root().Writer, path)
	return nil
}

func applyPreferences(ctx context.Context, cmd *cli.Command, sess *state.Session) error {
	if v := cmd.String("size"); v != "" {
		if err := sess.SetSize(ctx, v); err != nil {
			return err
		}
	}
	if v := cmd.String("unit"); v != "" {
		u, ok := units.ParseUnit(v)
		if !ok {
			return fmt.Errorf("unknown unit %q (want \"in\" or \"cm\")", v)
		}
		if err := sess.SetUnit(ctx, u); err != nil {
			return err
		}
	}
	if cmd.IsSet("font-size") {
		sess.SetFontSize(ctx, int(cmd.Int("font-size")))
	}
	if v := cmd.String("theme"); v != "" {
		t, ok := state.ParseTheme(v)
		if !ok {
			return fmt.Errorf("unknown theme %q (want \"light\" or \"dark\")", v)
		}
		if err := sess.SetTheme(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// outputPath resolves --out: empty means the current directory, an existing
// directory gets the default file name.
func outputPath(out, filename string) string {
	if out == "" {
		return filename
	}
	if fi, err := os.Stat(out); err == nil && fi.IsDir() {
		return filepath.Join(out, filename)
	}
	return out
}
