package commands

import (
	"context"
	"fmt"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
)

// Validate parses every pattern in the catalog and reports all problems.
// Marker keys missing for some size are warnings: the viewer falls back to
// the authored text.
func Validate(ctx context.Context, cmd *cli.Command) error {
	_, env, err := Setup(ctx, cmd, cmd.Args().First())
	if err != nil {
		return err
	}
	defer env.Close()

	w := cmd.Root().Writer
	cat := newCatalog(env)
	discoverErr := cat.Discover()

	for _, p := range cat.Patterns() {
		status := "ok"
		if p.IsStub() {
			status = "stub (no content)"
		}
		fmt.Fprintf(w, "  %-32s %s\n", p.Slug, status)
		for _, m := range p.MissingValues() {
			fmt.Fprintf(w, "    warning: %s\n", m)
		}
	}

	errs := multierr.Errors(discoverErr)
	if len(errs) == 0 {
		fmt.Fprintf(w, "\n%d pattern(s) valid\n", cat.Len())
		return nil
	}
	fmt.Fprintf(w, "\n%d problem(s):\n", len(errs))
	for _, e := range errs {
		fmt.Fprintf(w, "\n%v\n", e)
	}
	return fmt.Errorf("validation failed with %d problem(s)", len(errs))
}
