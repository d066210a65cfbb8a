package commands

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/livetemplate/kayero"
	"github.com/livetemplate/kayero/internal/charts"
)

// ValidateCommand parses each notebook and reports parse errors. Graph
// blocks using a chart type the graphs runtime does not provide are
// reported as warnings.
func ValidateCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: kayero validate <file.md>...")
	}

	known := charts.Default().GraphTypes()
	failed := 0
	for _, path := range args {
		doc, err := kayero.ParseFile(path)
		if err != nil {
			failed++
			var perr *kayero.ParseError
			if errors.As(err, &perr) {
				fmt.Fprintln(stdout, perr.Format())
			} else {
				fmt.Fprintf(stdout, "✗ %s: %v\n", path, err)
			}
			continue
		}
		fmt.Fprintf(stdout, "✓ %s (%d blocks)\n", path, len(doc.Content))

		for _, block := range doc.OrderedBlocks() {
			if g, ok := block.(*kayero.GraphBlock); ok && !slices.Contains(known, g.GraphType) {
				fmt.Fprintf(stdout, "  ⚠ block %s: unknown chart type %q (known: %s)\n",
					g.ID, g.GraphType, strings.Join(known, ", "))
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d notebooks failed validation", failed, len(args))
	}
	return nil
}
