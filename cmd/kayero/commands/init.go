package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/livetemplate/kayero/internal/config"
)

// InitCommand writes a kayero.yaml holding the default configuration into
// the given directory (the current one by default). An existing file is
// left alone.
func InitCommand(args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("usage: kayero init [dir]")
	}
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}

	path := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Created %s\n", path)
	return nil
}
