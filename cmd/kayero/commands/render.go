package commands

import (
	"fmt"

	"github.com/livetemplate/kayero"
)

// RenderCommand prints a notebook as the editor would save it.
func RenderCommand(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: kayero render <file.md>")
	}

	doc, err := kayero.ParseFile(args[0])
	if err != nil {
		return err
	}
	out, err := kayero.Render(doc)
	if err != nil {
		return err
	}
	_, err = stdout.Write(out)
	return err
}
