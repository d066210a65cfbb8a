package commands

import (
	"fmt"
	"strings"

	"github.com/livetemplate/kayero"
)

// maxPreviewWidth is the maximum width of the block preview column
const maxPreviewWidth = 50

// BlocksCommand lists the blocks of a notebook in display order.
func BlocksCommand(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: kayero blocks <file.md>")
	}

	doc, err := kayero.ParseFile(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%-4s %-6s %-9s %s\n", "ID", "TYPE", "OPTION", "PREVIEW")
	for _, block := range doc.OrderedBlocks() {
		fmt.Fprintf(stdout, "%-4s %-6s %-9s %s\n",
			block.BlockID(), block.Type(), blockOption(block), preview(block.Body()))
	}
	return nil
}

func blockOption(b kayero.Block) string {
	switch b := b.(type) {
	case *kayero.CodeBlock:
		return string(b.Option)
	case *kayero.GraphBlock:
		return string(b.Option)
	default:
		return "-"
	}
}

// preview returns the first line of s, truncated.
func preview(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	if r := []rune(line); len(r) > maxPreviewWidth {
		return string(r[:maxPreviewWidth-3]) + "..."
	}
	return line
}
