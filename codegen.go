package kayero

import (
	"slices"
	"strings"
)

// PieChart is the default chart type. Pie charts take no axis labels.
const PieChart = "pieChart"

// HintSchema reports which hint keys a chart type accepts. Implementations
// return nil for unknown chart types; key order is not significant.
type HintSchema interface {
	HintKeys(graphType string) []string
}

// GenerateCode produces the source of a graph block:
//
//	return graphs.<type>(<dataPath>[, '<x>', '<y>'][, {key: 'value', ...}]);
//
// Labels are omitted for pie charts. Hints are limited to keys the schema
// accepts for the chart type, have non-empty values and are emitted in key
// order. Label and hint values are emitted as single-quoted JavaScript
// string literals; the data path and hint keys are emitted as written.
func GenerateCode(g *GraphBlock, schema HintSchema) string {
	var b strings.Builder
	b.WriteString("return graphs.")
	b.WriteString(g.GraphType)
	b.WriteByte('(')
	b.WriteString(g.DataPath)
	b.WriteString(labelArgs(g))
	b.WriteString(hintArgs(g, schema))
	b.WriteString(");")
	return b.String()
}

func labelArgs(g *GraphBlock) string {
	if g.GraphType == PieChart {
		return ""
	}
	return ", " + quoteJS(g.Labels.X) + ", " + quoteJS(g.Labels.Y)
}

func hintArgs(g *GraphBlock, schema HintSchema) string {
	if schema == nil || len(g.Hints) == 0 {
		return ""
	}
	keys := slices.Clone(schema.HintKeys(g.GraphType))
	slices.Sort(keys)
	keys = slices.Compact(keys)

	var args []string
	for _, key := range keys {
		if value := g.Hints[key]; value != "" {
			args = append(args, key+": "+quoteJS(value))
		}
	}
	if len(args) == 0 {
		return ""
	}
	return ", {" + strings.Join(args, ", ") + "}"
}

var jsEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"\n", `\n`,
	"\r", `\r`,
	"\u2028", `\u2028`,
	"\u2029", `\u2029`,
)

func quoteJS(s string) string {
	return "'" + jsEscaper.Replace(s) + "'"
}
