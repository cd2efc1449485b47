package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/mapforms/pkg/types"
)

var (
	okColor   = color.New(color.FgGreen)
	idColor   = color.New(color.FgCyan)
	headColor = color.New(color.Bold)
	dimColor  = color.New(color.Faint)
)

const timeFormat = "2006-01-02 15:04:05"

// emit writes v as indented JSON in --json mode and calls human otherwise.
func (a *app) emit(cmd *cobra.Command, v any, human func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	if a.jsonMode {
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		fmt.Fprintln(w, string(out))
		return nil
	}
	human(w)
	return nil
}

func printCreated(w io.Writer, what, id string) {
	fmt.Fprintf(w, "%s %s: %s\n", okColor.Sprint("Created"), what, idColor.Sprint(id))
}

func printDone(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, okColor.Sprintf(format, args...))
}

// table writes aligned columns. The first row is the header.
func table(w io.Writer, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, r := range rows {
		line := strings.Join(r, "\t")
		if i == 0 {
			line = headColor.Sprint(line)
		}
		fmt.Fprintln(tw, line)
	}
	tw.Flush()
}

func field(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%-12s %s\n", label+":", value)
}

func formatTime(t time.Time) string {
	return t.Local().Format(timeFormat)
}

// formatValue renders a cell for humans: text as-is, everything else as
// compact JSON.
func formatValue(v types.Value) string {
	switch x := v.(type) {
	case nil:
		return dimColor.Sprint("-")
	case types.StringValue:
		return string(x)
	case types.IconValue:
		return string(x)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v.Raw())
	}
	return string(data)
}

// parseValue turns a command-line argument into raw cell input. JSON
// objects and arrays are decoded; anything else is passed on as text for
// the column's grammar to interpret.
func parseValue(s string) (any, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || (trimmed[0] != '{' && trimmed[0] != '[') {
		return s, nil
	}
	var v any
	if err := decodeJSON(trimmed, &v); err != nil {
		return nil, fmt.Errorf("value looks like JSON but does not parse: %w", err)
	}
	return v, nil
}

// parseObject decodes a JSON object flag such as --data.
func parseObject(flag, s string) (map[string]any, error) {
	if s == "" {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := decodeJSON(s, &m); err != nil {
		return nil, fmt.Errorf("--%s must be a JSON object: %w", flag, err)
	}
	return m, nil
}

func decodeJSON(s string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	return dec.Decode(v)
}
