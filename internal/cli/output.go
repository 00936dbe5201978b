package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// Result is one evaluated flag as the CLI prints it.
type Result struct {
	FlagKey      string `json:"flagKey" yaml:"flagKey"`
	Type         string `json:"type" yaml:"type"`
	Value        any    `json:"value" yaml:"value"`
	Variant      string `json:"variant,omitempty" yaml:"variant,omitempty"`
	Reason       string `json:"reason" yaml:"reason"`
	ErrorCode    string `json:"errorCode,omitempty" yaml:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty" yaml:"errorMessage,omitempty"`
}

// PrintResults outputs results in the specified format
func PrintResults(w io.Writer, results []Result, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, map[string][]Result{"results": results})
	case FormatYAML:
		return printYAML(w, map[string][]Result{"results": results})
	case FormatTable:
		return printTable(w, results)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintResult outputs a single result in the specified format
func PrintResult(w io.Writer, result Result, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, result)
	case FormatYAML:
		return printYAML(w, result)
	case FormatTable:
		return printTable(w, []Result{result})
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}

func printTable(w io.Writer, results []Result) error {
	table := tablewriter.NewWriter(w)
	table.Header("Flag", "Type", "Value", "Variant", "Reason", "Error")

	for _, r := range results {
		errText := r.ErrorCode
		if r.ErrorMessage != "" {
			errText = fmt.Sprintf("%s: %s", r.ErrorCode, r.ErrorMessage)
		}
		if len(errText) > 50 {
			errText = errText[:47] + "..."
		}

		if err := table.Append(r.FlagKey, r.Type, formatValue(r.Value), r.Variant, r.Reason, errText); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}

	return table.Render()
}

// formatValue renders scalars as-is and objects as compact JSON.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool, float64, int, int64:
		return fmt.Sprint(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
