package analysis

import (
	"encoding/json"
	"fmt"
	"io"
)

// Report is the final dead-function report for one binary.
type Report struct {
	// Binary is the analyzed artifact.
	Binary string `json:"binary"`
	// Total is the size of the function universe the subtraction ran over.
	Total int `json:"total_functions"`
	// Dead lists unreferenced functions, sorted lexicographically.
	Dead []string `json:"dead_functions"`
}

// WriteText emits one dead function name per line.
func (r *Report) WriteText(w io.Writer) error {
	for _, name := range r.Dead {
		if _, err := fmt.Fprintln(w, name); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return nil
}

// WriteJSON emits the full report as an indented JSON document.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "\t")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
