// Package binary extracts ground truth about a compiled artifact through the
// platform binary-inspection tools: the full function symbol table and every
// symbol mention visible in the disassembly.
package binary

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// ToolError is fatal: without the symbol-dump or disassembly output there is
// no ground truth for the set of all functions and the run cannot proceed.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Tool, e.Err.Error())
}

func (e *ToolError) Unwrap() error { return e.Err }

// funcSymbolLine matches objdump -t lines for functions defined in the code
// section. The symbol name is the last whitespace-separated field.
var funcSymbolLine = regexp.MustCompile(`\bF\s+\.text\b`)

// Objdump drives the platform objdump (or a target-prefixed variant such as
// sparc-rtems-objdump) for both symbol dumping and disassembly.
type Objdump struct {
	tool string
	log  zerolog.Logger
}

// NewObjdump wraps the given objdump executable. Tool may be a bare name
// resolved through $PATH or an explicit path.
func NewObjdump(tool string, log zerolog.Logger) *Objdump {
	return &Objdump{tool: tool, log: log}
}

// Verify checks the tool can be found before any unit parsing starts.
func (o *Objdump) Verify() error {
	if _, err := exec.LookPath(o.tool); err != nil {
		return &ToolError{Tool: o.tool, Err: err}
	}
	return nil
}

// SymbolTable returns the names of all function symbols defined in the
// binary's code section, per `objdump -t`. Data symbols are filtered out.
func (o *Objdump) SymbolTable(ctx context.Context, binPath string) (map[string]struct{}, error) {
	out, err := o.run(ctx, "-t", binPath)
	if err != nil {
		return nil, err
	}

	symbols := make(map[string]struct{})
	for _, line := range strings.Split(string(out), "\n") {
		if !funcSymbolLine.MatchString(line) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		symbols[fields[len(fields)-1]] = struct{}{}
	}
	if len(symbols) == 0 {
		return nil, &ToolError{Tool: o.tool, Err: fmt.Errorf("no function symbols in symbol table of %s", binPath)}
	}
	o.log.Debug().Int("symbols", len(symbols)).Str("binary", binPath).Msg("Read symbol table")
	return symbols, nil
}

// Disassembly returns the raw `objdump -d -S` text of the binary.
func (o *Objdump) Disassembly(ctx context.Context, binPath string) ([]byte, error) {
	return o.run(ctx, "-d", "-S", binPath)
}

func (o *Objdump) run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, o.tool, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, &ToolError{Tool: o.tool, Err: fmt.Errorf("%s\nErr: %s", out, err.Error())}
	}
	return out, nil
}
