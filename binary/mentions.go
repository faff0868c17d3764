package binary

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
)

type (
	// Mentions is everything a disassembly reveals about symbols: where they
	// are defined and where their names appear as call targets or
	// materialized addresses.
	Mentions struct {
		// Definitions are symbols with an `addr <name>:` label, i.e. actually
		// present in the disassembled code. The symbol table is corroborated
		// against this set, since objdump -t reports symbols that exist
		// nowhere in the emitted code.
		Definitions map[string]struct{}
		// Referenced are symbols mentioned on instruction lines, as `<name>`
		// or `<name+0xOFF>` operand annotations.
		Referenced map[string]struct{}
	}

	// MentionScanner extracts symbol mentions from one disassembler output
	// dialect. Disassembly text is format-fragile, so the core set algebra
	// only ever sees the two resulting sets; supporting another disassembler
	// means swapping this adapter.
	MentionScanner interface {
		ScanMentions(r io.Reader) (*Mentions, error)
	}
)

var (
	// definitionLine matches function labels like `000010a0 <qux>:`.
	definitionLine = regexp.MustCompile(`^\s*([0-9a-fA-F]+)\s+<([A-Za-z_][A-Za-z0-9_]*)>:`)
	// operandMention matches symbolic operand annotations like `<qux>` and
	// `<qux+0x18>`; the offset is stripped so mid-function references still
	// count for the base symbol.
	operandMention = regexp.MustCompile(`<([A-Za-z_][A-Za-z0-9_]*)(?:\+0x[0-9a-fA-F]+)?>`)
)

// GNUScanner reads GNU binutils objdump output.
type GNUScanner struct{}

// ScanMentions splits the disassembly into definition labels and operand
// mentions. A line defining a symbol contributes no mention; everything the
// disassembler annotated symbolically on instruction lines does.
func (GNUScanner) ScanMentions(r io.Reader) (*Mentions, error) {
	m := &Mentions{
		Definitions: make(map[string]struct{}),
		Referenced:  make(map[string]struct{}),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if def := definitionLine.FindStringSubmatch(line); def != nil {
			m.Definitions[def[2]] = struct{}{}
			continue
		}
		for _, ref := range operandMention.FindAllStringSubmatch(line, -1) {
			m.Referenced[ref[1]] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan disassembly: %w", err)
	}
	return m, nil
}
