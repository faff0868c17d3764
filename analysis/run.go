package analysis

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/arxeiss/deadelf/binary"
	"github.com/arxeiss/deadelf/ctree"
)

// Runner holds all configuration for one dead-function analysis of a binary
// and its preprocessed translation units.
type Runner struct {
	writer    io.Writer
	errWriter io.Writer
	log       zerolog.Logger

	// DebugFlag turns on more verbose output.
	DebugFlag bool
	// LangFlag selects the source dialect, "c" or "cpp".
	LangFlag string
	// CacheDirFlag is the tree cache directory; deleting it forces a cold run.
	CacheDirFlag string
	// OutputFlag names the report artifact; "-" writes to the output writer.
	OutputFlag string
	// ObjdumpFlag is the objdump executable, e.g. "sparc-rtems-objdump".
	ObjdumpFlag string
	// JobsFlag caps parallel unit workers; 0 means one per CPU.
	JobsFlag int
	// JSONFlag switches the report to JSON.
	JSONFlag bool

	// Scanner extracts symbol mentions from the disassembler's output
	// dialect; swap it to support another disassembler.
	Scanner binary.MentionScanner

	binaryPath string
	units      []string
}

// New creates a runner for one binary and its preprocessed source files.
// Each source file must be standalone, with no remaining includes or macros.
func New(writer, errWriter io.Writer, binaryPath string, units []string) *Runner {
	return &Runner{
		writer:       writer,
		errWriter:    errWriter,
		LangFlag:     string(ctree.DialectC),
		CacheDirFlag: ".cache",
		OutputFlag:   "deadFunctions",
		ObjdumpFlag:  "objdump",
		binaryPath:   binaryPath,
		units:        units,
		Scanner:      binary.GNUScanner{},
	}
}

// Run performs the analysis and writes the dead-function report. Only a
// failure to obtain the binary's ground truth is fatal; a translation unit
// that cannot be parsed merely contributes no usage evidence, which can only
// make the report more conservative.
func (r *Runner) Run(ctx context.Context) error {
	if r.binaryPath == "" {
		return fmt.Errorf("no binary provided")
	}
	if len(r.units) == 0 {
		return fmt.Errorf("no source files provided")
	}
	r.log = newLogger(r.errWriter, r.DebugFlag)

	objdump := binary.NewObjdump(r.ObjdumpFlag, r.log)
	if err := objdump.Verify(); err != nil {
		return err
	}

	all, disasmUsed, err := r.readBinary(ctx, objdump)
	if err != nil {
		return err
	}

	records, err := r.collectSourceUsage(ctx, all)
	if err != nil {
		return err
	}
	sourceUsed := make(map[string]struct{}, len(records))
	for _, rec := range records {
		sourceUsed[rec.Symbol] = struct{}{}
	}

	dead := ResolveDead(all, sourceUsed, disasmUsed)
	r.log.Debug().Int("dead", len(dead)).Int("all", len(all)).Msg("Resolved dead set")

	return r.writeReport(&Report{Binary: r.binaryPath, Total: len(all), Dead: dead})
}

// readBinary establishes the function universe and the usage evidence the
// compiled artifact itself provides. The symbol table is corroborated
// against the disassembly's definition labels, since objdump -t reports
// function symbols that exist nowhere in the emitted code.
func (r *Runner) readBinary(ctx context.Context, objdump *binary.Objdump) (all, used map[string]struct{}, err error) {
	symtab, err := objdump.SymbolTable(ctx, r.binaryPath)
	if err != nil {
		return nil, nil, err
	}

	disasm, err := objdump.Disassembly(ctx, r.binaryPath)
	if err != nil {
		return nil, nil, err
	}
	mentions, err := r.Scanner.ScanMentions(bytes.NewReader(disasm))
	if err != nil {
		return nil, nil, &binary.ToolError{Tool: r.ObjdumpFlag, Err: err}
	}

	all = make(map[string]struct{}, len(symtab))
	for name := range symtab {
		if _, defined := mentions.Definitions[name]; defined {
			all[name] = struct{}{}
		}
	}
	if len(all) == 0 {
		return nil, nil, &binary.ToolError{
			Tool: r.ObjdumpFlag,
			Err:  fmt.Errorf("symbol table and disassembly of %s have no function in common", r.binaryPath),
		}
	}
	r.log.Debug().
		Int("functions", len(all)).
		Int("mentions", len(mentions.Referenced)).
		Msg("Established function universe")

	return all, mentions.Referenced, nil
}

// collectSourceUsage parses every unit and gathers usage records. Units are
// independent, so they run on parallel workers; the record accumulator is the
// only shared state and set union is order-insensitive.
func (r *Runner) collectSourceUsage(ctx context.Context, all map[string]struct{}) ([]UsageRecord, error) {
	parser, err := ctree.NewParser(ctree.Dialect(r.LangFlag), ctree.NewCache(r.CacheDirFlag), r.log)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		records []UsageRecord
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.jobs())
	for _, path := range r.units {
		path := path
		g.Go(func() error {
			unit, err := parser.ParseUnit(ctx, path)
			if err != nil {
				r.log.Warn().Str("unit", path).Err(err).Msg("Unit contributes no usage evidence")
				return nil
			}
			found := CollectUsages(unit, all)
			mu.Lock()
			records = append(records, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, rec := range records {
		r.log.Debug().
			Str("symbol", rec.Symbol).
			Str("kind", string(rec.Kind)).
			Str("unit", rec.Unit).
			Uint32("line", rec.Line).
			Msg("Usage")
	}
	return records, nil
}

func (r *Runner) jobs() int {
	if r.JobsFlag > 0 {
		return r.JobsFlag
	}
	return runtime.NumCPU()
}

func (r *Runner) writeReport(report *Report) error {
	out := r.writer
	var file *os.File
	if r.OutputFlag != "" && r.OutputFlag != "-" {
		f, err := os.Create(r.OutputFlag)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		file = f
		out = f
	}

	var writeErr error
	if r.JSONFlag {
		writeErr = report.WriteJSON(out)
	} else {
		writeErr = report.WriteText(out)
	}

	if file == nil {
		return writeErr
	}
	closeErr := file.Close()
	if writeErr != nil {
		return writeErr
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close report file: %w", closeErr)
	}
	return nil
}

func newLogger(w io.Writer, debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	cw := zerolog.ConsoleWriter{
		Out:          w,
		NoColor:      true,
		PartsExclude: []string{zerolog.TimestampFieldName},
	}
	return zerolog.New(cw).Level(level)
}
