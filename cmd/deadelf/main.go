package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/arxeiss/deadelf/analysis"

	_ "embed"
)

var (
	//go:embed doc.go
	doc string

	debugFlag = flag.Bool("debug", false, "enable debug output")
	helpFlag  = flag.Bool("help", false, "show help")

	langFlag    = flag.String("lang", "c", "source dialect of the translation units: c or cpp")
	objdumpFlag = flag.String("objdump", "objdump",
		"binary-inspection tool to invoke, e.g. sparc-rtems-objdump")
	outputFlag = flag.String("o", "deadFunctions", "report file; use - for stdout")

	cacheDirFlag = flag.String("cache-dir", ".cache", "directory for cached parsed trees")
	jobsFlag     = flag.Int("jobs", 0, "max parallel parsing workers (default: number of CPUs)")
	jsonFlag     = flag.Bool("json", false, "output the report as JSON")
)

func main() {
	flag.Parse()
	if len(flag.Args()) < 2 || *helpFlag {
		usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	args := flag.Args()
	runner := analysis.New(os.Stdout, os.Stderr, args[0], args[1:])
	runner.DebugFlag = *debugFlag
	runner.LangFlag = *langFlag
	runner.ObjdumpFlag = *objdumpFlag
	runner.OutputFlag = *outputFlag
	runner.CacheDirFlag = *cacheDirFlag
	runner.JobsFlag = *jobsFlag
	runner.JSONFlag = *jsonFlag

	err := runner.Run(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func usage() {
	// Extract the content of the /* ... */ comment in doc.go.
	_, after, _ := strings.Cut(doc, "/*\n")
	doc, _, _ := strings.Cut(after, "*/")
	_, _ = os.Stderr.WriteString(doc + `
Flags:

`)
	flag.PrintDefaults()
}
