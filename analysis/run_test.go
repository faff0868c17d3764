package analysis_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/arxeiss/deadelf/analysis"
	"github.com/arxeiss/deadelf/binary"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Runner", func() {
	var (
		stdOut *bytes.Buffer
		stdErr *bytes.Buffer
		tmpDir string
	)

	ctx := context.Background()

	BeforeEach(func() {
		stdOut = bytes.NewBuffer(nil)
		stdErr = bytes.NewBuffer(nil)
		tmpDir = GinkgoT().TempDir()
	})

	newRunner := func(units ...string) *analysis.Runner {
		r := analysis.New(stdOut, stdErr, "firmware.elf", units)
		r.ObjdumpFlag = "testdata/bin/objdump"
		r.CacheDirFlag = filepath.Join(tmpDir, "cache")
		r.OutputFlag = filepath.Join(tmpDir, "deadFunctions")
		return r
	}

	readReport := func(r *analysis.Runner) string {
		raw, err := os.ReadFile(r.OutputFlag)
		Expect(err).To(Succeed())
		return string(raw)
	}

	It("fails on missing binary path", func() {
		r := analysis.New(stdOut, stdErr, "", []string{"testdata/src/main.c"})
		Expect(r.Run(ctx)).To(MatchError("no binary provided"))
	})

	It("fails on no source files", func() {
		r := analysis.New(stdOut, stdErr, "firmware.elf", nil)
		Expect(r.Run(ctx)).To(MatchError("no source files provided"))
	})

	It("fails fatally when the tool is absent", func() {
		r := newRunner("testdata/src/main.c")
		r.ObjdumpFlag = "no-such-objdump-on-this-machine"

		err := r.Run(ctx)
		toolErr := &binary.ToolError{}
		Expect(errors.As(err, &toolErr)).To(BeTrue())
	})

	It("fails fatally on an empty symbol table", func() {
		r := newRunner("testdata/src/main.c")
		r.ObjdumpFlag = "testdata/bin/objdump-empty"

		err := r.Run(ctx)
		toolErr := &binary.ToolError{}
		Expect(errors.As(err, &toolErr)).To(BeTrue())
	})

	It("fails fatally on an unknown dialect", func() {
		r := newRunner("testdata/src/main.c")
		r.LangFlag = "fortran"
		Expect(r.Run(ctx)).To(MatchError("unsupported dialect: fortran"))
	})

	Describe("the firmware scenario", func() {
		// Universe: main, foo, bar, baz, qux ("ghost" is in the symbol table
		// but nowhere in the disassembly). Source: main calls foo, bar sits
		// in a dispatch table initializer, a local named baz shadows the
		// function. Disassembly: _crt0 calls main, a vendor stub calls qux.

		It("reports only the truly unreferenced function", func() {
			r := newRunner("testdata/src/main.c")
			Expect(r.Run(ctx)).To(Succeed())
			Expect(readReport(r)).To(Equal("baz\n"))
		})

		It("writes the report to the writer when asked", func() {
			r := newRunner("testdata/src/main.c")
			r.OutputFlag = "-"
			Expect(r.Run(ctx)).To(Succeed())
			Expect(stdOut.String()).To(Equal("baz\n"))
		})

		It("removes a function from the dead set once a new unit references it", func() {
			r := newRunner("testdata/src/main.c", "testdata/src/watchdog.c")
			Expect(r.Run(ctx)).To(Succeed())
			Expect(readReport(r)).To(BeEmpty())
		})

		It("produces byte-identical reports for cold and warm cache", func() {
			r := newRunner("testdata/src/main.c")
			Expect(r.Run(ctx)).To(Succeed())
			cold := readReport(r)

			entries, err := os.ReadDir(r.CacheDirFlag)
			Expect(err).To(Succeed())
			Expect(entries).NotTo(BeEmpty(), "first run populates the cache")

			r2 := newRunner("testdata/src/main.c")
			Expect(r2.Run(ctx)).To(Succeed())
			Expect(readReport(r2)).To(Equal(cold))
		})

		It("emits a JSON report", func() {
			r := newRunner("testdata/src/main.c")
			r.OutputFlag = "-"
			r.JSONFlag = true
			Expect(r.Run(ctx)).To(Succeed())

			Expect(stdOut.String()).To(MatchJSON(`{
				"binary": "firmware.elf",
				"total_functions": 5,
				"dead_functions": ["baz"]
			}`))
		})

		It("isolates a unit that cannot be read", func() {
			r := newRunner("testdata/src/main.c", "testdata/src/does-not-exist.c")
			Expect(r.Run(ctx)).To(Succeed())
			Expect(readReport(r)).To(Equal("baz\n"))
			Expect(stdErr.String()).To(ContainSubstring("Unit contributes no usage evidence"))
		})

		It("logs collected evidence in debug mode", func() {
			r := newRunner("testdata/src/main.c")
			r.DebugFlag = true
			Expect(r.Run(ctx)).To(Succeed())

			Expect(stdErr.String()).To(ContainSubstring("Established function universe"))
			Expect(stdErr.String()).To(ContainSubstring("symbol=foo"))
			Expect(stdErr.String()).To(ContainSubstring("kind=call"))
			Expect(stdErr.String()).To(ContainSubstring("symbol=bar"))
			Expect(stdErr.String()).To(ContainSubstring("kind=pointer-reference"))
		})
	})
})
