package ctree_test

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/arxeiss/deadelf/ctree"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Parser", func() {
	ctx := context.Background()

	writeUnit := func(name, src string) string {
		path := filepath.Join(GinkgoT().TempDir(), name)
		Expect(os.WriteFile(path, []byte(src), 0o644)).To(Succeed())
		return path
	}

	It("rejects an unknown dialect", func() {
		_, err := ctree.NewParser(ctree.Dialect("cobol"), nil, zerolog.Nop())
		Expect(err).To(MatchError("unsupported dialect: cobol"))
	})

	It("builds an arena tree with identifier leaves", func() {
		p, err := ctree.NewParser(ctree.DialectC, nil, zerolog.Nop())
		Expect(err).To(Succeed())

		unit, err := p.ParseUnit(ctx, writeUnit("main.c", "int main(void) { return process(); }\n"))
		Expect(err).To(Succeed())
		Expect(unit.Tree.Root().Kind).To(Equal("translation_unit"))

		spellings := make([]string, 0)
		unit.Tree.Walk(func(_ int, n *ctree.Node) {
			if n.Kind == "identifier" {
				spellings = append(spellings, n.Text)
			}
		})
		Expect(spellings).To(ContainElements("main", "process"))
	})

	It("records 1-based source lines", func() {
		p, err := ctree.NewParser(ctree.DialectC, nil, zerolog.Nop())
		Expect(err).To(Succeed())

		unit, err := p.ParseUnit(ctx, writeUnit("lines.c", "int a;\nint b;\n"))
		Expect(err).To(Succeed())
		Expect(unit.Tree.Root().Line).To(Equal(uint32(1)))

		var last uint32
		unit.Tree.Walk(func(_ int, n *ctree.Node) { last = n.Line })
		Expect(last).To(Equal(uint32(2)))
	})

	It("fails when the unit cannot be read", func() {
		p, err := ctree.NewParser(ctree.DialectC, nil, zerolog.Nop())
		Expect(err).To(Succeed())

		_, err = p.ParseUnit(ctx, filepath.Join(GinkgoT().TempDir(), "missing.c"))
		Expect(err).To(MatchError(ContainSubstring("failed to read translation unit")))
	})

	It("still yields a tree for a unit with syntax errors", func() {
		p, err := ctree.NewParser(ctree.DialectC, nil, zerolog.Nop())
		Expect(err).To(Succeed())

		unit, err := p.ParseUnit(ctx, writeUnit("broken.c", "int main( { return helper(); }\n"))
		Expect(err).To(Succeed())

		found := false
		unit.Tree.Walk(func(_ int, n *ctree.Node) {
			if n.Kind == "identifier" && n.Text == "helper" {
				found = true
			}
		})
		Expect(found).To(BeTrue(), "recoverable diagnostics must not lose the rest of the unit")
	})

	Describe("with a cache", func() {
		var (
			cacheDir string
			cache    *ctree.Cache
			p        *ctree.Parser
		)

		BeforeEach(func() {
			var err error
			cacheDir = GinkgoT().TempDir()
			cache = ctree.NewCache(cacheDir)
			p, err = ctree.NewParser(ctree.DialectC, cache, zerolog.Nop())
			Expect(err).To(Succeed())
		})

		It("persists the tree and reuses it on the next parse", func() {
			path := writeUnit("cached.c", "void tick(void) { }\n")

			first, err := p.ParseUnit(ctx, path)
			Expect(err).To(Succeed())

			stored, err := cache.Load(first.Fingerprint, ctree.DialectC)
			Expect(err).To(Succeed())
			Expect(stored).To(Equal(first.Tree))

			second, err := p.ParseUnit(ctx, path)
			Expect(err).To(Succeed())
			Expect(second.Tree).To(Equal(first.Tree))
			Expect(second.Fingerprint).To(Equal(first.Fingerprint))
		})

		It("reparses and repairs a corrupted entry", func() {
			path := writeUnit("corrupt.c", "void tock(void) { }\n")

			first, err := p.ParseUnit(ctx, path)
			Expect(err).To(Succeed())

			// Clobber the entry behind the cache's back.
			entry := filepath.Join(cacheDir, first.Fingerprint.String()+".json")
			Expect(os.WriteFile(entry, []byte("{"), 0o644)).To(Succeed())

			second, err := p.ParseUnit(ctx, path)
			Expect(err).To(Succeed())
			Expect(second.Tree).To(Equal(first.Tree))

			// And the entry is healthy again.
			stored, err := cache.Load(first.Fingerprint, ctree.DialectC)
			Expect(err).To(Succeed())
			Expect(stored).To(Equal(first.Tree))
		})

		It("keys the cache by content, not by path", func() {
			a := writeUnit("a.c", "void same(void) { }\n")
			b := writeUnit("b.c", "void same(void) { }\n")

			ua, err := p.ParseUnit(ctx, a)
			Expect(err).To(Succeed())
			ub, err := p.ParseUnit(ctx, b)
			Expect(err).To(Succeed())
			Expect(ua.Fingerprint).To(Equal(ub.Fingerprint))
		})
	})
})
