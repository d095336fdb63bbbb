// Command verifycache checks a file result store for integrity: every entry
// must sit at its content address, decode, hash to its fingerprint, and hold
// exactly the risk series the current model computes for its weather.
//
// Usage:
//
//	go run ./cmd/verifycache -store data/cache
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/frcm-service/internal/domain"
	"github.com/couchcryptid/frcm-service/internal/firerisk"
	"github.com/couchcryptid/frcm-service/internal/store"
)

// phase tracks pass/fail for a verification phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	root := flag.String("store", "data/cache", "root directory of the file result store")
	flag.Parse()

	if *root == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(context.Background(), *root, os.Stdout); code != 0 {
		os.Exit(code)
	}
}

func run(ctx context.Context, root string, w io.Writer) int {
	fmt.Fprintln(w, "=== Fire Risk Cache Verification ===")
	fmt.Fprintln(w)

	if _, err := os.Stat(root); err != nil {
		fmt.Fprintf(w, "FATAL: %v\n", err)
		return 1
	}

	rs, err := store.NewFileStore(root)
	if err != nil {
		fmt.Fprintf(w, "FATAL: open store: %v\n", err)
		return 1
	}

	layout, fingerprints := verifyLayout(root)
	integrity, entries := verifyIntegrity(ctx, rs, fingerprints)
	phases := []*phase{
		layout,
		integrity,
		verifyReproducible(entries),
	}

	fmt.Fprintln(w)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Entries: %d found, %d intact\n", len(fingerprints), len(entries))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll verifications passed.")
		return 0
	}
	fmt.Fprintln(w, "\nVerification FAILED.")
	return 1
}

// verifyLayout walks the store root and returns the fingerprints of all files
// found at a valid content address.
func verifyLayout(root string) (*phase, []domain.Fingerprint) {
	p := &phase{name: "Phase 1: Store layout"}
	var found []domain.Fingerprint

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			p.errorf("%s: %v", path, err)
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		if d.IsDir() {
			if rel != "." && (len(d.Name()) != 2 || strings.Count(rel, string(filepath.Separator)) > 0) {
				p.errorf("%s: unexpected directory", rel)
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		if strings.HasPrefix(name, ".tmp-") {
			p.errorf("%s: leftover temporary file", rel)
			return nil
		}
		fp, perr := domain.ParseFingerprint(strings.TrimSuffix(name, ".json"))
		if perr != nil || filepath.Ext(name) != ".json" {
			p.errorf("%s: not a content-addressed entry", rel)
			return nil
		}
		if filepath.Base(filepath.Dir(path)) != fp.String()[:2] {
			p.errorf("%s: entry in wrong shard", rel)
			return nil
		}
		found = append(found, fp)
		return nil
	})
	if err != nil {
		p.errorf("walk: %v", err)
	}
	return p, found
}

// verifyIntegrity reads every entry through the store, which re-hashes the
// stored weather series against the key.
func verifyIntegrity(ctx context.Context, rs *store.FileStore, fps []domain.Fingerprint) (*phase, []*store.CacheEntry) {
	p := &phase{name: "Phase 2: Entry integrity"}
	entries := make([]*store.CacheEntry, 0, len(fps))
	for _, fp := range fps {
		entry, err := rs.Get(ctx, fp)
		switch {
		case err == nil:
			entries = append(entries, entry)
		case domain.IsIntegrity(err):
			p.errorf("%s: %v", fp.Short(), err)
		case errors.Is(err, store.ErrNotFound):
			p.errorf("%s: vanished during verification", fp.Short())
		default:
			p.errorf("%s: read: %v", fp.Short(), err)
		}
	}
	return p, entries
}

// verifyReproducible recomputes each intact entry with the default model. A
// mismatch means the model changed since the entry was cached.
func verifyReproducible(entries []*store.CacheEntry) *phase {
	p := &phase{name: "Phase 3: Risk reproducibility"}
	model := firerisk.NewDefault()
	for _, e := range entries {
		risk, err := model.Compute(e.Weather)
		if err != nil {
			p.errorf("%s: recompute: %v", e.Fingerprint.Short(), err)
			continue
		}
		if !risk.Equal(e.Risk) {
			p.errorf("%s: stored risk differs from recomputed risk", e.Fingerprint.Short())
		}
	}
	return p
}
