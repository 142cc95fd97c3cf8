package phrase_test

import (
	"regexp"
	"testing"

	"github.com/neutron-sync/neutron-sync/internal/phrase"
)

func TestGenerator_New(t *testing.T) {
	codeRE := regexp.MustCompile(`^[a-z]+-[a-z]+-\d{4}$`)

	g := phrase.NewGenerator()
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := g.New()
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if !codeRE.MatchString(code) {
			t.Fatalf("New() = %q, want adjective-noun-NNNN", code)
		}
		seen[code] = true
	}
	// 50 draws from the code space colliding completely would mean the
	// generator is not random at all.
	if len(seen) < 2 {
		t.Errorf("50 codes produced %d distinct values", len(seen))
	}
}
