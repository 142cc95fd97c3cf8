// Package phrase generates human-readable transfer codes of the form
// "misty-harbor-4821": easy to read over the phone, with enough entropy
// that collisions within a TTL window are negligible.
package phrase

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/neutron-sync/neutron-sync/internal/nsync"
)

// Generator produces adjective-noun-token codes from the embedded word
// lists using a cryptographically secure source.
type Generator struct{}

var _ nsync.CodeGenerator = (*Generator)(nil)

// NewGenerator creates a Generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// New returns a fresh code.
func (g *Generator) New() (string, error) {
	adj, err := pick(adjectives)
	if err != nil {
		return "", err
	}
	noun, err := pick(nouns)
	if err != nil {
		return "", err
	}
	token, err := randInt(10000)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%04d", adj, noun, token), nil
}

func pick(words []string) (string, error) {
	i, err := randInt(int64(len(words)))
	if err != nil {
		return "", err
	}
	return words[i], nil
}

func randInt(max int64) (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(max))
	if err != nil {
		return 0, fmt.Errorf("generating code: %w", err)
	}
	return n.Int64(), nil
}
