package nsync

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Translator converts between absolute local paths and the machine-independent
// form used in the manifest and the repository layout. Each translation maps a
// name like "_home" to a local base directory; "/home/al/.tmux.conf" becomes
// "_home/.tmux.conf" on a machine where _home is /home/al, and expands to
// "/Users/al/.tmux.conf" on one where it is /Users/al.
type Translator struct {
	names []string          // sorted by descending base length, so the most specific base wins
	bases map[string]string // name -> local absolute base
}

// NewTranslator builds a Translator from a name -> base-directory map.
func NewTranslator(translations map[string]string) *Translator {
	t := &Translator{bases: make(map[string]string, len(translations))}
	for name, base := range translations {
		t.bases[name] = filepath.Clean(base)
		t.names = append(t.names, name)
	}
	sort.Slice(t.names, func(i, j int) bool {
		bi, bj := t.bases[t.names[i]], t.bases[t.names[j]]
		if len(bi) != len(bj) {
			return len(bi) > len(bj)
		}
		return t.names[i] < t.names[j]
	})
	return t
}

// ToRepo translates an absolute local path to its repository-relative form.
func (t *Translator) ToRepo(absPath string) (string, error) {
	absPath = filepath.Clean(absPath)
	for _, name := range t.names {
		base := t.bases[name]
		rel, err := filepath.Rel(base, absPath)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if rel == "." {
			return name, nil
		}
		return filepath.ToSlash(filepath.Join(name, rel)), nil
	}
	return "", fmt.Errorf("no translation covers %s", absPath)
}

// ToLocal expands a repository-relative path to an absolute local path.
func (t *Translator) ToLocal(repoRel string) (string, error) {
	repoRel = filepath.ToSlash(repoRel)
	name, rest, _ := strings.Cut(repoRel, "/")
	base, ok := t.bases[name]
	if !ok {
		return "", fmt.Errorf("unknown translation %q in %s", name, repoRel)
	}
	return filepath.Join(base, filepath.FromSlash(rest)), nil
}
