// Package route implements documentation addressing: a per-package path
// interner, the Stem/Leaf/Route keys built from it, and the table mapping
// routes to the entities that print under them.
package route

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

// Stem is an interned, case-folded path fragment. Only the low 31 bits are
// used so a Leaf can carry an orientation bit.
type Stem uint32

// MaxStem is the largest stem an interner hands out.
const MaxStem Stem = 1<<31 - 1

// Empty is the stem of the empty path.
const Empty Stem = 0

// separator joins folded components. Components never contain it, so
// distinct component lists never share a key.
const separator = "\x1f"

// Key folds and joins components the way the interner does.
func Key(components ...string) string {
	folder := cases.Fold()
	folded := make([]string, len(components))
	for i, c := range components {
		folded[i] = folder.String(c)
	}
	return strings.Join(folded, separator)
}

// Interner assigns stems to case-folded path fragments. One interner serves
// one package; identical text in different packages gets unrelated stems.
type Interner struct {
	mu    sync.RWMutex
	table map[string]Stem
	texts []string
}

// NewInterner returns an interner holding only the empty path.
func NewInterner() *Interner {
	return &Interner{
		table: map[string]Stem{"": Empty},
		texts: []string{""},
	}
}

// Register returns the stem for components, assigning the next one on a
// miss.
func (in *Interner) Register(components ...string) Stem {
	key := Key(components...)
	in.mu.RLock()
	stem, ok := in.table[key]
	in.mu.RUnlock()
	if ok {
		return stem
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if stem, ok := in.table[key]; ok {
		return stem
	}
	if Stem(len(in.texts)) > MaxStem {
		panic("route: interner exhausted 31-bit stem space")
	}
	stem = Stem(len(in.texts))
	in.table[key] = stem
	in.texts = append(in.texts, key)
	return stem
}

// Lookup returns the stem for components without registering anything.
func (in *Interner) Lookup(components ...string) (Stem, bool) {
	key := Key(components...)
	in.mu.RLock()
	defer in.mu.RUnlock()
	stem, ok := in.table[key]
	return stem, ok
}

// Text returns the folded key a stem was registered under.
func (in *Interner) Text(stem Stem) string {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if int(stem) >= len(in.texts) {
		panic(fmt.Sprintf("route: stem %d was never registered", stem))
	}
	return in.texts[stem]
}

// Len returns the number of registered stems, including the empty path.
func (in *Interner) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.texts)
}

// Texts returns every registered key in stem order.
func (in *Interner) Texts() []string {
	in.mu.RLock()
	defer in.mu.RUnlock()
	out := make([]string, len(in.texts))
	copy(out, in.texts)
	return out
}

// Restore reloads persisted keys in stem order into a fresh interner.
func (in *Interner) Restore(texts []string) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if len(in.texts) != 1 {
		return fmt.Errorf("restore stems: interner already holds %d stems", len(in.texts))
	}
	if len(texts) == 0 || texts[0] != "" {
		return fmt.Errorf("restore stems: stem 0 must be the empty path")
	}
	for i, text := range texts[1:] {
		if _, dup := in.table[text]; dup {
			return fmt.Errorf("restore stems: duplicate key at stem %d", i+1)
		}
		in.table[text] = Stem(i + 1)
		in.texts = append(in.texts, text)
	}
	return nil
}
