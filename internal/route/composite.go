package route

import (
	"fmt"

	"github.com/jward/biome/internal/arena"
)

// Diacritic qualifies a base symbol as seen through another type: the host
// it was inherited or extended into, and the module that declared the
// relationship.
type Diacritic struct {
	Host    arena.SymbolIndex
	Culture arena.ModuleIndex
}

// Composite is a symbol as it appears in documentation. A natural
// composite is the symbol declared in place; a feature composite is the
// symbol surfacing as a member of another type.
type Composite struct {
	Base      arena.SymbolIndex
	Diacritic Diacritic
}

// Natural returns the composite for a symbol in its own declaration.
func Natural(base arena.SymbolIndex) Composite {
	return Composite{Base: base, Diacritic: Diacritic{Host: base, Culture: base.Culture}}
}

// Feature returns the composite for base surfacing on host, as declared by
// culture.
func Feature(base, host arena.SymbolIndex, culture arena.ModuleIndex) Composite {
	return Composite{Base: base, Diacritic: Diacritic{Host: host, Culture: culture}}
}

// IsNatural reports whether the composite is the symbol's own declaration.
func (c Composite) IsNatural() bool {
	return c.Diacritic.Host == c.Base && c.Diacritic.Culture == c.Base.Culture
}

// Host returns the host a feature composite surfaces on.
func (c Composite) Host() (arena.SymbolIndex, bool) {
	if c.IsNatural() {
		return arena.SymbolIndex{}, false
	}
	return c.Diacritic.Host, true
}

func (c Composite) String() string {
	if c.IsNatural() {
		return c.Base.String()
	}
	return fmt.Sprintf("%s@%s(%s)", c.Base, c.Diacritic.Host, c.Diacritic.Culture)
}
