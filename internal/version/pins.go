package version

import "sort"

// Pins maps each dependency package to the version a local revision was
// built against. Pins are passed explicitly into every cross-package read.
type Pins map[Package]Version

// Clone returns an independent copy. A nil receiver yields an empty map.
func (p Pins) Clone() Pins {
	out := make(Pins, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Packages returns the pinned packages in ascending order.
func (p Pins) Packages() []Package {
	pkgs := make([]Package, 0, len(p))
	for k := range p {
		pkgs = append(pkgs, k)
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i] < pkgs[j] })
	return pkgs
}

// Equal reports whether both pin sets select the same versions.
func (p Pins) Equal(other Pins) bool {
	if len(p) != len(other) {
		return false
	}
	for k, v := range p {
		if w, ok := other[k]; !ok || w != v {
			return false
		}
	}
	return true
}
