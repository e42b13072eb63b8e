package biome

import (
	"strings"
	"unicode"
)

// Qualifiers narrow an ambiguous group. Host and Base are external symbol
// ids; Kind is a symbol kind.
type Qualifiers struct {
	Host string
	Base string
	Kind string
}

// Link is one expression to resolve from a scope.
type Link struct {
	Expression string
	Scope      Scope
	Qualifiers Qualifiers
}

// ParseExpression splits a link expression into path components. '/'
// always separates; '.' separates only between identifier characters
// outside brackets, so operator names and argument labels stay intact. The
// separator before the last component sets the orientation.
func ParseExpression(expression string) ([]string, Orientation) {
	runes := []rune(strings.TrimSpace(expression))
	var (
		components []string
		current    []rune
		depth      int
		last       = TypeLike
	)
	flush := func(sep Orientation) {
		if len(current) > 0 {
			components = append(components, string(current))
			current = current[:0]
			last = sep
		}
	}
	for i, r := range runes {
		switch {
		case r == '(' || r == '[' || r == '<':
			depth++
		case (r == ')' || r == ']' || r == '>') && depth > 0:
			depth--
		}
		if depth == 0 && r == '/' {
			flush(TypeLike)
			continue
		}
		if depth == 0 && r == '.' && i > 0 && i+1 < len(runes) &&
			isIdentifier(runes[i-1]) && isIdentifier(runes[i+1]) {
			flush(ValueLike)
			continue
		}
		current = append(current, r)
	}
	if len(current) > 0 {
		components = append(components, string(current))
	}
	if len(components) < 2 {
		return components, TypeLike
	}
	return components, last
}

func isIdentifier(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
