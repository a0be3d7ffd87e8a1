package host

import (
	"fmt"

	"github.com/agnivade/levenshtein"
)

// Walk visits root and its descendants depth-first, stopping early when fn
// returns false.
func Walk(root Node, fn func(Node) bool) {
	walk(root, fn)
}

func walk(n Node, fn func(Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children() {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

// FindAll returns the descendants of root (root excluded) with the given
// name whose kind is one of kinds. No kinds matches any kind.
func FindAll(root Node, name string, kinds ...Kind) []Node {
	var out []Node
	for _, c := range root.Children() {
		Walk(c, func(n Node) bool {
			if n.Name() == name && kindIn(n.Kind(), kinds) {
				out = append(out, n)
			}
			return true
		})
	}
	return out
}

// FindOne returns the single descendant of root with the given name and
// kind. Zero matches wrap [ErrNotFound] and name the closest existing
// descendant; several wrap [ErrAmbiguous].
func FindOne(root Node, name string, kind Kind) (Node, error) {
	matches := FindAll(root, name, kind)
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		if s := suggest(root, name, kind); s != "" {
			return nil, fmt.Errorf("%w: no %s named %q in %q (did you mean %q?)", ErrNotFound, kind, name, root.Name(), s)
		}
		return nil, fmt.Errorf("%w: no %s named %q in %q", ErrNotFound, kind, name, root.Name())
	default:
		return nil, fmt.Errorf("%w: %d %s nodes named %q in %q", ErrAmbiguous, len(matches), kind, name, root.Name())
	}
}

// suggest returns the name of the descendant of the wanted kind closest to
// name, or "" when nothing is within a third of the name's length.
func suggest(root Node, name string, kind Kind) string {
	best, bestDist := "", len(name)/3+1
	for _, c := range root.Children() {
		Walk(c, func(n Node) bool {
			if n.Kind() != kind {
				return true
			}
			if d := levenshtein.ComputeDistance(n.Name(), name); d < bestDist {
				best, bestDist = n.Name(), d
			}
			return true
		})
	}
	return best
}

func kindIn(k Kind, kinds []Kind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}
