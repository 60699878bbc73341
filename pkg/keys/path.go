package keys

import "strings"

// RootMode selects how the root segment of a path is rendered.
type RootMode uint8

const (
	// SeparatedRoot terminates the root name with Separator like every other
	// segment, so root collections whose names are string prefixes of one
	// another ("fir", "first") never share a key range.
	SeparatedRoot RootMode = iota
	// LegacyRoot renders the root name verbatim with no trailing Separator.
	// It reproduces the layout of stores written before SeparatedRoot existed;
	// root collections may alias each other in this mode.
	//
	// Aliasing also breaks scan symmetry. A partition "r" of root "fi" is
	// stored under "fi"+"r"+Separator, which the root "fir" sees on a forward
	// scan as a key starting with Separator. A reverse scan of "fir" starts
	// below UpperBound("fir") = "fir"+Separator and so never returns it.
	LegacyRoot
)

// Path identifies a collection, root to leaf. The zero value is not a valid path.
type Path struct {
	segments []string
	prefix   []byte
	mode     RootMode
}

// Root returns the path of a root collection.
func Root(name string, mode RootMode) (Path, error) {
	if err := ValidateName(name); err != nil {
		return Path{}, err
	}

	prefix := []byte(name)
	if mode == SeparatedRoot {
		prefix = append(prefix, separatorBytes...)
	}

	return Path{
		segments: []string{name},
		prefix:   prefix,
		mode:     mode,
	}, nil
}

// Child returns the path of partition name below p. p is left untouched.
func (p Path) Child(name string) (Path, error) {
	if err := ValidateName(name); err != nil {
		return Path{}, err
	}

	segments := make([]string, len(p.segments), len(p.segments)+1)
	copy(segments, p.segments)

	prefix := make([]byte, 0, len(p.prefix)+len(name)+len(separatorBytes))
	prefix = append(prefix, p.prefix...)
	prefix = append(prefix, name...)
	prefix = append(prefix, separatorBytes...)

	return Path{
		segments: append(segments, name),
		prefix:   prefix,
		mode:     p.mode,
	}, nil
}

// Segments returns a copy of the path segments.
func (p Path) Segments() []string {
	return append([]string(nil), p.segments...)
}

// Name returns the last segment.
func (p Path) Name() string {
	if len(p.segments) == 0 {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

// Depth is the number of segments; 1 for a root collection.
func (p Path) Depth() int {
	return len(p.segments)
}

// Prefix returns the rendered physical prefix. The returned slice must not be modified.
func (p Path) Prefix() []byte {
	return p.prefix
}

// Mode returns the root rendering mode the path was built with.
func (p Path) Mode() RootMode {
	return p.mode
}

// String joins the segments with "/" for display.
func (p Path) String() string {
	return strings.Join(p.segments, "/")
}

// ParsePath builds a path from a "/"-separated display string such as
// "first/inner1".
func ParsePath(s string, mode RootMode) (Path, error) {
	parts := strings.Split(strings.Trim(s, "/"), "/")

	path, err := Root(parts[0], mode)
	if err != nil {
		return Path{}, err
	}

	for _, part := range parts[1:] {
		if path, err = path.Child(part); err != nil {
			return Path{}, err
		}
	}

	return path, nil
}
