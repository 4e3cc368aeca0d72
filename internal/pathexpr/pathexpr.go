// ABOUTME: Path expressions locating client identifiers inside arbitrary payloads
// ABOUTME: Parses $.a.b.0.c into an accessor sequence evaluated against decoded JSON

package pathexpr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPath is returned when an expression does not match the grammar.
var ErrInvalidPath = errors.New("invalid path expression")

// segment is one accessor: a field name or an array index.
type segment struct {
	field string
	index int
	isIdx bool
}

// Path is a parsed path expression. A Path is parsed once and can be
// evaluated against any number of payloads.
type Path struct {
	raw      string
	segments []segment
}

// Parse validates expr against the grammar $.seg(.seg)* where each segment
// is an identifier or a non-negative integer, and returns the parsed Path.
func Parse(expr string) (*Path, error) {
	rest, ok := strings.CutPrefix(expr, "$")
	if !ok {
		return nil, fmt.Errorf("%w: %q must start with $", ErrInvalidPath, expr)
	}
	if rest == "" {
		return &Path{raw: expr}, nil
	}
	if !strings.HasPrefix(rest, ".") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, expr)
	}

	parts := strings.Split(rest[1:], ".")
	segments := make([]segment, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, expr)
		}
		if idx, err := strconv.Atoi(part); err == nil {
			if idx < 0 {
				return nil, fmt.Errorf("%w: negative index in %q", ErrInvalidPath, expr)
			}
			segments = append(segments, segment{index: idx, isIdx: true})
			continue
		}
		if !validIdentifier(part) {
			return nil, fmt.Errorf("%w: segment %q in %q", ErrInvalidPath, part, expr)
		}
		segments = append(segments, segment{field: part})
	}

	return &Path{raw: expr, segments: segments}, nil
}

// Valid reports whether expr parses.
func Valid(expr string) bool {
	_, err := Parse(expr)
	return err == nil
}

// String returns the original expression.
func (p *Path) String() string {
	return p.raw
}

// Lookup walks value segment by segment. The second return is false when any
// intermediate value is absent or null; absence is not an error, so callers
// decide policy. The found value is rendered as a string.
func (p *Path) Lookup(value any) (string, bool) {
	current := value
	for _, seg := range p.segments {
		switch v := current.(type) {
		case map[string]any:
			if seg.isIdx {
				// Numeric segments also match map keys, matching how the
				// payloads of numeric-keyed providers are shaped.
				current = v[strconv.Itoa(seg.index)]
			} else {
				current = v[seg.field]
			}
		case []any:
			if !seg.isIdx || seg.index >= len(v) {
				return "", false
			}
			current = v[seg.index]
		default:
			return "", false
		}
		if current == nil {
			return "", false
		}
	}

	return render(current), true
}

// render formats a scalar leaf the way the payload spelled it.
func render(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func validIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
