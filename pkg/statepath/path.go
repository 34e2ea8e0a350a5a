// Package statepath parses game-state addresses such as
// "gameState.背包[2].数量" into ordered field/index steps.
//
// Parsing is purely syntactic. Whether a step exists in a given tree, or has
// the right container kind, is decided by whoever walks the path.
package statepath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// ErrMalformedAddress is returned for any address that cannot be parsed.
var ErrMalformedAddress = errors.New("malformed address")

// SyntaxError describes where and why an address failed to parse.
type SyntaxError struct {
	Address string
	Offset  int
	Reason  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("malformed address %q at offset %d: %s", e.Address, e.Offset, e.Reason)
}

func (e *SyntaxError) Unwrap() error {
	return ErrMalformedAddress
}

// StepKind distinguishes record fields from list elements.
type StepKind int

const (
	FieldStep StepKind = iota
	IndexStep
)

// Step is one hop of a path.
type Step struct {
	Kind  StepKind
	Field string
	Index int
}

// Field returns a named-field step.
func Field(name string) Step {
	return Step{Kind: FieldStep, Field: name}
}

// Index returns a list-element step.
func Index(i int) Step {
	return Step{Kind: IndexStep, Index: i}
}

func (s Step) IsIndex() bool {
	return s.Kind == IndexStep
}

func (s Step) String() string {
	if s.IsIndex() {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Field
}

// Path is an absolute address into the game state, rooted at the top-level record.
type Path []Step

// String serializes the path back into canonical address form.
func (p Path) String() string {
	var b strings.Builder
	for i, s := range p {
		if s.IsIndex() {
			b.WriteString(s.String())
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(s.Field)
	}
	return b.String()
}

// Parent returns every step but the last.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1]
}

// Last returns the final step. The path must not be empty.
func (p Path) Last() Step {
	return p[len(p)-1]
}

// TrimRoot drops a leading field step named root, if present.
// Narration commands address everything as "gameState.…".
func (p Path) TrimRoot(root string) Path {
	if len(p) > 1 && !p[0].IsIndex() && p[0].Field == root {
		return p[1:]
	}
	return p
}

// Append returns a new path with the extra steps added.
func (p Path) Append(steps ...Step) Path {
	out := make(Path, 0, len(p)+len(steps))
	out = append(out, p...)
	return append(out, steps...)
}

func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// MustParse is Parse for addresses known at compile time.
func MustParse(address string) Path {
	p, err := Parse(address)
	if err != nil {
		panic(err)
	}
	return p
}

// Parse resolves an address string into its steps.
//
// Grammar: root ( "." field | "[" digits "]" )*. Whitespace around tokens is
// ignored, full-width punctuation and digits are folded to ASCII, and field
// names are NFC-normalized, so differently formatted spellings of the same
// address produce equal paths.
func Parse(address string) (Path, error) {
	s := normalize(address)
	if s == "" {
		return nil, &SyntaxError{Address: address, Reason: "empty address"}
	}

	fail := func(offset int, reason string) (Path, error) {
		return nil, &SyntaxError{Address: address, Offset: offset, Reason: reason}
	}

	var p Path
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '.':
			if len(p) == 0 {
				return fail(i, "leading dot")
			}
			name, n := readField(s[i+1:])
			if name == "" {
				return fail(i, "empty field name")
			}
			p = append(p, Field(name))
			i += 1 + n

		case c == '[':
			if len(p) == 0 {
				return fail(i, "address must start with a field name")
			}
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return fail(i, "unterminated bracket")
			}
			raw := strings.TrimSpace(s[i+1 : i+end])
			idx, ok := parseIndex(raw)
			if !ok {
				return fail(i, fmt.Sprintf("invalid index %q", raw))
			}
			p = append(p, Index(idx))
			i += end + 1

		case c == ']':
			return fail(i, "unexpected ']'")

		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		default:
			if len(p) != 0 {
				return fail(i, "expected '.' or '['")
			}
			name, n := readField(s)
			if name == "" {
				return fail(i, "empty field name")
			}
			p = append(p, Field(name))
			i += n
		}
	}
	return p, nil
}

// readField consumes a field name up to the next delimiter and returns it
// with surrounding whitespace removed, plus the number of bytes consumed.
func readField(s string) (string, int) {
	n := strings.IndexAny(s, ".[]")
	if n < 0 {
		n = len(s)
	}
	return strings.TrimFunc(s[:n], unicode.IsSpace), n
}

func parseIndex(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	idx, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return idx, true
}

func normalize(address string) string {
	s := width.Fold.String(address)
	s = norm.NFC.String(s)
	return strings.TrimFunc(s, unicode.IsSpace)
}
