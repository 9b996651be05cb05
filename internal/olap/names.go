package olap

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Quoting records how a NameSegment was written in source.
type Quoting int

const (
	// Unquoted is a bare identifier such as Time.
	Unquoted Quoting = iota
	// Quoted is a bracketed identifier such as [Time].
	Quoted
	// Key is an ampersand key reference such as &[1997].
	Key
)

func (q Quoting) String() string {
	switch q {
	case Unquoted:
		return "unquoted"
	case Quoted:
		return "quoted"
	case Key:
		return "key"
	default:
		return fmt.Sprintf("Quoting(%d)", int(q))
	}
}

// NameSegment is one component of an identifier.
// Equality is case-insensitive and ignores Quoting.
type NameSegment struct {
	Name    string
	Quoting Quoting
}

// Seg returns a quoted segment.
func Seg(name string) NameSegment { return NameSegment{Name: name, Quoting: Quoted} }

// FoldName returns the case-folded form of s used for every name comparison.
func FoldName(s string) string {
	// A Caser keeps internal state, so a fresh one is used per call.
	return cases.Fold().String(s)
}

// Key returns the folded name. Two segments match iff their keys are equal.
func (s NameSegment) Key() string { return FoldName(s.Name) }

// Matches reports whether s and o name the same element.
func (s NameSegment) Matches(o NameSegment) bool { return s.Key() == o.Key() }

func (s NameSegment) String() string {
	switch s.Quoting {
	case Unquoted:
		return s.Name
	case Key:
		return "&" + Quote(s.Name)
	default:
		return Quote(s.Name)
	}
}

// Quote brackets name, doubling any closing bracket.
func Quote(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// Id is an immutable, non-empty path of name segments.
type Id struct {
	segs []NameSegment
}

// NewId returns an Id over a copy of segs. It panics when segs is empty.
func NewId(segs ...NameSegment) Id {
	if len(segs) == 0 {
		panic("olap: empty identifier")
	}
	cp := make([]NameSegment, len(segs))
	copy(cp, segs)
	return Id{segs: cp}
}

// IdOf builds an Id of quoted segments.
func IdOf(names ...string) Id {
	segs := make([]NameSegment, len(names))
	for i, n := range names {
		segs[i] = Seg(n)
	}
	return NewId(segs...)
}

// MustParseIdentifier is like ParseIdentifier but panics on error.
func MustParseIdentifier(s string) Id {
	id, err := ParseIdentifier(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (id Id) Len() int                { return len(id.segs) }
func (id Id) At(i int) NameSegment    { return id.segs[i] }
func (id Id) Last() NameSegment       { return id.segs[len(id.segs)-1] }
func (id Id) IsZero() bool            { return len(id.segs) == 0 }
func (id Id) Segments() []NameSegment { return append([]NameSegment(nil), id.segs...) }

// Prefix returns the first n segments. n must be between 1 and Len.
func (id Id) Prefix(n int) Id { return Id{segs: id.segs[:n:n]} }

// Suffix returns the segments from index i on.
func (id Id) Suffix(i int) []NameSegment { return append([]NameSegment(nil), id.segs[i:]...) }

func (id Id) String() string {
	parts := make([]string, len(id.segs))
	for i, s := range id.segs {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// Key returns a folded representation usable as a map key.
func (id Id) Key() string {
	parts := make([]string, len(id.segs))
	for i, s := range id.segs {
		parts[i] = Quote(s.Key())
	}
	return strings.Join(parts, ".")
}

// Equal reports segment-wise case-insensitive equality.
func (id Id) Equal(o Id) bool {
	if len(id.segs) != len(o.segs) {
		return false
	}
	for i := range id.segs {
		if !id.segs[i].Matches(o.segs[i]) {
			return false
		}
	}
	return true
}

// HasPrefix reports whether p is a leading part of id (or equal to it).
func (id Id) HasPrefix(p Id) bool {
	if len(p.segs) > len(id.segs) {
		return false
	}
	for i := range p.segs {
		if !id.segs[i].Matches(p.segs[i]) {
			return false
		}
	}
	return true
}

// ParseIdentifier splits compound identifier text such as
// [Time].[1997].Q1 or [Product].&[42] into segments.
func ParseIdentifier(s string) (Id, error) {
	var segs []NameSegment
	i := 0
	n := len(s)
	for {
		for i < n && s[i] == ' ' {
			i++
		}
		if i >= n {
			return Id{}, fmt.Errorf("%w: %q: expected segment at offset %d", ErrInvalidIdentifier, s, i)
		}
		var seg NameSegment
		switch {
		case s[i] == '&':
			if i+1 >= n || s[i+1] != '[' {
				return Id{}, fmt.Errorf("%w: %q: key must be bracketed at offset %d", ErrInvalidIdentifier, s, i)
			}
			name, next, err := readBracketed(s, i+1)
			if err != nil {
				return Id{}, err
			}
			seg, i = NameSegment{Name: name, Quoting: Key}, next
		case s[i] == '[':
			name, next, err := readBracketed(s, i)
			if err != nil {
				return Id{}, err
			}
			seg, i = NameSegment{Name: name, Quoting: Quoted}, next
		default:
			start := i
			for i < n && s[i] != '.' && s[i] != '[' && s[i] != ']' {
				i++
			}
			name := strings.TrimSpace(s[start:i])
			if name == "" {
				return Id{}, fmt.Errorf("%w: %q: empty segment at offset %d", ErrInvalidIdentifier, s, start)
			}
			seg = NameSegment{Name: name, Quoting: Unquoted}
		}
		segs = append(segs, seg)
		for i < n && s[i] == ' ' {
			i++
		}
		if i >= n {
			return Id{segs: segs}, nil
		}
		if s[i] != '.' {
			return Id{}, fmt.Errorf("%w: %q: unexpected %q at offset %d", ErrInvalidIdentifier, s, s[i], i)
		}
		i++
	}
}

// readBracketed reads a [..] segment starting at s[i] == '['.
func readBracketed(s string, i int) (string, int, error) {
	var b strings.Builder
	j := i + 1
	for j < len(s) {
		if s[j] == ']' {
			if j+1 < len(s) && s[j+1] == ']' {
				b.WriteByte(']')
				j += 2
				continue
			}
			return b.String(), j + 1, nil
		}
		b.WriteByte(s[j])
		j++
	}
	return "", 0, fmt.Errorf("%w: %q: unterminated bracket at offset %d", ErrInvalidIdentifier, s, i)
}
