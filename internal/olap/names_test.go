package olap

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want []NameSegment
	}{
		{"[Time].[1997].[Q1]", []NameSegment{Seg("Time"), Seg("1997"), Seg("Q1")}},
		{"Time.Weekly", []NameSegment{{Name: "Time", Quoting: Unquoted}, {Name: "Weekly", Quoting: Unquoted}}},
		{"[Time.Weekly].[1997]", []NameSegment{Seg("Time.Weekly"), Seg("1997")}},
		{"[Product].&[42]", []NameSegment{Seg("Product"), {Name: "42", Quoting: Key}}},
		{"[A]]B]", []NameSegment{Seg("A]B")}},
		{" [Store Type] . Supermarket ", []NameSegment{Seg("Store Type"), {Name: "Supermarket", Quoting: Unquoted}}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			id, err := ParseIdentifier(tt.in)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if diff := cmp.Diff(tt.want, id.Segments()); diff != "" {
				t.Fatalf("segments mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseIdentifierErrors(t *testing.T) {
	for _, in := range []string{"", "[Time", "[Time].", "[Time]x", "&Time", "[Time]..[1997]"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseIdentifier(in)
			if !errors.Is(err, ErrInvalidIdentifier) {
				t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
			}
		})
	}
}

func TestIdStringRoundTrip(t *testing.T) {
	in := "[Time].[Q1]]x].&[7].Month"
	id := MustParseIdentifier(in)
	if got := id.String(); got != in {
		t.Fatalf("String() = %q, want %q", got, in)
	}
}

func TestNameSegmentMatchingIgnoresCaseAndQuoting(t *testing.T) {
	a := NameSegment{Name: "FOOD", Quoting: Unquoted}
	b := Seg("food")
	if !a.Matches(b) {
		t.Fatalf("expected %v to match %v", a, b)
	}
	if !IdOf("Product", "Food").Equal(MustParseIdentifier("product.FOOD")) {
		t.Fatalf("expected case-insensitive Id equality")
	}
	if IdOf("Product", "Food").Key() != MustParseIdentifier("PRODUCT.food").Key() {
		t.Fatalf("expected equal keys")
	}
	// German sharp s folds to ss.
	if !Seg("Straße").Matches(Seg("STRASSE")) {
		t.Fatalf("expected unicode case folding")
	}
}

func TestIdPrefix(t *testing.T) {
	id := IdOf("Time", "1997", "Q1")
	if !id.HasPrefix(IdOf("time", "1997")) {
		t.Fatalf("expected prefix match")
	}
	if id.HasPrefix(IdOf("Time", "1998")) {
		t.Fatalf("unexpected prefix match")
	}
	if got := id.Prefix(2).String(); got != "[Time].[1997]" {
		t.Fatalf("Prefix(2) = %s", got)
	}
	p := id.Prefix(1)
	_ = append(p.segs, Seg("x"))
	if id.At(1).Name != "1997" {
		t.Fatalf("Prefix must not alias the original segments")
	}
}
