// Tests for [Kind] text round trips and the typed tree search helpers
// [FindAll], [FindOne] and [Walk].
package host

import (
	"errors"
	"strings"
	"testing"
)

type testNode struct {
	id, name string
	kind     Kind
	children []Node
}

func (n *testNode) ID() string       { return n.id }
func (n *testNode) Name() string     { return n.name }
func (n *testNode) Kind() Kind       { return n.kind }
func (n *testNode) Children() []Node { return n.children }

func node(id, name string, kind Kind, children ...Node) *testNode {
	return &testNode{id: id, name: name, kind: kind, children: children}
}

// swatchTree mirrors the template contract: one "Color" rectangle and one
// "Name" text, with a nested group and a decoy text named "Color".
func swatchTree() Node {
	return node("c1", "Swatch", KindComponent,
		node("r1", "Color", KindRectangle),
		node("f1", "Label", KindFrame,
			node("t1", "Name", KindText),
			node("t2", "Color", KindText),
		),
	)
}

// ///////////////////////////////////////////////
// Kind
// ///////////////////////////////////////////////

func TestKindText(t *testing.T) {
	for k := range kindNames {
		b, err := k.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d): %v", k, err)
		}
		var got Kind
		if err := got.UnmarshalText(b); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", b, err)
		}
		if got != k {
			t.Errorf("round trip %v -> %q -> %v", k, b, got)
		}
	}
	if _, err := Kind(99).MarshalText(); err == nil {
		t.Error("expected error for unknown kind")
	}
	var k Kind
	if err := k.UnmarshalText([]byte("ellipse")); err == nil {
		t.Error("expected error for unknown kind name")
	}
	if Kind(99).String() != "kind(99)" {
		t.Errorf("String() = %q", Kind(99).String())
	}
}

// ///////////////////////////////////////////////
// Search
// ///////////////////////////////////////////////

func TestFindAll(t *testing.T) {
	root := swatchTree()
	if got := FindAll(root, "Color"); len(got) != 2 {
		t.Errorf("FindAll(any kind) = %d nodes, want 2", len(got))
	}
	got := FindAll(root, "Color", KindRectangle)
	if len(got) != 1 || got[0].ID() != "r1" {
		t.Errorf("FindAll(rectangle) = %v", got)
	}
	if got := FindAll(root, "Swatch"); len(got) != 0 {
		t.Error("FindAll should not match the root itself")
	}
}

func TestFindOne(t *testing.T) {
	root := swatchTree()

	n, err := FindOne(root, "Name", KindText)
	if err != nil {
		t.Fatalf("FindOne(Name): %v", err)
	}
	if n.ID() != "t1" {
		t.Errorf("ID = %q, want t1", n.ID())
	}

	_, err = FindOne(root, "Colour", KindRectangle)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), `did you mean "Color"`) {
		t.Errorf("expected suggestion in %q", err)
	}

	_, err = FindOne(root, "Background", KindRectangle)
	if !errors.Is(err, ErrNotFound) || strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error = %v, want plain ErrNotFound", err)
	}

	dup := node("c2", "Swatch", KindComponent,
		node("r1", "Color", KindRectangle),
		node("r2", "Color", KindRectangle),
	)
	if _, err := FindOne(dup, "Color", KindRectangle); !errors.Is(err, ErrAmbiguous) {
		t.Errorf("error = %v, want ErrAmbiguous", err)
	}
}

func TestWalkStopsEarly(t *testing.T) {
	var visited []string
	Walk(swatchTree(), func(n Node) bool {
		visited = append(visited, n.ID())
		return n.ID() != "f1"
	})
	if strings.Join(visited, ",") != "c1,r1,f1" {
		t.Errorf("visited = %v", visited)
	}
}

func TestFontString(t *testing.T) {
	if got := (Font{Family: "Inter", Style: "Bold"}).String(); got != "Inter Bold" {
		t.Errorf("String() = %q", got)
	}
}

func TestParseFont(t *testing.T) {
	tests := []struct {
		in   string
		want Font
	}{
		{"Inter Regular", Font{Family: "Inter", Style: "Regular"}},
		{"Source Sans Pro Bold", Font{Family: "Source Sans Pro", Style: "Bold"}},
		{"Roboto", Font{Family: "Roboto", Style: "Regular"}},
		{"  Inter Bold ", Font{Family: "Inter", Style: "Bold"}},
	}
	for _, tt := range tests {
		if got := ParseFont(tt.in); got != tt.want {
			t.Errorf("ParseFont(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
