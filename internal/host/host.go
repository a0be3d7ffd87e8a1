// Package host defines the document API that swatches are written through.
//
// The orchestration code in internal/swatch only talks to a [Document]; the
// file-backed implementation lives in internal/document. Node lookups go
// through the typed search helpers in this package rather than comparing
// kind strings at call sites.
package host

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tools.zach/dev/swatchbook/internal/color"
)

// ///////////////////////////////////////////////
// Kinds
// ///////////////////////////////////////////////

// Kind classifies a document node.
type Kind int

const (
	KindFrame Kind = iota + 1
	KindRectangle
	KindText
	KindComponent
	KindInstance
)

var kindNames = map[Kind]string{
	KindFrame:     "frame",
	KindRectangle: "rectangle",
	KindText:      "text",
	KindComponent: "component",
	KindInstance:  "instance",
}

// String returns the lowercase kind name.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind is the inverse of [Kind.String].
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown node kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("unknown node kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ///////////////////////////////////////////////
// Nodes, Styles and Fonts
// ///////////////////////////////////////////////

// Node is a read-only view of a document node.
type Node interface {
	ID() string
	Name() string
	Kind() Kind
	Children() []Node
}

// StyleID is an opaque style identifier issued by a [Document].
type StyleID string

// Font names a loadable font.
type Font struct {
	Family string
	Style  string
}

// String returns "Family Style".
func (f Font) String() string {
	return f.Family + " " + f.Style
}

// ParseFont splits "Family Style" at the last space, so multi-word families
// keep their spaces. A string without a space is a family with style
// "Regular".
func ParseFont(s string) Font {
	s = strings.TrimSpace(s)
	i := strings.LastIndexByte(s, ' ')
	if i < 0 {
		return Font{Family: s, Style: "Regular"}
	}
	return Font{Family: strings.TrimSpace(s[:i]), Style: s[i+1:]}
}

// Size is a node size in document units.
type Size struct {
	Width, Height float64
}

// ComponentSpec describes a component to create. Children are created in
// order inside it.
type ComponentSpec struct {
	Name     string
	Size     Size
	Children []ChildSpec
}

// ChildSpec describes a node created inside a component.
type ChildSpec struct {
	Name string
	Kind Kind
	X, Y float64
	Size Size
}

// ///////////////////////////////////////////////
// Document
// ///////////////////////////////////////////////

// Document is the host-owned API that materializes swatches. Mutations are
// buffered until Commit.
type Document interface {
	// FindOrCreateStyle returns the style registered under the exact name,
	// creating it when absent, and sets its paint to c. Repeat calls with
	// the same name return the same ID.
	FindOrCreateStyle(ctx context.Context, name string, c color.Color) (StyleID, error)
	// FindComponent returns the top-level component with the given name.
	FindComponent(name string) (Node, error)
	// CreateComponent creates a top-level component from spec.
	CreateComponent(ctx context.Context, spec ComponentSpec) (Node, error)
	// CreateFrame returns the top-level frame with the given name, creating
	// it when absent. Existing children are removed.
	CreateFrame(ctx context.Context, name string) (Node, error)
	// Instantiate places a copy of component inside parent.
	Instantiate(ctx context.Context, component, parent Node) (Node, error)
	// BindFill binds a style to the fill of a node.
	BindFill(ctx context.Context, node Node, style StyleID) error
	// LoadFont makes a font available to SetText.
	LoadFont(ctx context.Context, font Font) error
	// SetText writes literal text into a text node using a loaded font.
	SetText(ctx context.Context, node Node, font Font, text string) error
	// Move positions a node relative to its parent.
	Move(ctx context.Context, node Node, x, y float64) error
	// Remove deletes a node and its subtree from the document.
	Remove(ctx context.Context, node Node) error
	// Commit persists buffered mutations.
	Commit(ctx context.Context) error
	// Discard drops buffered mutations, restoring the last committed state.
	Discard() error
}

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("node not found")

// ErrAmbiguous is returned when a lookup that requires one match finds several.
var ErrAmbiguous = errors.New("ambiguous node lookup")
