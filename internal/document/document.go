// Package document implements [host.Document] on a local JSON file.
//
// The file holds a style registry and a tree of frames, components and
// instances; only what swatches need is modeled. Mutations are buffered in
// memory and written by [Document.Commit], which replaces the file
// atomically while holding an advisory lock on a sibling ".lock" file.
package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"tools.zach/dev/swatchbook/internal/atomicfile"
	"tools.zach/dev/swatchbook/internal/color"
	"tools.zach/dev/swatchbook/internal/host"
	"tools.zach/dev/swatchbook/internal/logger"
	"tools.zach/dev/swatchbook/internal/migrate"
	"tools.zach/dev/swatchbook/internal/paths"
)

// styleNamespace seeds deterministic style IDs so the same style name maps
// to the same ID in every document and every run.
var styleNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("tools.zach/dev/swatchbook/style"))

var (
	// ErrLocked is returned by Commit when another process holds the lock.
	ErrLocked = errors.New("document is locked by another writer")
	// ErrFontUnavailable is returned by LoadFont for fonts outside the
	// configured set.
	ErrFontUnavailable = errors.New("font unavailable")
	// ErrFontNotLoaded is returned by SetText before LoadFont succeeded.
	ErrFontNotLoaded = errors.New("font not loaded")
	// ErrInvalidPaint is returned for colors with NaN or out-of-range channels.
	ErrInvalidPaint = errors.New("invalid paint")
	// ErrForeignNode is returned for nodes that do not belong to the document.
	ErrForeignNode = errors.New("node does not belong to this document")
)

// ///////////////////////////////////////////////
// File Model
// ///////////////////////////////////////////////

type file struct {
	Version int      `json:"version"`
	Styles  []*Style `json:"styles"`
	Nodes   []*node  `json:"nodes"`
}

// Style is a named paint style.
type Style struct {
	ID    host.StyleID `json:"id"`
	Name  string       `json:"name"`
	Paint Paint        `json:"paint"`
}

// Paint is a solid fill. Opacity is only present when the source color
// carried alpha.
type Paint struct {
	R       float64  `json:"r"`
	G       float64  `json:"g"`
	B       float64  `json:"b"`
	Opacity *float64 `json:"opacity,omitempty"`
}

// Color converts p back to a normalized color.
func (p Paint) Color() color.Color {
	if p.Opacity != nil {
		return color.RGBA(p.R, p.G, p.B, *p.Opacity)
	}
	return color.RGB(p.R, p.G, p.B)
}

func paintOf(c color.Color) (Paint, error) {
	if !c.Valid() {
		return Paint{}, fmt.Errorf("%w: %s", ErrInvalidPaint, describe(c))
	}
	p := Paint{R: c.R, G: c.G, B: c.B}
	if c.HasAlpha {
		a := c.A
		p.Opacity = &a
	}
	return p, nil
}

// describe formats c for error messages without tripping over NaN.
func describe(c color.Color) string {
	parts := []float64{c.R, c.G, c.B}
	if c.HasAlpha {
		parts = append(parts, c.A)
	}
	strs := make([]string, len(parts))
	for i, v := range parts {
		if math.IsNaN(v) {
			strs[i] = "NaN"
		} else {
			strs[i] = fmt.Sprintf("%.4g", v)
		}
	}
	return "(" + strings.Join(strs, ", ") + ")"
}

// node is the stored form of a document node and implements [host.Node].
type node struct {
	NodeID      string       `json:"id"`
	NodeName    string       `json:"name"`
	NodeKind    host.Kind    `json:"kind"`
	X           float64      `json:"x"`
	Y           float64      `json:"y"`
	Width       float64      `json:"width"`
	Height      float64      `json:"height"`
	Fill        host.StyleID `json:"fill,omitempty"`
	Text        string       `json:"text,omitempty"`
	Font        string       `json:"font,omitempty"`
	ComponentID string       `json:"component,omitempty"`
	Kids        []*node      `json:"children,omitempty"`
}

func (n *node) ID() string      { return n.NodeID }
func (n *node) Name() string    { return n.NodeName }
func (n *node) Kind() host.Kind { return n.NodeKind }

func (n *node) Children() []host.Node {
	out := make([]host.Node, len(n.Kids))
	for i, k := range n.Kids {
		out[i] = k
	}
	return out
}

// clone deep-copies n with fresh IDs.
func (n *node) clone() *node {
	c := *n
	c.NodeID = uuid.NewString()
	c.Kids = make([]*node, len(n.Kids))
	for i, k := range n.Kids {
		c.Kids[i] = k.clone()
	}
	return &c
}

// ///////////////////////////////////////////////
// Document
// ///////////////////////////////////////////////

// Document is a file-backed [host.Document]. It is safe for concurrent use.
type Document struct {
	path  string
	fonts map[string]bool

	mu     sync.Mutex
	data   file
	index  map[string]*node
	loaded map[string]bool
	dirty  bool
}

var _ host.Document = (*Document)(nil)

// Open reads the document at path, migrating older schema versions. A
// missing file opens an empty document. available lists the fonts LoadFont
// accepts.
func Open(path string, available []host.Font) (*Document, error) {
	d := &Document{
		path:   path,
		fonts:  make(map[string]bool, len(available)),
		loaded: make(map[string]bool),
	}
	for _, f := range available {
		d.fonts[strings.ToLower(f.String())] = true
	}

	if err := d.load(); err != nil {
		return nil, err
	}
	return d, nil
}

// load replaces the in-memory state with the file contents. Callers hold
// d.mu or own d exclusively.
func (d *Document) load() error {
	d.data = file{Version: migrate.Document.CurrentVersion}
	d.dirty = false
	raw, err := os.ReadFile(d.path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return fmt.Errorf("read document: %w", err)
	default:
		if err := d.decode(raw); err != nil {
			return fmt.Errorf("open %s: %w", d.path, err)
		}
	}
	d.reindex()
	return nil
}

func (d *Document) decode(raw []byte) error {
	var peek struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(raw, &peek); err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	if peek.Version == 0 {
		peek.Version = 1
	}
	if migrate.Document.NeedsMigration(peek.Version) {
		var err error
		if raw, _, err = migrate.Document.Run(raw, peek.Version); err != nil {
			return fmt.Errorf("migrate document: %w", err)
		}
		d.dirty = true
	}
	if err := json.Unmarshal(raw, &d.data); err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	d.data.Version = migrate.Document.CurrentVersion
	return nil
}

func (d *Document) reindex() {
	d.index = make(map[string]*node)
	for _, n := range d.data.Nodes {
		d.indexTree(n)
	}
}

func (d *Document) indexTree(n *node) {
	d.index[n.NodeID] = n
	for _, k := range n.Kids {
		d.indexTree(k)
	}
}

// own resolves a host.Node to this document's stored node.
func (d *Document) own(n host.Node) (*node, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: nil node", ErrForeignNode)
	}
	stored, ok := d.index[n.ID()]
	if !ok {
		return nil, fmt.Errorf("%w: %s %q", ErrForeignNode, n.Kind(), n.Name())
	}
	return stored, nil
}

// Path returns the file the document commits to.
func (d *Document) Path() string { return d.path }

// ///////////////////////////////////////////////
// Styles
// ///////////////////////////////////////////////

// FindOrCreateStyle implements [host.Document].
func (d *Document) FindOrCreateStyle(ctx context.Context, name string, c color.Color) (host.StyleID, error) {
	paint, err := paintOf(c)
	if err != nil {
		return "", fmt.Errorf("style %q: %w", name, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, s := range d.data.Styles {
		if s.Name == name {
			s.Paint = paint
			d.dirty = true
			logger.Trace(ctx, slog.Default(), "style updated", "style", name, "id", s.ID)
			return s.ID, nil
		}
	}
	s := &Style{
		ID:    host.StyleID(uuid.NewSHA1(styleNamespace, []byte(name)).String()),
		Name:  name,
		Paint: paint,
	}
	d.data.Styles = append(d.data.Styles, s)
	d.dirty = true
	logger.Trace(ctx, slog.Default(), "style created", "style", name, "id", s.ID)
	return s.ID, nil
}

// Style returns a copy of the style registered under name.
func (d *Document) Style(name string) (Style, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.data.Styles {
		if s.Name == name {
			return *s, true
		}
	}
	return Style{}, false
}

// Styles returns copies of every style in registration order.
func (d *Document) Styles() []Style {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Style, len(d.data.Styles))
	for i, s := range d.data.Styles {
		out[i] = *s
	}
	return out
}

func (d *Document) styleByID(id host.StyleID) *Style {
	for _, s := range d.data.Styles {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// ///////////////////////////////////////////////
// Nodes
// ///////////////////////////////////////////////

// Nodes returns the top-level nodes.
func (d *Document) Nodes() []host.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]host.Node, len(d.data.Nodes))
	for i, n := range d.data.Nodes {
		out[i] = n
	}
	return out
}

func (d *Document) topLevel(name string, kind host.Kind) *node {
	for _, n := range d.data.Nodes {
		if n.NodeName == name && n.NodeKind == kind {
			return n
		}
	}
	return nil
}

// FindComponent implements [host.Document].
func (d *Document) FindComponent(name string) (host.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n := d.topLevel(name, host.KindComponent); n != nil {
		return n, nil
	}
	return nil, fmt.Errorf("%w: no component named %q", host.ErrNotFound, name)
}

// CreateComponent implements [host.Document].
func (d *Document) CreateComponent(ctx context.Context, spec host.ComponentSpec) (host.Node, error) {
	if spec.Name == "" {
		return nil, errors.New("component name must not be empty")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	c := &node{
		NodeID:   uuid.NewString(),
		NodeName: spec.Name,
		NodeKind: host.KindComponent,
		Width:    spec.Size.Width,
		Height:   spec.Size.Height,
	}
	for _, cs := range spec.Children {
		c.Kids = append(c.Kids, &node{
			NodeID:   uuid.NewString(),
			NodeName: cs.Name,
			NodeKind: cs.Kind,
			X:        cs.X,
			Y:        cs.Y,
			Width:    cs.Size.Width,
			Height:   cs.Size.Height,
		})
	}
	d.data.Nodes = append(d.data.Nodes, c)
	d.indexTree(c)
	d.dirty = true
	logger.Trace(ctx, slog.Default(), "component created", "component", spec.Name, "children", len(spec.Children))
	return c, nil
}

// CreateFrame implements [host.Document].
func (d *Document) CreateFrame(ctx context.Context, name string) (host.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if f := d.topLevel(name, host.KindFrame); f != nil {
		f.Kids = nil
		d.reindex()
		d.dirty = true
		logger.Trace(ctx, slog.Default(), "frame cleared", "frame", name)
		return f, nil
	}
	f := &node{NodeID: uuid.NewString(), NodeName: name, NodeKind: host.KindFrame}
	d.data.Nodes = append(d.data.Nodes, f)
	d.indexTree(f)
	d.dirty = true
	logger.Trace(ctx, slog.Default(), "frame created", "frame", name)
	return f, nil
}

// Instantiate implements [host.Document].
func (d *Document) Instantiate(ctx context.Context, component, parent host.Node) (host.Node, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	comp, err := d.own(component)
	if err != nil {
		return nil, err
	}
	if comp.NodeKind != host.KindComponent {
		return nil, fmt.Errorf("instantiate %q: not a component", comp.NodeName)
	}
	dst, err := d.own(parent)
	if err != nil {
		return nil, err
	}

	inst := comp.clone()
	inst.NodeKind = host.KindInstance
	inst.ComponentID = comp.NodeID
	inst.X, inst.Y = 0, 0
	dst.Kids = append(dst.Kids, inst)
	d.indexTree(inst)
	d.growToFit(dst)
	d.dirty = true
	logger.Trace(ctx, slog.Default(), "instance created", "component", comp.NodeName, "parent", dst.NodeName)
	return inst, nil
}

// BindFill implements [host.Document].
func (d *Document) BindFill(ctx context.Context, n host.Node, style host.StyleID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	stored, err := d.own(n)
	if err != nil {
		return err
	}
	if d.styleByID(style) == nil {
		return fmt.Errorf("bind fill: unknown style %q", style)
	}
	stored.Fill = style
	d.dirty = true
	return nil
}

// LoadFont implements [host.Document].
func (d *Document) LoadFont(ctx context.Context, font host.Font) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := strings.ToLower(font.String())
	if !d.fonts[key] {
		return fmt.Errorf("%w: %s", ErrFontUnavailable, font)
	}
	d.mu.Lock()
	d.loaded[key] = true
	d.mu.Unlock()
	return nil
}

// SetText implements [host.Document].
func (d *Document) SetText(ctx context.Context, n host.Node, font host.Font, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	stored, err := d.own(n)
	if err != nil {
		return err
	}
	if stored.NodeKind != host.KindText {
		return fmt.Errorf("set text on %s %q: not a text node", stored.NodeKind, stored.NodeName)
	}
	if !d.loaded[strings.ToLower(font.String())] {
		return fmt.Errorf("%w: %s", ErrFontNotLoaded, font)
	}
	stored.Text = text
	stored.Font = font.String()
	d.dirty = true
	return nil
}

// Move implements [host.Document].
func (d *Document) Move(ctx context.Context, n host.Node, x, y float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	stored, err := d.own(n)
	if err != nil {
		return err
	}
	stored.X, stored.Y = x, y
	for _, parent := range d.index {
		for _, k := range parent.Kids {
			if k == stored {
				d.growToFit(parent)
			}
		}
	}
	d.dirty = true
	return nil
}

// Remove implements [host.Document].
func (d *Document) Remove(ctx context.Context, n host.Node) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	stored, err := d.own(n)
	if err != nil {
		return err
	}
	if !d.detach(stored) {
		return fmt.Errorf("remove %s %q: no parent", stored.NodeKind, stored.NodeName)
	}
	d.reindex()
	d.dirty = true
	logger.Trace(ctx, slog.Default(), "node removed", "node", stored.NodeName, "kind", stored.NodeKind)
	return nil
}

// detach unlinks n from the top level or from its parent.
func (d *Document) detach(n *node) bool {
	if i := slices.Index(d.data.Nodes, n); i >= 0 {
		d.data.Nodes = slices.Delete(d.data.Nodes, i, i+1)
		return true
	}
	for _, parent := range d.index {
		if i := slices.Index(parent.Kids, n); i >= 0 {
			parent.Kids = slices.Delete(parent.Kids, i, i+1)
			return true
		}
	}
	return false
}

// growToFit extends a frame so every child fits inside it.
func (d *Document) growToFit(n *node) {
	if n.NodeKind != host.KindFrame {
		return
	}
	for _, k := range n.Kids {
		n.Width = math.Max(n.Width, k.X+k.Width)
		n.Height = math.Max(n.Height, k.Y+k.Height)
	}
}

// ///////////////////////////////////////////////
// Persistence
// ///////////////////////////////////////////////

// Discard implements [host.Document] by reloading the committed file.
// Nodes handed out before the call no longer belong to the document.
func (d *Document) Discard() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.dirty {
		return nil
	}
	if err := d.load(); err != nil {
		return fmt.Errorf("discard changes: %w", err)
	}
	slog.Debug("document changes discarded", "path", d.path)
	return nil
}

// Commit implements [host.Document]. It is a no-op when nothing changed.
func (d *Document) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.dirty {
		return nil
	}

	lock, err := os.OpenFile(d.path+paths.LockSuffix, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	defer lock.Close()
	if err := lockFile(lock); err != nil {
		return fmt.Errorf("%w: %v", ErrLocked, err)
	}
	defer unlockFile(lock)

	err = atomicfile.WriteFunc(d.path, 0o644, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(&d.data)
	})
	if err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	d.dirty = false
	slog.Debug("document committed", "path", d.path, "styles", len(d.data.Styles), "nodes", len(d.index))
	return nil
}
