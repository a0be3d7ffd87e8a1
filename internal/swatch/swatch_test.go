package swatch

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"tools.zach/dev/swatchbook/internal/color"
	"tools.zach/dev/swatchbook/internal/document"
	"tools.zach/dev/swatchbook/internal/host"
	"tools.zach/dev/swatchbook/internal/palette"
)

var inter = host.Font{Family: "Inter", Style: "Regular"}

func newBuilder(t *testing.T) (*Builder, *document.Document) {
	t.Helper()
	doc, err := document.Open(filepath.Join(t.TempDir(), "document.json"), []host.Font{inter})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return &Builder{
		Doc:          doc,
		Template:     "Swatch",
		TemplateSize: host.Size{Width: 120, Height: 160},
		Font:         inter,
		Layout:       Layout{Columns: 2, Gap: 10},
	}, doc
}

func samplePalette() *palette.Input {
	return &palette.Input{
		Name: "Brand",
		Colors: []palette.Entry{
			{Name: "Primary", Value: "#FF0000"},
			{Name: "Accent", Value: "rgba(0, 0, 255, 0.5)"},
			{Name: "Ink", Value: "rgb(10,20,30)"},
		},
	}
}

// ///////////////////////////////////////////////
// Component
// ///////////////////////////////////////////////

func TestCreateComponent(t *testing.T) {
	ctx := context.Background()
	b, doc := newBuilder(t)

	comp, err := b.CreateComponent(ctx)
	if err != nil {
		t.Fatalf("CreateComponent: %v", err)
	}
	if err := CheckTemplate(comp); err != nil {
		t.Errorf("created template fails contract: %v", err)
	}

	again, err := b.CreateComponent(ctx)
	if err != nil {
		t.Fatalf("second CreateComponent: %v", err)
	}
	if again.ID() != comp.ID() {
		t.Errorf("second call created a new component")
	}
	if n := len(doc.Nodes()); n != 1 {
		t.Errorf("top-level nodes = %d, want 1", n)
	}
}

func TestCheckTemplateRejectsBrokenContract(t *testing.T) {
	ctx := context.Background()
	b, doc := newBuilder(t)

	_, err := doc.CreateComponent(ctx, host.ComponentSpec{
		Name: "Swatch",
		Children: []host.ChildSpec{
			{Name: "Colour", Kind: host.KindRectangle},
			{Name: "Name", Kind: host.KindText},
		},
	})
	if err != nil {
		t.Fatalf("CreateComponent: %v", err)
	}
	if _, err := b.CreatePalette(ctx, samplePalette()); !errors.Is(err, ErrTemplate) {
		t.Errorf("err = %v, want ErrTemplate", err)
	}
	if _, ok := doc.Style("Brand/Primary"); ok {
		t.Error("style created despite broken template")
	}
}

// ///////////////////////////////////////////////
// Palette
// ///////////////////////////////////////////////

func TestCreatePalette(t *testing.T) {
	ctx := context.Background()
	b, doc := newBuilder(t)

	report, err := b.CreatePalette(ctx, samplePalette())
	if err != nil {
		t.Fatalf("CreatePalette: %v", err)
	}
	if len(report.Created) != 3 || len(report.Failed) != 0 {
		t.Fatalf("created %d failed %d, want 3 and 0", len(report.Created), len(report.Failed))
	}
	if report.Err() != nil {
		t.Errorf("Report.Err = %v, want nil", report.Err())
	}

	for _, name := range []string{"Brand/Primary", "Brand/Accent", "Brand/Ink"} {
		if _, ok := doc.Style(name); !ok {
			t.Errorf("style %q missing", name)
		}
	}
	accent, _ := doc.Style("Brand/Accent")
	if accent.Paint.Opacity == nil || *accent.Paint.Opacity != 0.5 {
		t.Errorf("accent opacity = %v, want 0.5", accent.Paint.Opacity)
	}

	frame, err := host.FindOne(rootOf(doc), "Brand", host.KindFrame)
	if err != nil {
		t.Fatalf("palette frame: %v", err)
	}
	insts := frame.Children()
	if len(insts) != 3 {
		t.Fatalf("instances = %d, want 3", len(insts))
	}
	for i, inst := range insts {
		if inst.Kind() != host.KindInstance {
			t.Errorf("child %d kind = %v", i, inst.Kind())
		}
		if err := CheckTemplate(inst); err != nil {
			t.Errorf("instance %d: %v", i, err)
		}
	}
}

func TestCreatePaletteReapplyUpdates(t *testing.T) {
	ctx := context.Background()
	b, doc := newBuilder(t)

	if _, err := b.CreatePalette(ctx, samplePalette()); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	first, _ := doc.Style("Brand/Primary")

	in := samplePalette()
	in.Colors = in.Colors[:1]
	in.Colors[0].Value = "#00FF00"
	if _, err := b.CreatePalette(ctx, in); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	second, _ := doc.Style("Brand/Primary")
	if second.ID != first.ID {
		t.Errorf("style ID changed on reapply: %q -> %q", first.ID, second.ID)
	}
	if second.Paint.G != 1 || second.Paint.R != 0 {
		t.Errorf("paint not updated: %+v", second.Paint)
	}
	frame, _ := host.FindOne(rootOf(doc), "Brand", host.KindFrame)
	if n := len(frame.Children()); n != 1 {
		t.Errorf("instances after reapply = %d, want 1", n)
	}
}

func TestCreatePaletteLaxFallback(t *testing.T) {
	ctx := context.Background()
	b, doc := newBuilder(t)

	in := &palette.Input{Name: "P", Colors: []palette.Entry{{Name: "Bad", Value: "chartreuse"}}}
	report, err := b.CreatePalette(ctx, in)
	if err != nil {
		t.Fatalf("CreatePalette: %v", err)
	}
	if len(report.Created) != 1 {
		t.Fatalf("created = %d, want 1", len(report.Created))
	}
	if report.Created[0].Color != color.Transparent {
		t.Errorf("color = %+v, want Transparent", report.Created[0].Color)
	}
	if _, ok := doc.Style("P/Bad"); !ok {
		t.Error("fallback style not written")
	}
}

func TestCreatePaletteStrictAndInvalidContinue(t *testing.T) {
	ctx := context.Background()
	b, doc := newBuilder(t)
	b.Strict = true

	in := &palette.Input{
		Name: "P",
		Colors: []palette.Entry{
			{Name: "One", Value: "#111111"},
			{Name: "Named", Value: "chartreuse"},
			{Name: "Broken", Value: "#GG0000"},
			{Name: "Two", Value: "#222222"},
		},
	}
	report, err := b.CreatePalette(ctx, in)
	if err != nil {
		t.Fatalf("CreatePalette: %v", err)
	}
	if len(report.Created) != 2 || len(report.Failed) != 2 {
		t.Fatalf("created %d failed %d, want 2 and 2", len(report.Created), len(report.Failed))
	}
	if !errors.Is(report.Failed[0].Err, color.ErrUnrecognized) {
		t.Errorf("Named err = %v", report.Failed[0].Err)
	}
	if !errors.Is(report.Failed[1].Err, color.ErrMalformed) {
		t.Errorf("Broken err = %v", report.Failed[1].Err)
	}
	if !errors.Is(report.Err(), color.ErrMalformed) {
		t.Errorf("Report.Err = %v, want wrapped ErrMalformed", report.Err())
	}
	if _, ok := doc.Style("P/Two"); !ok {
		t.Error("entry after failures not processed")
	}
}

func TestCreatePaletteNaNRejectedByDocument(t *testing.T) {
	ctx := context.Background()
	b, _ := newBuilder(t)

	in := &palette.Input{Name: "P", Colors: []palette.Entry{{Name: "Broken", Value: "#GG0000"}, {Name: "Ok", Value: "#000"}}}
	report, err := b.CreatePalette(ctx, in)
	if err != nil {
		t.Fatalf("CreatePalette: %v", err)
	}
	if len(report.Failed) != 1 || !errors.Is(report.Failed[0].Err, document.ErrInvalidPaint) {
		t.Fatalf("failed = %+v, want one ErrInvalidPaint", report.Failed)
	}
	if len(report.Created) != 1 {
		t.Errorf("created = %d, want 1", len(report.Created))
	}
}

func TestCreatePaletteFontUnavailable(t *testing.T) {
	ctx := context.Background()
	b, doc := newBuilder(t)
	b.Font = host.Font{Family: "Missing", Style: "Regular"}

	report, err := b.CreatePalette(ctx, samplePalette())
	if err != nil {
		t.Fatalf("CreatePalette: %v", err)
	}
	if len(report.Failed) != 3 {
		t.Fatalf("failed = %d, want 3", len(report.Failed))
	}
	if !errors.Is(report.Failed[0].Err, document.ErrFontUnavailable) {
		t.Errorf("err = %v, want ErrFontUnavailable", report.Failed[0].Err)
	}
	if n := len(frameKids(t, doc, "Brand")); n != 0 {
		t.Errorf("frame instances = %d, want 0", n)
	}
}

func TestCreatePaletteRemovesPartialInstances(t *testing.T) {
	ctx := context.Background()
	b, doc := newBuilder(t)
	b.Doc = &failingMove{Document: doc, fail: 2}

	report, err := b.CreatePalette(ctx, samplePalette())
	if err != nil {
		t.Fatalf("CreatePalette: %v", err)
	}
	if len(report.Created) != 2 || len(report.Failed) != 1 {
		t.Fatalf("created %d failed %d, want 2 and 1", len(report.Created), len(report.Failed))
	}
	if report.Failed[0].Style != "Brand/Accent" {
		t.Errorf("failed style = %q, want Brand/Accent", report.Failed[0].Style)
	}

	kids := frameKids(t, doc, "Brand")
	if len(kids) != len(report.Created) {
		t.Fatalf("frame instances = %d, want %d", len(kids), len(report.Created))
	}
	for i, want := range []string{"Brand/Primary", "Brand/Ink"} {
		label, err := host.FindOne(kids[i], NameNode, host.KindText)
		if err != nil {
			t.Fatalf("instance %d: %v", i, err)
		}
		if got := labelText(t, label); got != want {
			t.Errorf("instance %d label = %q, want %q", i, got, want)
		}
	}
}

func TestCreatePaletteRemovesInstanceAfterPanic(t *testing.T) {
	ctx := context.Background()
	b, doc := newBuilder(t)
	b.Doc = &panicky{Document: doc, text: "Brand/Ink"}

	report, err := b.CreatePalette(ctx, samplePalette())
	if err != nil {
		t.Fatalf("CreatePalette: %v", err)
	}
	if len(report.Failed) != 1 || report.Failed[0].Style != "Brand/Ink" {
		t.Fatalf("failed = %+v, want Brand/Ink", report.Failed)
	}
	if n := len(frameKids(t, doc, "Brand")); n != len(report.Created) {
		t.Errorf("frame instances = %d, want %d", n, len(report.Created))
	}
}

func TestCreatePaletteRecoversPanics(t *testing.T) {
	ctx := context.Background()
	b, doc := newBuilder(t)
	b.Doc = &panicky{Document: doc, style: "Brand/Accent"}

	report, err := b.CreatePalette(ctx, samplePalette())
	if err != nil {
		t.Fatalf("CreatePalette: %v", err)
	}
	if len(report.Created) != 2 || len(report.Failed) != 1 {
		t.Fatalf("created %d failed %d, want 2 and 1", len(report.Created), len(report.Failed))
	}
	if report.Failed[0].Style != "Brand/Accent" {
		t.Errorf("failed style = %q", report.Failed[0].Style)
	}
}

func TestCreatePaletteInvalidInput(t *testing.T) {
	b, _ := newBuilder(t)
	if _, err := b.CreatePalette(context.Background(), &palette.Input{}); !errors.Is(err, palette.ErrInvalid) {
		t.Errorf("err = %v, want palette.ErrInvalid", err)
	}
}

func TestCreatePaletteCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b, _ := newBuilder(t)
	if _, err := b.CreatePalette(ctx, samplePalette()); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestCreatePaletteCanceledMidBatchRollsBack(t *testing.T) {
	b, doc := newBuilder(t)
	if _, err := b.CreatePalette(context.Background(), samplePalette()); err != nil {
		t.Fatalf("first CreatePalette: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Doc = &cancelOnMove{Document: doc, cancel: cancel}
	smaller := &palette.Input{Name: "Brand", Colors: []palette.Entry{
		{Name: "Primary", Value: "#00FF00"},
		{Name: "Extra", Value: "#0000FF"},
	}}
	if _, err := b.CreatePalette(ctx, smaller); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	// The in-memory document matches the committed one again, so a later
	// commit cannot persist the partial batch.
	if n := len(frameKids(t, doc, "Brand")); n != 3 {
		t.Errorf("frame instances = %d, want 3", n)
	}
	if _, ok := doc.Style("Brand/Extra"); ok {
		t.Error("style from the canceled batch survived")
	}
	if s, ok := doc.Style("Brand/Primary"); !ok || s.Paint.Color() != color.RGB(1, 0, 0) {
		t.Errorf("Primary = %+v, want the committed red", s)
	}
	if err := doc.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	re, err := document.Open(doc.Path(), []host.Font{inter})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if n := len(frameKids(t, re, "Brand")); n != 3 {
		t.Errorf("committed frame instances = %d, want 3", n)
	}
}

// ///////////////////////////////////////////////
// Layout
// ///////////////////////////////////////////////

func TestLayoutPosition(t *testing.T) {
	l := Layout{Columns: 3, Gap: 10}
	size := host.Size{Width: 100, Height: 50}
	tests := []struct {
		i    int
		x, y float64
	}{
		{0, 0, 0},
		{1, 110, 0},
		{2, 220, 0},
		{3, 0, 60},
		{7, 110, 120},
	}
	for _, tt := range tests {
		x, y := l.Position(tt.i, size)
		if x != tt.x || y != tt.y {
			t.Errorf("Position(%d) = (%v, %v), want (%v, %v)", tt.i, x, y, tt.x, tt.y)
		}
	}
	if x, y := (Layout{}).Position(2, size); x != 0 || y != 100 {
		t.Errorf("zero columns Position(2) = (%v, %v), want single column", x, y)
	}
}

// ///////////////////////////////////////////////
// Helpers
// ///////////////////////////////////////////////

// rootNode adapts the document's top-level nodes into a searchable tree.
type rootNode struct{ kids []host.Node }

func (r rootNode) ID() string              { return "" }
func (r rootNode) Name() string            { return "" }
func (r rootNode) Kind() host.Kind         { return host.KindFrame }
func (r rootNode) Children() []host.Node   { return r.kids }
func rootOf(d *document.Document) host.Node { return rootNode{kids: d.Nodes()} }

func frameKids(t *testing.T, d *document.Document, name string) []host.Node {
	t.Helper()
	frame, err := host.FindOne(rootOf(d), name, host.KindFrame)
	if err != nil {
		t.Fatalf("frame %q: %v", name, err)
	}
	return frame.Children()
}

// labelText reads the text of a label node from its on-disk form.
func labelText(t *testing.T, n host.Node) string {
	t.Helper()
	data, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal label: %v", err)
	}
	var v struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("unmarshal label: %v", err)
	}
	return v.Text
}

// panicky panics when a specific style is created or a specific label is
// written.
type panicky struct {
	*document.Document
	style string
	text  string
}

func (p *panicky) FindOrCreateStyle(ctx context.Context, name string, c color.Color) (host.StyleID, error) {
	if p.style != "" && name == p.style {
		panic("host rejected style")
	}
	return p.Document.FindOrCreateStyle(ctx, name, c)
}

func (p *panicky) SetText(ctx context.Context, n host.Node, font host.Font, text string) error {
	if p.text != "" && text == p.text {
		panic("host rejected text")
	}
	return p.Document.SetText(ctx, n, font, text)
}

// failingMove fails the fail-th call to Move.
type failingMove struct {
	*document.Document
	fail, calls int
}

var errMoveRejected = errors.New("move rejected")

func (f *failingMove) Move(ctx context.Context, n host.Node, x, y float64) error {
	f.calls++
	if f.calls == f.fail {
		return errMoveRejected
	}
	return f.Document.Move(ctx, n, x, y)
}

// cancelOnMove cancels the batch context after the first swatch is placed.
type cancelOnMove struct {
	*document.Document
	cancel context.CancelFunc
}

func (c *cancelOnMove) Move(ctx context.Context, n host.Node, x, y float64) error {
	err := c.Document.Move(ctx, n, x, y)
	c.cancel()
	return err
}
