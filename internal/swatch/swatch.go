// Package swatch materializes palettes in a [host.Document].
//
// Every color becomes a named style "palette/color" and an instance of the
// swatch template component whose "Color" rectangle is bound to the style
// and whose "Name" text shows the style name. Entries are independent: a
// failure on one is logged and reported without stopping the rest.
package swatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tools.zach/dev/swatchbook/internal/color"
	"tools.zach/dev/swatchbook/internal/host"
	"tools.zach/dev/swatchbook/internal/palette"
)

// Template node names every swatch component must contain exactly once.
const (
	ColorNode = "Color"
	NameNode  = "Name"
)

// labelHeight is the height reserved below the color rectangle for the name.
const labelHeight = 32

// ErrTemplate is wrapped when the template breaks the node contract.
var ErrTemplate = errors.New("invalid swatch template")

// ///////////////////////////////////////////////
// Builder
// ///////////////////////////////////////////////

// Layout arranges instances in a grid.
type Layout struct {
	Columns int
	Gap     float64
}

// Position returns the offset of the i-th swatch of the given size.
func (l Layout) Position(i int, size host.Size) (x, y float64) {
	cols := max(l.Columns, 1)
	return float64(i%cols) * (size.Width + l.Gap), float64(i/cols) * (size.Height + l.Gap)
}

// Builder creates swatch components and palettes.
type Builder struct {
	Doc host.Document
	// Template is the component name instanced for each color.
	Template string
	// TemplateSize sizes a newly created template.
	TemplateSize host.Size
	Font         host.Font
	Layout       Layout
	// Strict rejects unparseable color strings instead of writing
	// transparent black.
	Strict bool
	Logger *slog.Logger
}

func (b *Builder) log() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// ///////////////////////////////////////////////
// Component
// ///////////////////////////////////////////////

// CreateComponent returns the template component, creating and committing
// it when the document has none.
func (b *Builder) CreateComponent(ctx context.Context) (host.Node, error) {
	comp, created, err := b.template(ctx)
	if err != nil {
		return nil, err
	}
	if created {
		if err := b.Doc.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit component: %w", err)
		}
	}
	return comp, nil
}

// template finds or creates the template component and checks its contract.
func (b *Builder) template(ctx context.Context) (host.Node, bool, error) {
	comp, err := b.Doc.FindComponent(b.Template)
	if err == nil {
		if err := CheckTemplate(comp); err != nil {
			return nil, false, err
		}
		return comp, false, nil
	}
	if !errors.Is(err, host.ErrNotFound) {
		return nil, false, fmt.Errorf("find template: %w", err)
	}

	size := b.TemplateSize
	swatchHeight := max(size.Height-labelHeight, size.Height/2)
	comp, err = b.Doc.CreateComponent(ctx, host.ComponentSpec{
		Name: b.Template,
		Size: size,
		Children: []host.ChildSpec{
			{Name: ColorNode, Kind: host.KindRectangle, Size: host.Size{Width: size.Width, Height: swatchHeight}},
			{Name: NameNode, Kind: host.KindText, Y: swatchHeight, Size: host.Size{Width: size.Width, Height: size.Height - swatchHeight}},
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("create template: %w", err)
	}
	b.log().Info("created swatch template", "template", b.Template)
	return comp, true, nil
}

// CheckTemplate verifies that root has exactly one "Color" rectangle and
// exactly one "Name" text descendant.
func CheckTemplate(root host.Node) error {
	if _, err := host.FindOne(root, ColorNode, host.KindRectangle); err != nil {
		return fmt.Errorf("%w: %w", ErrTemplate, err)
	}
	if _, err := host.FindOne(root, NameNode, host.KindText); err != nil {
		return fmt.Errorf("%w: %w", ErrTemplate, err)
	}
	return nil
}

// ///////////////////////////////////////////////
// Palette
// ///////////////////////////////////////////////

// EntryResult records what happened to one palette entry.
type EntryResult struct {
	Name  string
	Value string
	// Style is the qualified style name.
	Style string
	// StyleID is empty when the entry failed before the style was created.
	StyleID host.StyleID
	Color   color.Color
	Err     error
}

// Report summarizes a CreatePalette call.
type Report struct {
	Palette string
	Created []EntryResult
	Failed  []EntryResult
}

// Err joins the errors of every failed entry, or returns nil.
func (r *Report) Err() error {
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", f.Style, f.Err))
	}
	return errors.Join(errs...)
}

// CreatePalette writes every entry of in to the document and commits.
// Errors in the palette itself, the template, cancellation, or the commit
// are returned and leave the document as it was last committed; entry
// errors are only collected in the report.
func (b *Builder) CreatePalette(ctx context.Context, in *palette.Input) (*Report, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	comp, _, err := b.template(ctx)
	if err != nil {
		return nil, err
	}
	frame, err := b.Doc.CreateFrame(ctx, in.Name)
	if err != nil {
		return nil, b.abort(fmt.Errorf("create palette frame: %w", err))
	}

	log := b.log().With("palette", in.Name)
	report := &Report{Palette: in.Name}
	size := b.TemplateSize
	for _, e := range in.Colors {
		if err := ctx.Err(); err != nil {
			log.Warn("palette canceled", "applied", len(report.Created), "remaining", len(in.Colors)-len(report.Created)-len(report.Failed))
			return report, b.abort(err)
		}
		res := b.createEntry(ctx, in, e, comp, frame, len(report.Created), size)
		if res.Err != nil {
			log.Warn("swatch failed", "color", e.Name, "value", e.Value, "error", res.Err)
			report.Failed = append(report.Failed, res)
			continue
		}
		log.Debug("swatch created", "color", e.Name, "value", color.Serialize(res.Color))
		report.Created = append(report.Created, res)
	}

	if err := b.Doc.Commit(ctx); err != nil {
		return report, b.abort(fmt.Errorf("commit palette: %w", err))
	}
	log.Info("palette applied", "created", len(report.Created), "failed", len(report.Failed))
	return report, nil
}

// abort drops the uncommitted mutations of a failed batch.
func (b *Builder) abort(err error) error {
	if derr := b.Doc.Discard(); derr != nil {
		return errors.Join(err, derr)
	}
	return err
}

// createEntry runs every document step for one entry. Panics from the
// document are converted to entry errors so the batch continues. An
// instance placed before a failing step is removed again.
func (b *Builder) createEntry(ctx context.Context, in *palette.Input, e palette.Entry, comp, frame host.Node, slot int, size host.Size) (res EntryResult) {
	res = EntryResult{Name: e.Name, Value: e.Value, Style: in.Qualified(e)}
	var inst host.Node
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic: %v", r)
		}
		if res.Err != nil && inst != nil {
			if err := b.removeInstance(ctx, inst); err != nil {
				res.Err = errors.Join(res.Err, fmt.Errorf("remove instance: %w", err))
			}
		}
	}()

	c, err := b.parse(e.Value)
	if err != nil {
		res.Err = err
		return res
	}
	res.Color = c

	if res.StyleID, err = b.Doc.FindOrCreateStyle(ctx, res.Style, c); err != nil {
		res.Err = fmt.Errorf("style: %w", err)
		return res
	}
	if err := b.Doc.LoadFont(ctx, b.Font); err != nil {
		res.Err = fmt.Errorf("load font: %w", err)
		return res
	}
	if inst, err = b.Doc.Instantiate(ctx, comp, frame); err != nil {
		inst = nil
		res.Err = fmt.Errorf("instantiate: %w", err)
		return res
	}
	rect, err := host.FindOne(inst, ColorNode, host.KindRectangle)
	if err != nil {
		res.Err = err
		return res
	}
	if err := b.Doc.BindFill(ctx, rect, res.StyleID); err != nil {
		res.Err = fmt.Errorf("bind fill: %w", err)
		return res
	}
	label, err := host.FindOne(inst, NameNode, host.KindText)
	if err != nil {
		res.Err = err
		return res
	}
	if err := b.Doc.SetText(ctx, label, b.Font, res.Style); err != nil {
		res.Err = fmt.Errorf("set label: %w", err)
		return res
	}
	x, y := b.Layout.Position(slot, size)
	if err := b.Doc.Move(ctx, inst, x, y); err != nil {
		res.Err = fmt.Errorf("layout: %w", err)
		return res
	}
	return res
}

// removeInstance deletes inst, turning a panic from the document into an
// error.
func (b *Builder) removeInstance(ctx context.Context, inst host.Node) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return b.Doc.Remove(ctx, inst)
}

func (b *Builder) parse(value string) (color.Color, error) {
	if b.Strict {
		return color.ParseStrict(value)
	}
	return color.Parse(value), nil
}
