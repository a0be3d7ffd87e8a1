// Package main implements the swatchbook CLI, which turns palette documents
// into named color styles and swatch instances inside a swatch document.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/image/font"

	rootpkg "tools.zach/dev/swatchbook"
	"tools.zach/dev/swatchbook/internal/atomicfile"
	"tools.zach/dev/swatchbook/internal/color"
	"tools.zach/dev/swatchbook/internal/config"
	"tools.zach/dev/swatchbook/internal/document"
	"tools.zach/dev/swatchbook/internal/fetch"
	"tools.zach/dev/swatchbook/internal/host"
	"tools.zach/dev/swatchbook/internal/logger"
	"tools.zach/dev/swatchbook/internal/palette"
	"tools.zach/dev/swatchbook/internal/paths"
	"tools.zach/dev/swatchbook/internal/plugin"
	"tools.zach/dev/swatchbook/internal/sheet"
	"tools.zach/dev/swatchbook/internal/swatch"
	"tools.zach/dev/swatchbook/internal/update"
	"tools.zach/dev/swatchbook/internal/watch"
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time via -ldflags "-X main.version=...".
// Bare go builds fall back to the embedded VCS revision.
var version = "dev"

func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	hash := revision[:min(7, len(revision))]
	if dirty {
		return "dev+" + hash + ".dirty"
	}
	return "dev+" + hash
}

// ///////////////////////////////////////////////
// Commands
// ///////////////////////////////////////////////

// app carries the state shared by subcommands. Config and logger are loaded
// by [app.setup] for the commands that need them.
type app struct {
	paths  DataPaths
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	cfg    *config.Config
	log    *slog.Logger
	closer io.Closer
}

type command struct {
	usage   string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"init":      {"init [-force]", "write the default config and an example palette", runInit},
	"parse":     {"parse [-strict] <color>...", "print the canonical form of color strings", runParse},
	"show":      {"show <palette-file|url>", "preview a palette in the terminal", runShow},
	"apply":     {"apply <palette-file|url>...", "create styles and swatches for palettes", runApply},
	"export":    {"export [-o file.png] [-font spec] <palette-file|url>", "render a palette as a PNG swatch sheet", runExport},
	"component": {"component", "create the swatch template component", runComponent},
	"serve":     {"serve", "read JSON messages from stdin and reply on stdout", runServe},
	"watch":     {"watch [-initial] <dir>", "re-apply palette files when they change", runWatch},
	"version":   {"version [-check] [-manifest url]", "print the version and optionally check for a newer release", runVersion},
}

// errUsage marks errors caused by bad arguments; run exits 2 for them.
var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run parses global flags, dispatches the subcommand, and returns the exit
// code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet(paths.BinaryName, flag.ContinueOnError)
	flags.SetOutput(stderr)
	dataDir := flags.String("data-dir", defaultDataDir(), "Data directory for config, document, cache, and logs")
	flags.Usage = func() { usage(stderr, flags) }
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() == 0 {
		usage(stderr, flags)
		return 2
	}

	name := flags.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		usage(stderr, flags)
		return 2
	}

	a := &app{paths: DataPaths{Root: *dataDir}, stdin: stdin, stdout: stdout, stderr: stderr}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()

	if err := cmd.run(ctx, a, flags.Args()[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "usage: %s %s\n", paths.BinaryName, cmd.usage)
			return 2
		}
		fmt.Fprintf(stderr, "fatal: %v\n", err)
		return 1
	}
	return 0
}

func usage(w io.Writer, flags *flag.FlagSet) {
	fmt.Fprintf(w, "usage: %s [-data-dir dir] <command> [args]\n\ncommands:\n", paths.BinaryName)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-30s %s\n", commands[name].usage, commands[name].summary)
	}
	fmt.Fprintln(w, "\nflags:")
	flags.PrintDefaults()
}

// setup creates the data directory, loads the config, and installs the
// logger as the slog default.
func (a *app) setup() error {
	if err := os.MkdirAll(a.paths.Root, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	cfg, err := config.Load(a.paths.Root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	opts := logger.Options{
		Path:      a.paths.Log(),
		Level:     logger.ParseLevel(cfg.Log.Level),
		MaxSizeMB: cfg.Log.MaxSizeMB,
	}
	if cfg.Log.Console {
		opts.Console = a.stderr
	}
	a.log, a.closer = logger.New(opts)
	slog.SetDefault(a.log)
	a.log.Debug("swatchbook starting", "version", resolveVersion(), "data_dir", a.paths.Root)
	return nil
}

func (a *app) close() {
	if a.closer != nil {
		a.closer.Close()
	}
}

// openDocument opens the configured document with the configured fonts.
func (a *app) openDocument() (*document.Document, error) {
	fonts := make([]host.Font, 0, len(a.cfg.Font.Available))
	for _, s := range a.cfg.Font.Available {
		fonts = append(fonts, host.ParseFont(s))
	}
	doc, err := document.Open(a.paths.Resolve(a.cfg.Document.Path), fonts)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	return doc, nil
}

// builder returns a swatch builder for doc configured from a.cfg.
func (a *app) builder(doc host.Document) *swatch.Builder {
	return &swatch.Builder{
		Doc:          doc,
		Template:     a.cfg.Template.Name,
		TemplateSize: host.Size{Width: a.cfg.Template.Width, Height: a.cfg.Template.Height},
		Font:         host.Font{Family: a.cfg.Font.Family, Style: a.cfg.Font.Style},
		Layout:       swatch.Layout{Columns: a.cfg.Layout.Columns, Gap: a.cfg.Layout.Gap},
		Strict:       a.cfg.Parse.Strict,
		Logger:       a.log,
	}
}

func (a *app) fetcher() *fetch.Client {
	opts := fetch.Options{
		RetryMax: a.cfg.Fetch.RetryMax,
		Timeout:  time.Duration(a.cfg.Fetch.TimeoutSeconds) * time.Second,
	}
	if a.cfg.Fetch.Cache {
		opts.CacheDir = a.paths.PaletteCache()
	}
	return fetch.NewClient(opts)
}

// loadPalette reads a palette from a file or URL. A URL served from the
// cache logs the fetch error and succeeds.
func (a *app) loadPalette(ctx context.Context, src string) (*palette.Input, error) {
	if !fetch.IsURL(src) {
		return palette.Load(src)
	}
	in, err := a.fetcher().Palette(ctx, src)
	if err != nil && in != nil {
		a.log.Warn("palette fetch failed", "url", src, "error", err)
		return in, nil
	}
	return in, err
}

// ///////////////////////////////////////////////
// init
// ///////////////////////////////////////////////

func runInit(_ context.Context, a *app, args []string) error {
	flags := flag.NewFlagSet("init", flag.ContinueOnError)
	flags.SetOutput(a.stderr)
	force := flags.Bool("force", false, "Overwrite existing files")
	if err := flags.Parse(args); err != nil || flags.NArg() > 0 {
		return errUsage
	}

	targets := []struct {
		path  string
		write func(string) error
	}{
		{a.paths.Config(), config.WriteDefault},
		{filepath.Join(a.paths.Root, rootpkg.ExamplePaletteFile), func(p string) error {
			return atomicfile.Write(p, rootpkg.ExamplePalette, 0o644)
		}},
	}
	for _, t := range targets {
		if _, err := os.Stat(t.path); err == nil && !*force {
			fmt.Fprintf(a.stdout, "exists  %s\n", t.path)
			continue
		}
		if err := t.write(t.path); err != nil {
			return fmt.Errorf("write %s: %w", t.path, err)
		}
		fmt.Fprintf(a.stdout, "wrote   %s\n", t.path)
	}
	return nil
}

// ///////////////////////////////////////////////
// parse
// ///////////////////////////////////////////////

func runParse(_ context.Context, a *app, args []string) error {
	flags := flag.NewFlagSet("parse", flag.ContinueOnError)
	flags.SetOutput(a.stderr)
	strict := flags.Bool("strict", false, "Report unrecognized or malformed colors")
	if err := flags.Parse(args); err != nil || flags.NArg() == 0 {
		return errUsage
	}

	var failed int
	for _, s := range flags.Args() {
		c := color.Parse(s)
		if *strict {
			var err error
			if c, err = color.ParseStrict(s); err != nil {
				fmt.Fprintf(a.stdout, "%s\terror: %v\n", s, err)
				failed++
				continue
			}
		}
		hex := c.Hex()
		if hex == "" {
			hex = "-"
		}
		fmt.Fprintf(a.stdout, "%s\t%s\t%s\n", s, color.Serialize(c), hex)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d colors did not parse", failed, flags.NArg())
	}
	return nil
}

// ///////////////////////////////////////////////
// show
// ///////////////////////////////////////////////

func runShow(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if err := a.setup(); err != nil {
		return err
	}
	in, err := a.loadPalette(ctx, args[0])
	if err != nil {
		return err
	}
	renderPalette(a.stdout, in, a.cfg.Parse.Strict)
	return nil
}

// renderPalette writes one line per color: a colored block, the style name,
// and the canonical color string.
func renderPalette(w io.Writer, in *palette.Input, strict bool) {
	r := lipgloss.NewRenderer(w)
	title := r.NewStyle().Bold(true)
	dim := r.NewStyle().Faint(true)
	block := r.NewStyle().Width(6)

	width := 0
	for _, e := range in.Colors {
		width = max(width, len(in.Qualified(e)))
	}
	name := r.NewStyle().Width(width + 2)

	fmt.Fprintln(w, title.Render(in.Name))
	for _, e := range in.Colors {
		c := color.Parse(e.Value)
		value := color.Serialize(c)
		if strict {
			if _, err := color.ParseStrict(e.Value); err != nil {
				value = err.Error()
			}
		}
		swatchBlock := dim.Render("  ??  ")
		if hex := c.Hex(); hex != "" {
			swatchBlock = block.Background(lipgloss.Color(hex)).Render("")
		}
		fmt.Fprintf(w, "%s %s%s\n", swatchBlock, name.Render(in.Qualified(e)), dim.Render(value))
	}
}

// ///////////////////////////////////////////////
// export
// ///////////////////////////////////////////////

func runExport(ctx context.Context, a *app, args []string) error {
	flags := flag.NewFlagSet("export", flag.ContinueOnError)
	flags.SetOutput(a.stderr)
	out := flags.String("o", "", "Output PNG path (default <palette name>.png)")
	fontSpec := flags.String("font", "", "Font file or google:Family:Weight, overriding export.font")
	if err := flags.Parse(args); err != nil || flags.NArg() != 1 {
		return errUsage
	}
	if err := a.setup(); err != nil {
		return err
	}
	in, err := a.loadPalette(ctx, flags.Arg(0))
	if err != nil {
		return err
	}

	spec := a.cfg.Export.Font
	if *fontSpec != "" {
		spec = *fontSpec
	}
	face, err := a.exportFace(ctx, spec)
	if err != nil {
		return err
	}
	defer face.Close()

	path := *out
	if path == "" {
		path = in.Name + ".png"
	}
	opts := sheet.Options{Columns: a.cfg.Layout.Columns, CellSize: a.cfg.Export.CellSize, Face: face}
	if err := atomicfile.WriteFunc(path, 0o644, func(w io.Writer) error {
		return sheet.EncodePNG(w, in, opts)
	}); err != nil {
		return fmt.Errorf("export %s: %w", in.Name, err)
	}
	fmt.Fprintf(a.stdout, "wrote %s\n", path)
	return nil
}

// exportFace loads the label face named by spec: empty for the built-in
// face, a google:Family:Weight spec, or a font file path.
func (a *app) exportFace(ctx context.Context, spec string) (font.Face, error) {
	size := a.cfg.Export.FontSize
	if spec == "" {
		return sheet.DefaultFace(size)
	}
	var data []byte
	if _, _, ok := fetch.ParseGoogleFontSpec(spec); ok {
		var err error
		data, err = a.fetcher().GoogleFont(ctx, spec, a.paths.FontCache())
		if err != nil {
			if data == nil {
				return nil, err
			}
			a.log.Warn("font downloaded but not cached", "font", spec, "error", err)
		}
	} else {
		var err error
		if data, err = os.ReadFile(a.paths.Resolve(spec)); err != nil {
			return nil, fmt.Errorf("read font: %w", err)
		}
	}
	return sheet.ParseFace(data, size)
}

// ///////////////////////////////////////////////
// apply / component
// ///////////////////////////////////////////////

func runApply(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	if err := a.setup(); err != nil {
		return err
	}
	doc, err := a.openDocument()
	if err != nil {
		return err
	}
	runner := plugin.NewRunner(a.builder(doc), a.log)
	defer runner.Close()

	var failed int
	for _, src := range args {
		in, err := a.loadPalette(ctx, src)
		if err != nil {
			return err
		}
		report, err := runner.Submit(ctx, plugin.Message{Type: plugin.TypeCreatePalette, Palette: in}).Wait(ctx)
		if err != nil {
			return fmt.Errorf("apply %s: %w", src, err)
		}
		printReport(a.stdout, report)
		failed += len(report.Failed)
	}
	if failed > 0 {
		return fmt.Errorf("%d swatches failed", failed)
	}
	return nil
}

func printReport(w io.Writer, r *swatch.Report) {
	fmt.Fprintf(w, "%s: %d created, %d failed\n", r.Palette, len(r.Created), len(r.Failed))
	for _, f := range r.Failed {
		fmt.Fprintf(w, "  %s (%q): %v\n", f.Style, f.Value, f.Err)
	}
}

func runComponent(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	if err := a.setup(); err != nil {
		return err
	}
	doc, err := a.openDocument()
	if err != nil {
		return err
	}
	runner := plugin.NewRunner(a.builder(doc), a.log)
	defer runner.Close()

	if _, err := runner.Submit(ctx, plugin.Message{Type: plugin.TypeCreateComponent}).Wait(ctx); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "component %q ready in %s\n", a.cfg.Template.Name, doc.Path())
	return nil
}

// ///////////////////////////////////////////////
// serve
// ///////////////////////////////////////////////

// reply is written to stdout for every message read by serve.
type reply struct {
	Type    string        `json:"type"`
	Palette string        `json:"palette,omitempty"`
	Created int           `json:"created"`
	Failed  []replyFailed `json:"failed,omitempty"`
	Error   string        `json:"error,omitempty"`
}

type replyFailed struct {
	Style string `json:"style"`
	Value string `json:"value"`
	Error string `json:"error"`
}

func runServe(ctx context.Context, a *app, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	if err := a.setup(); err != nil {
		return err
	}
	doc, err := a.openDocument()
	if err != nil {
		return err
	}
	runner := plugin.NewRunner(a.builder(doc), a.log)
	defer runner.Close()

	enc := json.NewEncoder(a.stdout)
	return plugin.ReadMessages(a.stdin, func(m plugin.Message) error {
		report, err := runner.Submit(ctx, m).Wait(ctx)
		if errors.Is(err, context.Canceled) {
			return err
		}
		rep := reply{Type: m.Type}
		if err != nil {
			rep.Error = err.Error()
		}
		if report != nil {
			rep.Palette = report.Palette
			rep.Created = len(report.Created)
			for _, f := range report.Failed {
				rep.Failed = append(rep.Failed, replyFailed{Style: f.Style, Value: f.Value, Error: f.Err.Error()})
			}
		}
		return enc.Encode(rep)
	})
}

// ///////////////////////////////////////////////
// watch
// ///////////////////////////////////////////////

func runWatch(ctx context.Context, a *app, args []string) error {
	flags := flag.NewFlagSet("watch", flag.ContinueOnError)
	flags.SetOutput(a.stderr)
	initial := flags.Bool("initial", false, "Apply every matching file before watching")
	if err := flags.Parse(args); err != nil || flags.NArg() != 1 {
		return errUsage
	}
	if err := a.setup(); err != nil {
		return err
	}
	doc, err := a.openDocument()
	if err != nil {
		return err
	}

	filter := watch.Filter{Include: a.cfg.Watch.Include, Ignore: a.cfg.Watch.Ignore}
	w, err := watch.New(flags.Arg(0), watch.Options{
		Filter:       filter,
		PollInterval: time.Duration(a.cfg.Watch.PollIntervalSeconds) * time.Second,
		Logger:       a.log,
	})
	if err != nil {
		return err
	}
	defer w.Close()
	if w.Polling() {
		a.log.Info("using polling mode for file watching")
	}

	runner := plugin.NewRunner(a.builder(doc), a.log)
	defer runner.Close()

	if *initial {
		applyFiles(ctx, a, runner, matchingFiles(w.Root(), filter))
	}
	a.log.Info("watching palettes", "dir", w.Root())
	return watchLoop(ctx, a, runner, w)
}

// watchLoop applies changed palette files until ctx is cancelled.
func watchLoop(ctx context.Context, a *app, runner *plugin.Runner, w *watch.Watcher) error {
	for {
		changed, err := w.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, fs.ErrClosed) {
				a.log.Info("watch stopped")
				return nil
			}
			return err
		}
		applyFiles(ctx, a, runner, changed)
	}
}

// applyFiles applies each palette file, logging failures without stopping.
func applyFiles(ctx context.Context, a *app, runner *plugin.Runner, files []string) {
	for _, path := range files {
		in, err := palette.Load(path)
		if err != nil {
			a.log.Warn("skipping palette", "path", path, "error", err)
			continue
		}
		report, err := runner.Submit(ctx, plugin.Message{Type: plugin.TypeCreatePalette, Palette: in}).Wait(ctx)
		if err != nil {
			a.log.Error("apply failed", "path", path, "error", err)
			continue
		}
		printReport(a.stdout, report)
	}
}

// matchingFiles lists the files under root accepted by filter.
func matchingFiles(root string, filter watch.Filter) []string {
	var files []string
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if rel, err := filepath.Rel(root, path); err == nil && filter.Match(rel) {
			files = append(files, path)
		}
		return nil
	})
	return files
}

// ///////////////////////////////////////////////
// version
// ///////////////////////////////////////////////

func runVersion(ctx context.Context, a *app, args []string) error {
	flags := flag.NewFlagSet("version", flag.ContinueOnError)
	flags.SetOutput(a.stderr)
	check := flags.Bool("check", false, "Compare against the latest release")
	manifest := flags.String("manifest", update.ManifestURL, "Release manifest URL used by -check")
	if err := flags.Parse(args); err != nil || flags.NArg() > 0 {
		return errUsage
	}

	current := resolveVersion()
	fmt.Fprintf(a.stdout, "%s %s\n", paths.BinaryName, current)
	if !*check {
		return nil
	}
	if err := a.setup(); err != nil {
		return err
	}

	res, err := update.Check(ctx, a.fetcher(), *manifest, current)
	if err != nil {
		return fmt.Errorf("version check: %w", err)
	}
	if res.Newer {
		fmt.Fprintf(a.stdout, "newer release available: %s\n", res.Latest)
	} else {
		fmt.Fprintln(a.stdout, "up to date")
	}
	return nil
}
