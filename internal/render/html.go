// Package render turns a documentation library into a static HTML site or
// nested JSON.
//
// The site is flat: index.html lists the top level, and every package, module
// and typedef gets its own page named after its dotted path, for example
// module.top.html or type.bus_pkg.addr_t.html. Documentation text is Markdown.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/robert-at-pretension-io/svdoc/internal/doc"
)

//go:embed templates/*.html static/svdoc.css
var assets embed.FS

// StylesheetPath is the page name of the site stylesheet.
const StylesheetPath = "static/svdoc.css"

const defaultTitle = "Documentation"

// HTMLRenderer renders libraries to HTML pages.
type HTMLRenderer struct {
	md      goldmark.Markdown
	tmpl    *template.Template
	version string
	now     func() time.Time
	log     *slog.Logger
}

// Option configures an HTMLRenderer.
type Option func(*HTMLRenderer)

// WithVersion sets the version stamped into every page header.
func WithVersion(v string) Option {
	return func(r *HTMLRenderer) { r.version = v }
}

// WithClock sets the source of the generation time.
func WithClock(now func() time.Time) Option {
	return func(r *HTMLRenderer) { r.now = now }
}

// WithLogger sets the logger. Nil discards.
func WithLogger(log *slog.Logger) Option {
	return func(r *HTMLRenderer) { r.log = log }
}

// NewHTMLRenderer creates a renderer.
func NewHTMLRenderer(opts ...Option) *HTMLRenderer {
	r := &HTMLRenderer{
		md:      goldmark.New(goldmark.WithExtensions(extension.GFM)),
		version: "dev",
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r.tmpl = template.Must(template.New("svdoc").ParseFS(assets, "templates/*.html"))
	return r
}

type entryView struct {
	Name     string
	Href     string
	Headline template.HTML
}

type memberView struct {
	ID    string
	Name  string
	Type  string
	Local bool
	Doc   template.HTML
}

type contentsView struct {
	Packages []entryView
	Modules  []entryView
	Params   []memberView
	Ports    []memberView
	Types    []entryView
	Signals  []memberView
}

type pageView struct {
	Title    string
	Kind     string
	Class    string
	Name     string
	Typedef  string
	Doc      template.HTML
	Contents *contentsView
}

// pageBuilder collects the pages of one render.
type pageBuilder struct {
	r         *HTMLRenderer
	generated string
	pages     map[string][]byte
}

// Pages renders lib into memory. Keys are page names relative to the site
// root, the stylesheet included.
func (r *HTMLRenderer) Pages(lib *doc.Library) (map[string][]byte, error) {
	b := &pageBuilder{
		r:         r,
		generated: r.now().Format(time.RFC3339),
		pages:     make(map[string][]byte),
	}
	title := defaultTitle
	var data doc.Context
	if lib != nil {
		data = lib.Data
		if lib.Title != "" {
			title = lib.Title
		}
	}

	contents, err := b.contents(data, "")
	if err != nil {
		return nil, err
	}
	if err := b.emit("index.html", pageView{Title: title, Name: title, Contents: contents}); err != nil {
		return nil, fmt.Errorf("render index: %w", err)
	}

	css, err := assets.ReadFile(StylesheetPath)
	if err != nil {
		return nil, fmt.Errorf("read stylesheet: %w", err)
	}
	b.pages[StylesheetPath] = css
	r.log.Debug("rendered pages", slog.Int("pages", len(b.pages)))
	return b.pages, nil
}

// WriteDir renders lib and writes every page below dir.
func (r *HTMLRenderer) WriteDir(dir string, lib *doc.Library) error {
	pages, err := r.Pages(lib)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(dir, "static"), 0o755); err != nil {
		return fmt.Errorf("create doc directory %s: %w", dir, err)
	}
	names := make([]string, 0, len(pages))
	for name := range pages {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.WriteFile(path, pages[name], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	r.log.Info("wrote documentation", slog.String("dir", dir), slog.Int("pages", len(names)))
	return nil
}

func (b *pageBuilder) contents(cx doc.Context, scope string) (*contentsView, error) {
	cv := &contentsView{}

	for _, p := range cx.Packages {
		path := qualify(scope, p.Name)
		page := b.pageName("package", path)
		cv.Packages = append(cv.Packages, entryView{Name: p.Name, Href: page, Headline: b.r.headline(p.Doc)})
		sub, err := b.contents(p.Content, path)
		if err != nil {
			return nil, err
		}
		view := pageView{Title: "Package " + path, Kind: "Package", Class: "package", Name: p.Name, Doc: b.r.markdown(p.Doc), Contents: sub}
		if err := b.emit(page, view); err != nil {
			return nil, fmt.Errorf("render package %s: %w", path, err)
		}
	}

	for _, m := range cx.Modules {
		path := qualify(scope, m.Name)
		page := b.pageName("module", path)
		cv.Modules = append(cv.Modules, entryView{Name: m.Name, Href: page, Headline: b.r.headline(m.Doc)})
		sub, err := b.contents(m.Content, path)
		if err != nil {
			return nil, err
		}
		view := pageView{Title: "Module " + path, Kind: "Module", Class: "module", Name: m.Name, Doc: b.r.markdown(m.Doc), Contents: sub}
		if err := b.emit(page, view); err != nil {
			return nil, fmt.Errorf("render module %s: %w", path, err)
		}
	}

	for _, p := range cx.Params {
		cv.Params = append(cv.Params, memberView{ID: "parameter." + p.Name, Name: p.Name, Type: p.Ty, Local: p.Local, Doc: b.r.markdown(p.Doc)})
	}
	for _, p := range cx.Ports {
		cv.Ports = append(cv.Ports, memberView{ID: "port." + p.Name, Name: p.Name, Type: p.Ty, Doc: b.r.markdown(p.Doc)})
	}

	for _, t := range cx.Types {
		path := qualify(scope, t.Name)
		page := b.pageName("type", path)
		cv.Types = append(cv.Types, entryView{Name: t.Name, Href: page, Headline: b.r.headline(t.Doc)})
		view := pageView{
			Title:   "Typedef " + path,
			Kind:    "Typedef",
			Class:   "type",
			Name:    t.Name,
			Typedef: typedefLine(t),
			Doc:     b.r.markdown(t.Doc),
		}
		if err := b.emit(page, view); err != nil {
			return nil, fmt.Errorf("render type %s: %w", path, err)
		}
	}

	for _, v := range cx.Vars {
		cv.Signals = append(cv.Signals, memberView{ID: "signal." + v.Name, Name: v.Name, Type: v.Ty, Doc: b.r.markdown(v.Doc)})
	}
	return cv, nil
}

// pageName returns a file name for kind and path that no earlier page uses.
// Two top-level modules of the same name in different files get distinct
// pages.
func (b *pageBuilder) pageName(kind, path string) string {
	base := kind + "." + sanitize(path)
	name := base + ".html"
	for n := 2; ; n++ {
		if _, taken := b.pages[name]; !taken {
			break
		}
		name = fmt.Sprintf("%s-%d.html", base, n)
	}
	// reserve until the page is emitted
	b.pages[name] = nil
	return name
}

func (b *pageBuilder) emit(name string, view pageView) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<!-- Compiled by svdoc-%s / %s -->\n", b.r.version, b.generated)
	if err := b.r.tmpl.ExecuteTemplate(&buf, "page", view); err != nil {
		return err
	}
	b.pages[name] = buf.Bytes()
	return nil
}

// markdown renders documentation text. Raw HTML in the source is omitted.
func (r *HTMLRenderer) markdown(src string) template.HTML {
	if strings.TrimSpace(src) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		r.log.Warn("markdown conversion failed", slog.Any("error", err))
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

// headline renders the first line of documentation text.
func (r *HTMLRenderer) headline(src string) template.HTML {
	first, _, _ := strings.Cut(src, "\n")
	return r.markdown(first)
}

func typedefLine(t doc.TypeItem) string {
	if t.Ty == "" {
		return "typedef " + t.Name + ";"
	}
	return "typedef " + t.Ty + " " + t.Name + ";"
}

func qualify(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "." + name
}

// sanitize keeps page names portable. Escaped identifiers may contain any
// printable character.
func sanitize(path string) string {
	var sb strings.Builder
	for _, c := range path {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			c == '_', c == '$', c == '.', c == '-':
			sb.WriteRune(c)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
