package markdown

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// ErrMalformedMetadata is returned when a front-matter block contains a line
// that does not follow the "key: value" convention.
var ErrMalformedMetadata = errors.New("malformed front matter")

// Transform is a text-to-text stage applied before or after rendering.
type Transform func(string) string

// Result holds the output of one processing pass. HTML, Body and Meta are
// always derived together from the same input.
type Result struct {
	HTML string
	Body string
	Meta *Metadata
}

// Processor turns raw page source into rendered HTML, body markdown and
// ordered front-matter metadata. Pre- and postprocessor lists are explicit
// per-instance configuration, not shared state.
type Processor struct {
	md   goldmark.Markdown
	pre  []Transform
	post []Transform
}

// Option configures a Processor.
type Option func(*Processor)

// WithPreprocessors sets the text transforms applied to raw input before
// rendering, in order.
func WithPreprocessors(transforms ...Transform) Option {
	return func(p *Processor) { p.pre = transforms }
}

// WithPostprocessors replaces the HTML transforms applied after rendering.
// The default list contains wikilink resolution.
func WithPostprocessors(transforms ...Transform) Option {
	return func(p *Processor) { p.post = transforms }
}

// New creates a Processor backed by goldmark with GFM tables, fenced code
// blocks and syntax highlighting enabled.
func New(opts ...Option) *Processor {
	p := &Processor{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(
					highlighting.WithStyle("github"),
					highlighting.WithFormatOptions(
						chromahtml.WithClasses(true),
					),
				),
			),
			goldmark.WithRendererOptions(
				html.WithUnsafe(),
			),
		),
		post: []Transform{func(s string) string { return ResolveWikilinks(s, DisplayURL) }},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs the full pipeline: preprocess, split front matter from body,
// render the body to HTML and postprocess the result.
//
// The input is split on the first blank line. Everything before it must be
// "key: value" front matter; a head line without a colon is reported as
// ErrMalformedMetadata. When no blank-line separator exists the whole input
// is treated as body with empty metadata.
func (p *Processor) Process(raw string) (Result, error) {
	pre := raw
	for _, transform := range p.pre {
		pre = transform(pre)
	}

	head, body, found := strings.Cut(pre, "\n\n")
	if !found {
		head, body = "", pre
	}

	meta, err := parseFrontMatter(head)
	if err != nil {
		return Result{}, err
	}

	var buf bytes.Buffer
	if err := p.md.Convert([]byte(body), &buf); err != nil {
		return Result{}, fmt.Errorf("render markdown: %w", err)
	}

	out := buf.String()
	for _, transform := range p.post {
		out = transform(out)
	}

	return Result{HTML: out, Body: body, Meta: meta}, nil
}

// parseFrontMatter reads "key: value" lines into an ordered Metadata map.
// Keys are lowercased. Indented lines continue the previous key's value and
// are joined with newlines.
func parseFrontMatter(head string) (*Metadata, error) {
	meta := NewMetadata()
	var last string
	for _, line := range strings.Split(head, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if last != "" && (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) {
			prev, _ := meta.Get(last)
			meta.Set(last, prev+"\n"+strings.TrimSpace(line))
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		key = strings.ToLower(strings.TrimSpace(key))
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", ErrMalformedMetadata, line)
		}
		meta.Set(key, strings.TrimSpace(value))
		last = key
	}
	return meta, nil
}
