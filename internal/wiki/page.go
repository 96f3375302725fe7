package wiki

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"mdwiki/internal/markdown"
)

// Sentinel errors for page lookups and moves.
var (
	ErrPageNotFound       = errors.New("page not found")
	ErrPageExists         = errors.New("page already exists")
	ErrOutsideContentRoot = errors.New("write attempt outside content directory")
)

// docIDLength is the number of hex characters kept from the URL hash.
const docIDLength = 16

// DocumentID derives the stable index document id for a page URL. Identical
// URLs always hash to identical ids.
func DocumentID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:docIDLength]
}

// processor is shared by all pages; goldmark instances are safe for
// concurrent use.
var processor = markdown.New()

// Page is one file-backed wiki document. HTML, Body and Meta are populated
// together by Render from the same processing pass.
type Page struct {
	Path string
	URL  string
	ID   string

	Body string
	HTML string
	Meta *markdown.Metadata

	content string
}

// NewPage loads and renders the page stored at path.
func NewPage(path, url string) (*Page, error) {
	p := NewBarePage(path, url)
	if err := p.Load(); err != nil {
		return nil, err
	}
	if err := p.Render(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewBarePage creates an in-memory placeholder for a page that has not been
// saved yet. Nothing is read from disk.
func NewBarePage(path, url string) *Page {
	return &Page{
		Path: path,
		URL:  url,
		ID:   DocumentID(url),
		Meta: markdown.NewMetadata(),
	}
}

// Load reads the backing file into memory.
func (p *Page) Load() error {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrPageNotFound, p.URL)
		}
		return fmt.Errorf("read page %s: %w", p.Path, err)
	}
	p.content = string(data)
	return nil
}

// Render runs the markdown processor over the loaded content.
func (p *Page) Render() error {
	res, err := processor.Process(p.content)
	if err != nil {
		return fmt.Errorf("render page %s: %w", p.URL, err)
	}
	p.HTML = res.HTML
	p.Body = res.Body
	p.Meta = res.Meta
	return nil
}

// Save serializes front matter and body back to disk, creating the parent
// directory if needed. Windows line endings in the body are normalized.
// When reload is true the page is re-read and re-rendered afterwards so the
// in-memory state matches the file.
func (p *Page) Save(reload bool) error {
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return fmt.Errorf("create page directory: %w", err)
	}

	var b strings.Builder
	for _, key := range p.Meta.Keys() {
		value, _ := p.Meta.Get(key)
		fmt.Fprintf(&b, "%s: %s\n", key, value)
	}
	b.WriteString("\n")
	b.WriteString(strings.ReplaceAll(p.Body, "\r\n", "\n"))

	if err := os.WriteFile(p.Path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write page %s: %w", p.Path, err)
	}

	if reload {
		if err := p.Load(); err != nil {
			return err
		}
		return p.Render()
	}
	return nil
}

// Title returns the "title" metadata value, falling back to the URL.
func (p *Page) Title() string {
	if title, ok := p.Meta.Get("title"); ok {
		return title
	}
	return p.URL
}

// SetTitle stores the "title" metadata value.
func (p *Page) SetTitle(title string) {
	p.Meta.Set("title", title)
}

// Tags returns the comma-separated "tags" metadata value, or "" if unset.
func (p *Page) Tags() string {
	if tags, ok := p.Meta.Get("tags"); ok {
		return tags
	}
	return ""
}

// SetTags stores the comma-separated "tags" metadata value.
func (p *Page) SetTags(tags string) {
	p.Meta.Set("tags", tags)
}

// DocumentID returns the stable id used to key this page's index rows.
func (p *Page) DocumentID() string {
	return p.ID
}
