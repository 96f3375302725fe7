package wiki

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"mdwiki/internal/markdown"
)

// Wiki is a directory-backed collection of pages addressed by URL. It owns
// the files only; keeping the search index in sync with saves, moves and
// deletes is the caller's job.
type Wiki struct {
	root string
}

// New creates a Wiki over an existing content root directory.
func New(root string) *Wiki {
	return &Wiki{root: root}
}

// Path maps a page URL to its filesystem location under the root.
func (w *Wiki) Path(url string) string {
	return filepath.Join(w.root, url+".md")
}

// Exists reports whether a page file is present for the URL.
func (w *Wiki) Exists(url string) bool {
	_, err := os.Stat(w.Path(url))
	return err == nil
}

// Get returns the page at url, or nil when it does not exist.
func (w *Wiki) Get(url string) (*Page, error) {
	if !w.Exists(url) {
		return nil, nil
	}
	return NewPage(w.Path(url), url)
}

// GetOrErr returns the page at url or ErrPageNotFound.
func (w *Wiki) GetOrErr(url string) (*Page, error) {
	page, err := w.Get(url)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, url)
	}
	return page, nil
}

// GetBare returns a new unsaved page for url, or ErrPageExists when a page
// is already stored there.
func (w *Wiki) GetBare(url string) (*Page, error) {
	if w.Exists(url) {
		return nil, fmt.Errorf("%w: %s", ErrPageExists, url)
	}
	return NewBarePage(w.Path(url), url), nil
}

// Move renames the backing file for url to newURL, creating missing
// intermediate directories. The resolved target must stay inside the
// content root; otherwise ErrOutsideContentRoot is returned and nothing is
// touched.
func (w *Wiki) Move(url, newURL string) error {
	source := w.Path(url)
	target := w.Path(newURL)

	root, err := filepath.Abs(w.root)
	if err != nil {
		return fmt.Errorf("resolve content root: %w", err)
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("resolve move target: %w", err)
	}
	rel, err := filepath.Rel(root, targetAbs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrOutsideContentRoot, newURL)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}
	if err := os.Rename(source, target); err != nil {
		return fmt.Errorf("move page %s: %w", url, err)
	}
	return nil
}

// Delete removes the backing file for url. It reports whether a file
// existed; a missing page is not an error.
func (w *Wiki) Delete(url string) (bool, error) {
	if !w.Exists(url) {
		return false, nil
	}
	if err := os.Remove(w.Path(url)); err != nil {
		return false, fmt.Errorf("delete page %s: %w", url, err)
	}
	return true, nil
}

// Index walks the content root and returns every .md file as a rendered
// page, sorted by case-insensitive title. Each call re-reads and re-renders
// everything; there is no cache.
func (w *Wiki) Index() ([]*Page, error) {
	root, err := filepath.Abs(w.root)
	if err != nil {
		return nil, fmt.Errorf("resolve content root: %w", err)
	}

	var pages []*Page
	walk := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		url := markdown.NormalizeURL(filepath.ToSlash(strings.TrimSuffix(rel, ".md")))
		page, err := NewPage(path, url)
		if err != nil {
			return err
		}
		pages = append(pages, page)
		return nil
	}
	if err := filepath.WalkDir(root, walk); err != nil {
		return nil, fmt.Errorf("walk content root: %w", err)
	}

	sort.SliceStable(pages, func(i, j int) bool {
		return strings.ToLower(pages[i].Title()) < strings.ToLower(pages[j].Title())
	})
	return pages, nil
}

// attrValue resolves a named page attribute for grouping and searching.
// Besides the fixed attributes, any metadata key can be named directly.
func attrValue(p *Page, attr string) (string, bool) {
	switch attr {
	case "title":
		return p.Title(), true
	case "tags":
		return p.Tags(), true
	case "body":
		return p.Body, true
	case "url":
		return p.URL, true
	case "html":
		return p.HTML, true
	}
	return p.Meta.Get(attr)
}

// IndexBy groups the full index by the value of the named attribute.
func (w *Wiki) IndexBy(attr string) (map[string][]*Page, error) {
	pages, err := w.Index()
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]*Page)
	for _, page := range pages {
		if value, ok := attrValue(page, attr); ok {
			grouped[value] = append(grouped[value], page)
		}
	}
	return grouped, nil
}

// GetByTitle returns every page whose title matches exactly.
func (w *Wiki) GetByTitle(title string) ([]*Page, error) {
	byTitle, err := w.IndexBy("title")
	if err != nil {
		return nil, err
	}
	return byTitle[title], nil
}

// Tags groups pages by tag. Each page's comma-separated tags string is
// split, trimmed and emptied of blanks before grouping.
func (w *Wiki) Tags() (map[string][]*Page, error) {
	pages, err := w.Index()
	if err != nil {
		return nil, err
	}
	tags := make(map[string][]*Page)
	for _, page := range pages {
		for _, tag := range strings.Split(page.Tags(), ",") {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				continue
			}
			tags[tag] = append(tags[tag], page)
		}
	}
	return tags, nil
}

// IndexByTag returns the pages whose tags string contains tag, in title
// order.
func (w *Wiki) IndexByTag(tag string) ([]*Page, error) {
	pages, err := w.Index()
	if err != nil {
		return nil, err
	}
	var tagged []*Page
	for _, page := range pages {
		if strings.Contains(page.Tags(), tag) {
			tagged = append(tagged, page)
		}
	}
	return tagged, nil
}

// Search matches term as a regular expression against the named attributes
// of every page, short-circuiting on the first matching attribute. Matches
// come back in index order. This is the in-memory scan; ranked lookups live
// in the index store.
func (w *Wiki) Search(term string, ignoreCase bool, attrs ...string) ([]*Page, error) {
	if len(attrs) == 0 {
		attrs = []string{"title", "tags", "body"}
	}
	pattern := term
	if ignoreCase {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile search term: %w", err)
	}

	pages, err := w.Index()
	if err != nil {
		return nil, err
	}
	var matched []*Page
	for _, page := range pages {
		for _, attr := range attrs {
			if value, ok := attrValue(page, attr); ok && re.MatchString(value) {
				matched = append(matched, page)
				break
			}
		}
	}
	return matched, nil
}
