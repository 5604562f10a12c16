// Package markdown parses a single markdown file into the metadata the
// bundler needs: YAML frontmatter, outbound links with their exact byte
// spans in the source, and headings. Links carry a classified type so
// that downstream stages can tell local file references apart from
// external URLs, anchors and mail links.
package markdown

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// LinkType classifies an outbound reference by its destination.
type LinkType string

const (
	// LinkTypeLocalFile is a relative or absolute path to a file on disk
	LinkTypeLocalFile LinkType = "local_file"
	// LinkTypeAnchor is a bare fragment reference within the same document
	LinkTypeAnchor LinkType = "anchor"
	// LinkTypeExternal is a scheme-qualified URL
	LinkTypeExternal LinkType = "external"
	// LinkTypeEmail is a mailto reference
	LinkTypeEmail LinkType = "email"
	// LinkTypeUnknown is anything that could not be classified
	LinkTypeUnknown LinkType = "unknown"
)

// Link is one outbound reference extracted from a document.
//
// Start and End delimit the whole link construct in the source bytes
// (including the surrounding [text](href) syntax); DestStart and
// DestEnd delimit just the destination. A link whose span could not be
// recovered from the AST (reference-style links, empty link text) has
// Start == -1 and must not be rewritten in place.
type Link struct {
	Href    string
	Text    string
	Type    LinkType
	Line    int
	IsImage bool

	Start     int
	End       int
	DestStart int
	DestEnd   int
}

// Heading is one heading extracted from a document.
type Heading struct {
	Level int
	Text  string
	Line  int
}

// Document is the parse result for one markdown file.
type Document struct {
	Path        string
	Content     []byte
	Frontmatter map[string]interface{}
	Links       []Link
	Headings    []Heading
}

// Parse reads and parses the markdown file at path.
func Parse(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	doc, err := ParseBytes(path, content)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ParseBytes parses markdown content. The name is recorded on the
// document and used in error messages only.
func ParseBytes(name string, content []byte) (*Document, error) {
	md := goldmark.New(goldmark.WithExtensions(meta.Meta))

	pctx := parser.NewContext()
	root := md.Parser().Parse(text.NewReader(content), parser.WithContext(pctx))

	doc := &Document{
		Path:        name,
		Content:     content,
		Frontmatter: meta.Get(pctx),
	}

	lines := newLineIndex(content)

	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Link:
			doc.Links = append(doc.Links, extractLink(content, node, string(node.Destination), false, lines))
		case *ast.Image:
			doc.Links = append(doc.Links, extractLink(content, node, string(node.Destination), true, lines))
		case *ast.AutoLink:
			href := string(node.URL(content))
			link := Link{
				Href:  href,
				Text:  string(node.Label(content)),
				Type:  ClassifyHref(href),
				Start: -1,
				End:   -1,
			}
			if seg, ok := firstTextSegment(node); ok {
				link.Line = lines.lineAt(seg.Start)
			}
			doc.Links = append(doc.Links, link)
		case *ast.Heading:
			h := Heading{Level: node.Level, Text: string(nodeText(content, node))}
			if seg, ok := firstTextSegment(node); ok {
				h.Line = lines.lineAt(seg.Start)
			}
			doc.Headings = append(doc.Headings, h)
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to walk markdown AST of %s", name)
	}

	return doc, nil
}

// ClassifyHref maps a raw href to a LinkType.
func ClassifyHref(href string) LinkType {
	href = strings.TrimSpace(href)
	switch {
	case href == "":
		return LinkTypeUnknown
	case strings.HasPrefix(href, "#"):
		return LinkTypeAnchor
	case strings.HasPrefix(href, "mailto:"):
		return LinkTypeEmail
	case strings.HasPrefix(href, "//") || hasURLScheme(href):
		return LinkTypeExternal
	default:
		return LinkTypeLocalFile
	}
}

// hasURLScheme reports whether href starts with an RFC 3986 scheme
// followed by a colon. Windows drive letters ("C:\...") are a single
// character and do not qualify.
func hasURLScheme(href string) bool {
	idx := strings.Index(href, ":")
	if idx < 2 {
		return false
	}
	for i, r := range href[:idx] {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
			continue
		}
		if i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.') {
			continue
		}
		return false
	}
	return true
}

func extractLink(source []byte, n ast.Node, href string, isImage bool, lines *lineIndex) Link {
	link := Link{
		Href:    href,
		Text:    string(nodeText(source, n)),
		Type:    ClassifyHref(href),
		IsImage: isImage,
		Start:   -1,
		End:     -1,
	}

	span, ok := recoverSpan(source, n, isImage)
	if ok {
		link.Start = span.start
		link.End = span.end
		link.DestStart = span.destStart
		link.DestEnd = span.destEnd
		link.Line = lines.lineAt(span.start)
	} else if seg, found := firstTextSegment(n); found {
		link.Line = lines.lineAt(seg.Start)
	}

	return link
}

// nodeText concatenates the raw text segments under n.
func nodeText(source []byte, n ast.Node) []byte {
	var out []byte
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := c.(*ast.Text); ok {
			out = append(out, t.Segment.Value(source)...)
		}
		return ast.WalkContinue, nil
	})
	return out
}

func firstTextSegment(n ast.Node) (text.Segment, bool) {
	var seg text.Segment
	found := false
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || found {
			return ast.WalkContinue, nil
		}
		if t, ok := c.(*ast.Text); ok {
			seg = t.Segment
			found = true
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return seg, found
}

// lineIndex maps byte offsets to 1-based line numbers.
type lineIndex struct {
	starts []int
}

func newLineIndex(source []byte) *lineIndex {
	starts := []int{0}
	for i, b := range source {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{starts: starts}
}

func (li *lineIndex) lineAt(offset int) int {
	lo, hi := 0, len(li.starts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if li.starts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1
}
