package markdown

import (
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// span is the recovered byte range of an inline link construct.
type span struct {
	start     int // index of '[' (or '!' for images)
	end       int // index one past the closing ')'
	destStart int // destination range, excluding any <> wrapping
	destEnd   int
}

// recoverSpan locates the full [text](dest) construct of an inline link
// or image in the source bytes. goldmark does not record source
// positions on inline nodes, but the Text children carry exact
// segments, so the syntax around them can be re-located. Returns
// ok=false for constructs this cannot handle (reference-style links,
// links with empty text), which callers must leave untouched.
func recoverSpan(source []byte, n ast.Node, isImage bool) (span, bool) {
	first, ok := firstTextSegment(n)
	if !ok {
		return span{}, false
	}
	last, ok := lastTextSegment(n)
	if !ok {
		return span{}, false
	}

	// Walk left over emphasis/code markers to the opening bracket.
	start := first.Start - 1
	for start >= 0 && isInlineMarker(source[start]) {
		start--
	}
	if start < 0 || source[start] != '[' {
		return span{}, false
	}
	if isImage {
		if start == 0 || source[start-1] != '!' {
			return span{}, false
		}
		start--
	}

	// Walk right over markers to the closing bracket; "](" must be adjacent.
	pos := last.Stop
	for pos < len(source) && isInlineMarker(source[pos]) {
		pos++
	}
	if pos >= len(source) || source[pos] != ']' {
		return span{}, false
	}
	pos++
	if pos >= len(source) || source[pos] != '(' {
		// [text][ref] or a bare [text] shortcut reference.
		return span{}, false
	}
	pos++

	destStart, destEnd, end, ok := scanDestination(source, pos)
	if !ok {
		return span{}, false
	}

	return span{start: start, end: end, destStart: destStart, destEnd: destEnd}, true
}

// scanDestination consumes the destination (and optional title) of an
// inline link starting just after the opening paren. Returns the
// destination byte range and the index one past the closing paren.
func scanDestination(source []byte, pos int) (destStart, destEnd, end int, ok bool) {
	pos = skipSpaces(source, pos)
	if pos >= len(source) {
		return 0, 0, 0, false
	}

	if source[pos] == '<' {
		// Angle-bracketed destination: runs to the matching '>'.
		destStart = pos + 1
		i := destStart
		for i < len(source) && source[i] != '>' && source[i] != '\n' {
			if source[i] == '\\' {
				i++
			}
			i++
		}
		if i >= len(source) || source[i] != '>' {
			return 0, 0, 0, false
		}
		destEnd = i
		pos = i + 1
	} else {
		// Bare destination: runs until unbalanced ')' or whitespace.
		destStart = pos
		depth := 0
		i := pos
	loop:
		for i < len(source) {
			switch source[i] {
			case '\\':
				i++
			case '(':
				depth++
			case ')':
				if depth == 0 {
					break loop
				}
				depth--
			case ' ', '\t', '\n':
				break loop
			}
			i++
		}
		destEnd = i
		pos = i
	}

	pos = skipSpaces(source, pos)
	if pos < len(source) && (source[pos] == '"' || source[pos] == '\'') {
		quote := source[pos]
		pos++
		for pos < len(source) && source[pos] != quote {
			if source[pos] == '\\' {
				pos++
			}
			pos++
		}
		if pos >= len(source) {
			return 0, 0, 0, false
		}
		pos++
		pos = skipSpaces(source, pos)
	}

	if pos >= len(source) || source[pos] != ')' {
		return 0, 0, 0, false
	}
	return destStart, destEnd, pos + 1, true
}

func skipSpaces(source []byte, pos int) int {
	for pos < len(source) && (source[pos] == ' ' || source[pos] == '\t' || source[pos] == '\n') {
		pos++
	}
	return pos
}

func isInlineMarker(b byte) bool {
	return b == '*' || b == '_' || b == '`' || b == '~'
}

func lastTextSegment(n ast.Node) (text.Segment, bool) {
	var out text.Segment
	found := false
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, isText := c.(*ast.Text); isText {
			out = t.Segment
			found = true
		}
		return ast.WalkContinue, nil
	})
	return out, found
}
