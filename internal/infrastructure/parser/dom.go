package parser

import (
	"strings"

	"golang.org/x/net/html"
)

// walk visits every descendant of root in document order. The visit
// callback returns false to stop the walk early.
func walk(root *html.Node, visit func(*html.Node) bool) bool {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if !visit(c) {
			return false
		}
		if !walk(c, visit) {
			return false
		}
	}
	return true
}

// matches supports the selector forms the strip and content lists use:
// #id, .class, [attr="value"] and plain tag names.
func matches(n *html.Node, sel string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch {
	case strings.HasPrefix(sel, "#"):
		id, ok := attrVal(n, "id")
		return ok && id == sel[1:]
	case strings.HasPrefix(sel, "."):
		return hasClass(n, sel[1:])
	case strings.HasPrefix(sel, "["):
		body := strings.TrimSuffix(strings.TrimPrefix(sel, "["), "]")
		name, want, hasValue := strings.Cut(body, "=")
		got, ok := attrVal(n, name)
		if !hasValue {
			return ok
		}
		return ok && got == strings.Trim(want, `"'`)
	default:
		return n.Data == sel
	}
}

func attrVal(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasClass(n *html.Node, class string) bool {
	val, ok := attrVal(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(val) {
		if c == class {
			return true
		}
	}
	return false
}

func selectFirst(root *html.Node, sel string) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if matches(n, sel) {
			found = n
			return false
		}
		return true
	})
	return found
}

func selectAll(root *html.Node, sel string) []*html.Node {
	var found []*html.Node
	walk(root, func(n *html.Node) bool {
		if matches(n, sel) {
			found = append(found, n)
		}
		return true
	})
	return found
}

func detach(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// stripUnwanted removes matching subtrees in place, one selector at a time.
func stripUnwanted(root *html.Node, selectors []string) {
	for _, sel := range selectors {
		for _, n := range selectAll(root, sel) {
			detach(n)
		}
	}
}

// contentRoot returns the first match from the priority selectors, falling
// back to <body> and finally the document itself.
func contentRoot(doc *html.Node, selectors []string) *html.Node {
	for _, sel := range selectors {
		if n := selectFirst(doc, sel); n != nil {
			return n
		}
	}
	if body := selectFirst(doc, "body"); body != nil {
		return body
	}
	return doc
}

// strippedText concatenates the trimmed text nodes under n.
func strippedText(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(strings.TrimSpace(c.Data))
		}
		return true
	})
	return strings.TrimSpace(b.String())
}

// rawText joins every text node under n with newlines, preserving the
// original spacing inside each node.
func rawText(n *html.Node) string {
	var parts []string
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			parts = append(parts, c.Data)
		}
		return true
	})
	return strings.Join(parts, "\n")
}

// blockText extracts readable text from an element: <br> becomes a line
// break, each text node lands on its own line, blank lines are dropped and
// the remainder joins as paragraphs.
func blockText(n *html.Node) string {
	var parts []string
	walk(n, func(c *html.Node) bool {
		switch {
		case c.Type == html.TextNode:
			parts = append(parts, c.Data)
		case c.Type == html.ElementNode && c.Data == "br":
			parts = append(parts, "\n")
		}
		return true
	})

	var lines []string
	for _, line := range strings.Split(strings.Join(parts, "\n"), "\n") {
		if cleaned := strings.TrimSpace(line); cleaned != "" {
			lines = append(lines, cleaned)
		}
	}
	return strings.Join(lines, "\n\n")
}

func findHeadings(root *html.Node) []*html.Node {
	var found []*html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && (n.Data == "h2" || n.Data == "h3") {
			found = append(found, n)
		}
		return true
	})
	return found
}

func insideHeading(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		switch p.Data {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			return true
		}
	}
	return false
}

// textsBetween collects the trimmed text nodes after start and before stop
// in document order, skipping heading text and anything skip rejects. A nil
// start collects from the top of root.
func textsBetween(root *html.Node, start, stop *html.Node, skip func(string) bool) []string {
	var parts []string
	collecting := start == nil
	walk(root, func(n *html.Node) bool {
		if n == start {
			collecting = true
			return true
		}
		if stop != nil && n == stop {
			return false
		}
		if !collecting || n.Type != html.TextNode || insideHeading(n) {
			return true
		}
		text := strings.TrimSpace(n.Data)
		if text == "" || (skip != nil && skip(text)) {
			return true
		}
		parts = append(parts, text)
		return true
	})
	return parts
}

func trimTitleSuffix(text string) string {
	for _, sep := range []string{" - ", " | ", " – "} {
		if before, _, found := strings.Cut(text, sep); found {
			text = strings.TrimSpace(before)
		}
	}
	return text
}
