package parser

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
)

// sectionRules parameterise the h2/h3 walk for the two HTML page families:
// how heading text is cleaned and which stray text nodes are dropped.
type sectionRules struct {
	heading   func(*html.Node) string
	skipIntro func(string) bool
	skipBody  func(string) bool
}

// walkSections splits root on h2/h3 boundaries regardless of nesting depth.
// Text before the first heading becomes an Introduction section, and h3
// sections remember the h2 they sit under.
func walkSections(root *html.Node, rules sectionRules) []domain.ParsedSection {
	headings := findHeadings(root)

	if len(headings) == 0 {
		if text := blockText(root); text != "" {
			return []domain.ParsedSection{{Heading: "Content", Content: text, HeadingLevel: 2}}
		}
		return nil
	}

	var sections []domain.ParsedSection

	intro := strings.Join(textsBetween(root, nil, headings[0], rules.skipIntro), "\n\n")
	if intro = strings.TrimSpace(intro); intro != "" {
		sections = append(sections, domain.ParsedSection{
			Heading:      "Introduction",
			Content:      intro,
			HeadingLevel: 2,
		})
	}

	currentH2 := ""
	for i, heading := range headings {
		level := 2
		if heading.Data == "h3" {
			level = 3
		}
		headingText := rules.heading(heading)
		if level == 2 {
			currentH2 = headingText
		}

		var next *html.Node
		if i+1 < len(headings) {
			next = headings[i+1]
		}

		content := strings.TrimSpace(strings.Join(textsBetween(root, heading, next, rules.skipBody), " "))
		if content == "" {
			continue
		}

		parent := ""
		if level == 3 {
			parent = currentH2
		}
		sections = append(sections, domain.ParsedSection{
			Heading:       headingText,
			Content:       content,
			HeadingLevel:  level,
			ParentHeading: parent,
		})
	}

	return sections
}
