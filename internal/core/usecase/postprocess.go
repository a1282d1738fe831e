package usecase

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
)

// Trailing Sources/References block, with optional bold or heading markers,
// followed by bullet or numbered lines running to the end of the answer.
var trailingSourcesRE = regexp.MustCompile(
	`(?i)\n{1,3}(?:\*{0,2}#{0,3}\s*)(?:Sources?|References?)(?:\s*:?\s*\*{0,2})\n(?:[-*\d].*\n?)*\z`,
)

var bareURLRE = regexp.MustCompile(`https?://[^\s)\]>,]+`)

var markdownLinkRE = regexp.MustCompile(`\[.+?\]\(https?://[^\s)]+\)`)

// stripTrailingSources removes a trailing source list the model generated
// despite instructions. Clients render their own sources section from the
// retrieval results, so a model-written duplicate is unwanted.
func stripTrailingSources(answer string) string {
	return strings.TrimRightFunc(trailingSourcesRE.ReplaceAllString(answer, ""), unicode.IsSpace)
}

// linkifyBareURLs converts bare URLs into markdown links, using source titles
// as link text when the URL matches a cited source. URLs already inside
// [text](url) markdown are left alone.
func linkifyBareURLs(answer string, sources []domain.SourceReference) string {
	matches := bareURLRE.FindAllStringIndex(answer, -1)
	if len(matches) == 0 {
		return answer
	}

	titles := make(map[string]string, len(sources))
	for _, src := range sources {
		if src.Title != "" {
			titles[src.URL] = src.Title
		}
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		// A "(" or "[" right before the URL means it is already half of a
		// markdown link.
		if start > 0 && (answer[start-1] == '(' || answer[start-1] == '[') {
			continue
		}

		url := answer[start:end]
		trimmed := strings.TrimRight(url, ".")
		title, ok := titles[trimmed]
		if !ok {
			title = trimmed
		}

		b.WriteString(answer[last:start])
		b.WriteString("[")
		b.WriteString(title)
		b.WriteString("](")
		b.WriteString(trimmed)
		b.WriteString(")")
		b.WriteString(url[len(trimmed):])
		last = end
	}
	b.WriteString(answer[last:])
	return b.String()
}

// ensureCitations appends the primary source as a footer when the answer
// contains no markdown links at all. The model is prompted to cite inline;
// this is the safety net for when it does not.
func ensureCitations(answer string, sources []domain.SourceReference) string {
	if len(sources) == 0 || markdownLinkRE.MatchString(answer) {
		return answer
	}

	primary := sources[0]
	title := primary.Title
	if title == "" {
		title = primary.URL
	}
	return answer + "\n\nFor more details, see [" + title + "](" + primary.URL + ")."
}
