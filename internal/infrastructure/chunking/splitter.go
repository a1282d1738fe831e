// Package chunking converts parsed documents into indexable chunks. Each
// chunk opens with a bracketed breadcrumb of the page and section headings,
// and carries the closing sentences of the previous chunk so retrieval hits
// keep their surrounding context.
package chunking

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
)

// maxChunkChars caps chunk size before splitting at paragraph boundaries.
const maxChunkChars = 6000

const overlapSentences = 2

// sentenceBoundary matches the gap between sentences: closing punctuation,
// whitespace, then a capital opening the next sentence.
var sentenceBoundary = regexp.MustCompile(`[.!?]\s+[A-Z]`)

var taxYearPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{4})[–-](\d{2,4})`),               // 2025-26 or 2025–2026
	regexp.MustCompile(`[Ff]rom\s+1\s+April\s+(\d{4})`),      // From 1 April 2025
	regexp.MustCompile(`[Tt]ax\s+year\s+(\d{4})`),            // Tax year 2025
	regexp.MustCompile(`(?i)(\d{4})/(\d{2,4})\s+tax\s+year`), // 2025/26 tax year
}

type Splitter struct {
	maxChars int
}

func NewSplitter(maxChars int) *Splitter {
	if maxChars <= 0 {
		maxChars = maxChunkChars
	}
	return &Splitter{maxChars: maxChars}
}

// Split turns a parsed document into chunks ready for embedding. Sections
// over the size cap break at paragraph boundaries, and chunk indexes run
// contiguously across the whole document.
func (s *Splitter) Split(doc *domain.ParsedDocument) []domain.ChunkData {
	var chunks []domain.ChunkData
	prevOverlap := ""

	for _, section := range doc.Sections {
		if strings.TrimSpace(section.Content) == "" {
			continue
		}

		prefix := metadataPrefix(doc.Title, section)
		taxYear := detectTaxYear(section.Heading + " " + section.Content)

		parts := []string{section.Content}
		if len(section.Content) > s.maxChars {
			parts = splitAtParagraphs(section.Content, s.maxChars)
		}

		for _, part := range parts {
			var b strings.Builder
			b.WriteString(prefix)
			b.WriteString("\n\n")
			if prevOverlap != "" {
				b.WriteString(prevOverlap)
				b.WriteString("\n\n")
			}
			b.WriteString(part)

			chunks = append(chunks, domain.ChunkData{
				Content:      b.String(),
				ChunkIndex:   len(chunks),
				SectionTitle: section.Heading,
				TaxYear:      taxYear,
			})

			prevOverlap = lastSentences(part, overlapSentences)
		}
	}
	return chunks
}

func metadataPrefix(title string, section domain.ParsedSection) string {
	if section.ParentHeading != "" {
		return fmt.Sprintf("[%s > %s > %s]", title, section.ParentHeading, section.Heading)
	}
	return fmt.Sprintf("[%s > %s]", title, section.Heading)
}

// detectTaxYear returns the first tax year mentioned in text, normalised to
// YYYY-YY, or "" when none is found.
func detectTaxYear(text string) string {
	for _, pattern := range taxYearPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		switch len(m) {
		case 3:
			year1, year2 := m[1], m[2]
			if len(year2) == 2 {
				return year1 + "-" + year2
			}
			if len(year2) == 4 {
				return year1 + "-" + year2[2:]
			}
		case 2:
			start, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			return fmt.Sprintf("%s-%02d", m[1], (start+1)%100)
		}
	}
	return ""
}

// splitAtParagraphs packs paragraphs (separated by blank lines) into parts
// no larger than maxChars. A single paragraph over the cap stays whole.
func splitAtParagraphs(text string, maxChars int) []string {
	var (
		chunks     []string
		current    []string
		currentLen int
	)
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if currentLen+len(para)+2 > maxChars && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n\n"))
			current = nil
			currentLen = 0
		}
		current = append(current, para)
		currentLen += len(para) + 2
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n\n"))
	}
	return chunks
}

// lastSentences returns the trailing n sentences of text, or "" when the
// text holds n sentences or fewer, so short parts do not echo in full.
func lastSentences(text string, n int) string {
	sentences := splitSentences(text)
	if len(sentences) <= n {
		return ""
	}
	return strings.Join(sentences[len(sentences)-n:], " ")
}

func splitSentences(text string) []string {
	locs := sentenceBoundary.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []string{text}
	}
	out := make([]string, 0, len(locs)+1)
	start := 0
	for _, loc := range locs {
		// The match spans punctuation, whitespace and the next capital:
		// the sentence ends after the punctuation and the next one begins
		// at the capital.
		out = append(out, text[start:loc[0]+1])
		start = loc[1] - 1
	}
	out = append(out, text[start:])
	return out
}
