package parser

import (
	"bytes"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
)

const (
	// Heading font size must be this much larger than the median body text.
	headingSizeRatio = 1.2
	// Minimum Q&A matches before Q&A sectioning applies.
	minQAMatches = 3
	// Minimum pages a margin line must repeat on to count as header/footer.
	headerFooterMinPages = 3
	// A4 height in points, used when the media box is missing.
	defaultPageHeight = 842.0
)

// Q&A heading patterns used by IRD guides such as IR3G.
var qaPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^Question\s+(\d+)\b[.\s]*(.*)$`),
	regexp.MustCompile(`^Q(\d+)[.:]\s*(.*)$`),
}

var pageNumberLine = regexp.MustCompile(`^\s*\d{1,3}\s*$`)

// textLine is one merged line of page text with its font size and vertical
// position measured from the top of the page.
type textLine struct {
	text     string
	fontSize float64
	y        float64
	page     int
}

// parsePDF extracts text lines with font metadata, strips repeated
// headers/footers, then sections the document by Q&A markers or, failing
// that, by font-size heading detection.
func parsePDF(data []byte, srcURL string) (doc *domain.ParsedDocument, err error) {
	// The reader panics on malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	title := pdfMetadataTitle(reader)

	pageCount := reader.NumPage()
	height := defaultPageHeight
	var lines []textLine
	for num := 1; num <= pageCount; num++ {
		page := reader.Page(num)
		if page.V.IsNull() {
			continue
		}
		if num == 1 {
			height = pageHeight(page)
			if title == "" {
				title = largestFirstPageText(page)
			}
		}
		lines = append(lines, pageLines(page, num, height)...)
	}
	if title == "" {
		title = titleFromURL(srcURL)
	}

	if len(lines) == 0 {
		return &domain.ParsedDocument{Title: title, URL: srcURL}, nil
	}

	if noise := marginNoise(lines, pageCount, height); len(noise) > 0 {
		kept := make([]textLine, 0, len(lines))
		for _, line := range lines {
			if _, drop := noise[strings.ToLower(line.text)]; drop {
				continue
			}
			kept = append(kept, line)
		}
		lines = kept
	}

	sections, ok := qaSections(lines)
	if !ok {
		sections = headingSections(lines, medianFontSize(lines))
	}
	for i := range sections {
		sections[i].Content = stripPageNumbers(sections[i].Content)
	}

	return &domain.ParsedDocument{Title: title, URL: srcURL, Sections: sections}, nil
}

func pdfMetadataTitle(r *pdf.Reader) string {
	info := r.Trailer().Key("Info")
	if info.Kind() != pdf.Dict {
		return ""
	}
	title := info.Key("Title")
	if title.Kind() != pdf.String {
		return ""
	}
	return strings.TrimSpace(title.Text())
}

// pageHeight reads the media box, following Parent links because the box is
// often inherited from the page tree root.
func pageHeight(p pdf.Page) float64 {
	for v := p.V; !v.IsNull(); v = v.Key("Parent") {
		box := v.Key("MediaBox")
		if box.Kind() == pdf.Array && box.Len() == 4 {
			if h := box.Index(3).Float64() - box.Index(1).Float64(); h > 0 {
				return h
			}
		}
	}
	return defaultPageHeight
}

// largestFirstPageText picks the first text fragment with the largest font
// on page one, which on IRD publications is the cover title.
func largestFirstPageText(p pdf.Page) string {
	largestSize := 0.0
	largest := ""
	for _, t := range p.Content().Text {
		text := strings.TrimSpace(t.S)
		if text != "" && t.FontSize > largestSize {
			largestSize = t.FontSize
			largest = text
		}
	}
	return largest
}

func titleFromURL(srcURL string) string {
	path := srcURL
	if u, err := url.Parse(srcURL); err == nil && u.Path != "" {
		path = u.Path
	}
	name := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		name = path[i+1:]
	}
	if strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name = name[:len(name)-4]
	}
	if name == "" {
		return "Untitled"
	}
	return name
}

// pageLines groups text fragments into lines by rounded vertical position.
// PDF user space grows upward, so line y is converted to distance from the
// top of the page before return.
func pageLines(p pdf.Page, pageNum int, height float64) []textLine {
	byY := make(map[float64][]pdf.Text)
	for _, t := range p.Content().Text {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		y := math.Round(t.Y)
		byY[y] = append(byY[y], t)
	}

	ys := make([]float64, 0, len(byY))
	for y := range byY {
		ys = append(ys, y)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(ys)))

	lines := make([]textLine, 0, len(ys))
	for _, y := range ys {
		frags := byY[y]
		sort.Slice(frags, func(i, j int) bool { return frags[i].X < frags[j].X })

		var b strings.Builder
		size := 0.0
		for _, f := range frags {
			b.WriteString(f.S)
			if f.FontSize > size {
				size = f.FontSize
			}
		}
		text := strings.TrimSpace(b.String())
		if text == "" {
			continue
		}
		lines = append(lines, textLine{
			text:     text,
			fontSize: size,
			y:        height - y,
			page:     pageNum,
		})
	}
	return lines
}

// marginNoise finds text repeated at the same position in the top or bottom
// 15% of the page on enough pages to be a running header or footer.
func marginNoise(lines []textLine, pageCount int, height float64) map[string]struct{} {
	if pageCount < headerFooterMinPages {
		return nil
	}
	margin := height * 0.15

	type position struct {
		text string
		y    int
	}
	pagesAt := make(map[position]map[int]struct{})
	for _, line := range lines {
		if line.y > margin && line.y < height-margin {
			continue
		}
		pos := position{text: strings.ToLower(line.text), y: int(math.Round(line.y))}
		if pagesAt[pos] == nil {
			pagesAt[pos] = make(map[int]struct{})
		}
		pagesAt[pos][line.page] = struct{}{}
	}

	noise := make(map[string]struct{})
	for pos, pages := range pagesAt {
		if len(pages) >= headerFooterMinPages {
			noise[pos.text] = struct{}{}
		}
	}
	return noise
}

func medianFontSize(lines []textLine) float64 {
	if len(lines) == 0 {
		return 12
	}
	sizes := make([]float64, len(lines))
	for i, l := range lines {
		sizes[i] = l.fontSize
	}
	sort.Float64s(sizes)
	mid := len(sizes) / 2
	if len(sizes)%2 == 0 {
		return (sizes[mid-1] + sizes[mid]) / 2
	}
	return sizes[mid]
}

// qaSections splits on "Question N" markers. The ok result is false when
// fewer than minQAMatches markers exist and heading detection should run
// instead.
func qaSections(lines []textLine) ([]domain.ParsedSection, bool) {
	type qaStart struct {
		index   int
		heading string
	}
	var starts []qaStart
	for i, line := range lines {
		for _, pattern := range qaPatterns {
			m := pattern.FindStringSubmatch(line.text)
			if m == nil {
				continue
			}
			heading := "Question " + m[1]
			if rest := strings.TrimSpace(m[2]); rest != "" {
				heading += " " + rest
			}
			starts = append(starts, qaStart{index: i, heading: heading})
			break
		}
	}
	if len(starts) < minQAMatches {
		return nil, false
	}

	var sections []domain.ParsedSection
	if starts[0].index > 0 {
		if intro := joinLines(lines[:starts[0].index]); intro != "" {
			sections = append(sections, domain.ParsedSection{
				Heading:      "Introduction",
				Content:      intro,
				HeadingLevel: 2,
			})
		}
	}
	for i, start := range starts {
		end := len(lines)
		if i+1 < len(starts) {
			end = starts[i+1].index
		}
		if content := joinLines(lines[start.index+1 : end]); content != "" {
			sections = append(sections, domain.ParsedSection{
				Heading:      start.heading,
				Content:      content,
				HeadingLevel: 2,
			})
		}
	}
	return sections, true
}

// headingSections splits the document wherever a line's font size clears
// the heading threshold over the median body size.
func headingSections(lines []textLine, medianSize float64) []domain.ParsedSection {
	threshold := medianSize * headingSizeRatio

	type headingStart struct {
		index   int
		heading string
	}
	var starts []headingStart
	for i, line := range lines {
		if line.fontSize >= threshold {
			starts = append(starts, headingStart{index: i, heading: line.text})
		}
	}

	if len(starts) == 0 {
		if content := joinLines(lines); content != "" {
			return []domain.ParsedSection{{Heading: "Content", Content: content, HeadingLevel: 2}}
		}
		return nil
	}

	var sections []domain.ParsedSection
	if starts[0].index > 0 {
		if intro := joinLines(lines[:starts[0].index]); intro != "" {
			sections = append(sections, domain.ParsedSection{
				Heading:      "Introduction",
				Content:      intro,
				HeadingLevel: 2,
			})
		}
	}
	for i, start := range starts {
		end := len(lines)
		if i+1 < len(starts) {
			end = starts[i+1].index
		}
		if content := joinLines(lines[start.index+1 : end]); content != "" {
			sections = append(sections, domain.ParsedSection{
				Heading:      start.heading,
				Content:      content,
				HeadingLevel: 2,
			})
		}
	}
	return sections
}

// joinLines flattens lines into section text. Extracted text can carry NUL
// bytes, which Postgres rejects in text columns.
func joinLines(lines []textLine) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, l.text)
	}
	return strings.TrimSpace(strings.ReplaceAll(strings.Join(parts, "\n\n"), "\x00", ""))
}

// stripPageNumbers drops lines that are nothing but a page number.
func stripPageNumbers(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if pageNumberLine.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
