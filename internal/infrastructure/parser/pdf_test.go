package parser

import (
	"strings"
	"testing"
)

func line(text string, size, y float64, page int) textLine {
	return textLine{text: text, fontSize: size, y: y, page: page}
}

func TestQASectionsSplitOnQuestionMarkers(t *testing.T) {
	lines := []textLine{
		line("About this guide", 10, 100, 1),
		line("Question 1 Do I need to file?", 10, 120, 1),
		line("Most people do not.", 10, 140, 1),
		line("Q2: What income counts?", 10, 160, 1),
		line("Salary and wages count.", 10, 180, 1),
		line("Question 3. When is it due?", 10, 200, 1),
		line("By 7 July.", 10, 220, 1),
	}

	sections, ok := qaSections(lines)
	if !ok {
		t.Fatalf("expected Q&A sectioning to apply")
	}
	if len(sections) != 4 {
		t.Fatalf("expected intro + 3 question sections, got %d: %+v", len(sections), sections)
	}
	if sections[0].Heading != "Introduction" || sections[0].Content != "About this guide" {
		t.Fatalf("unexpected intro section %+v", sections[0])
	}
	if sections[1].Heading != "Question 1 Do I need to file?" {
		t.Fatalf("unexpected heading %q", sections[1].Heading)
	}
	if sections[2].Heading != "Question 2 What income counts?" {
		t.Fatalf("expected Q2 normalised, got %q", sections[2].Heading)
	}
	if sections[3].Content != "By 7 July." {
		t.Fatalf("unexpected content %q", sections[3].Content)
	}
}

func TestQASectionsNeedThreeMatches(t *testing.T) {
	lines := []textLine{
		line("Question 1 One?", 10, 100, 1),
		line("Answer one.", 10, 120, 1),
		line("Question 2 Two?", 10, 140, 1),
		line("Answer two.", 10, 160, 1),
	}
	if _, ok := qaSections(lines); ok {
		t.Fatalf("expected fallback with fewer than three Q&A markers")
	}
}

func TestHeadingSectionsByFontSize(t *testing.T) {
	lines := []textLine{
		line("Cover blurb", 10, 50, 1),
		line("Who must pay", 15, 100, 1),
		line("Everyone with income.", 10, 120, 1),
		line("Due dates", 15, 140, 1),
		line("Three instalments.", 10, 160, 1),
	}

	sections := headingSections(lines, medianFontSize(lines))
	if len(sections) != 3 {
		t.Fatalf("expected intro + 2 heading sections, got %d: %+v", len(sections), sections)
	}
	if sections[0].Heading != "Introduction" {
		t.Fatalf("expected Introduction, got %q", sections[0].Heading)
	}
	if sections[1].Heading != "Who must pay" || sections[1].Content != "Everyone with income." {
		t.Fatalf("unexpected section %+v", sections[1])
	}
	if sections[2].Heading != "Due dates" {
		t.Fatalf("unexpected section %+v", sections[2])
	}
}

func TestHeadingSectionsNoHeadings(t *testing.T) {
	lines := []textLine{
		line("Flat text.", 10, 50, 1),
		line("More flat text.", 10, 70, 1),
	}
	sections := headingSections(lines, medianFontSize(lines))
	if len(sections) != 1 || sections[0].Heading != "Content" {
		t.Fatalf("expected single Content section, got %+v", sections)
	}
}

func TestMarginNoiseDetectsRepeatedFooters(t *testing.T) {
	const height = 842.0
	var lines []textLine
	for page := 1; page <= 4; page++ {
		lines = append(lines,
			line("Body paragraph text", 10, 400, page),
			line("IR3G guide", 9, 800, page),
		)
	}

	noise := marginNoise(lines, 4, height)
	if _, ok := noise["ir3g guide"]; !ok {
		t.Fatalf("expected repeated footer detected, got %v", noise)
	}
	if _, ok := noise["body paragraph text"]; ok {
		t.Fatalf("body text outside the margins must not be stripped")
	}
}

func TestMarginNoiseRequiresEnoughPages(t *testing.T) {
	lines := []textLine{
		line("IR3G guide", 9, 800, 1),
		line("IR3G guide", 9, 800, 2),
	}
	if noise := marginNoise(lines, 2, 842.0); len(noise) != 0 {
		t.Fatalf("expected no noise for a two-page document, got %v", noise)
	}
}

func TestMedianFontSize(t *testing.T) {
	odd := []textLine{line("a", 8, 0, 1), line("b", 10, 0, 1), line("c", 20, 0, 1)}
	if got := medianFontSize(odd); got != 10 {
		t.Fatalf("expected median 10, got %v", got)
	}
	even := []textLine{line("a", 8, 0, 1), line("b", 12, 0, 1)}
	if got := medianFontSize(even); got != 10 {
		t.Fatalf("expected median 10 for even count, got %v", got)
	}
	if got := medianFontSize(nil); got != 12 {
		t.Fatalf("expected default 12 for no lines, got %v", got)
	}
}

func TestStripPageNumbers(t *testing.T) {
	text := "Intro line\n12\nMore text\n 345 \nEnd"
	got := stripPageNumbers(text)
	want := "Intro line\nMore text\nEnd"
	if got != want {
		t.Fatalf("stripPageNumbers = %q, want %q", got, want)
	}
	if strings.Contains(got, "345") {
		t.Fatalf("padded page number survived: %q", got)
	}
}

func TestTitleFromURL(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://www.ird.govt.nz/-/media/project/ir/home/documents/forms-and-guides/ir3g-2025.pdf", "ir3g-2025"},
		{"https://example.org/guide.PDF", "guide"},
		{"https://example.org/", "Untitled"},
	}
	for _, tc := range cases {
		if got := titleFromURL(tc.url); got != tc.want {
			t.Fatalf("titleFromURL(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}
