package usecase

import (
	"testing"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
)

func makeSources() []domain.SourceReference {
	return []domain.SourceReference{
		{URL: "https://www.ird.govt.nz/income-tax/rates", Title: "Tax rates for individuals"},
		{URL: "https://www.ird.govt.nz/kiwisaver", Title: "KiwiSaver", SectionTitle: "Contributions"},
	}
}

func TestStripTrailingSourcesPlain(t *testing.T) {
	answer := "The tax rate is 33%.\n\nSources:\n- IRD: Tax rates for individuals\n- Income Tax Act 2007, s YA 1\n"
	got := stripTrailingSources(answer)
	if got != "The tax rate is 33%." {
		t.Fatalf("expected sources block removed, got %q", got)
	}
}

func TestStripTrailingSourcesBold(t *testing.T) {
	answer := "The tax rate is 33%.\n\n**Sources:**\n- IRD: Tax rates\n"
	got := stripTrailingSources(answer)
	if got != "The tax rate is 33%." {
		t.Fatalf("expected bold sources block removed, got %q", got)
	}
}

func TestStripTrailingSourcesHeading(t *testing.T) {
	answer := "The tax rate is 33%.\n\n### Sources\n- IRD: Tax rates\n"
	got := stripTrailingSources(answer)
	if got != "The tax rate is 33%." {
		t.Fatalf("expected heading sources block removed, got %q", got)
	}
}

func TestStripTrailingReferences(t *testing.T) {
	answer := "The tax rate is 33%.\n\nReferences:\n- Some reference\n"
	got := stripTrailingSources(answer)
	if got != "The tax rate is 33%." {
		t.Fatalf("expected references block removed, got %q", got)
	}
}

func TestStripTrailingSourcesNumbered(t *testing.T) {
	answer := "The tax rate is 33%.\n\nSources:\n1. IRD: Tax rates\n2. Income Tax Act\n"
	got := stripTrailingSources(answer)
	if got != "The tax rate is 33%." {
		t.Fatalf("expected numbered sources block removed, got %q", got)
	}
}

func TestStripTrailingSourcesPreservesBody(t *testing.T) {
	answer := "The Sources: of information are varied.\n\nHere is the answer."
	if got := stripTrailingSources(answer); got != answer {
		t.Fatalf("expected body untouched, got %q", got)
	}
}

func TestStripTrailingSourcesNoBlock(t *testing.T) {
	answer := "The tax rate is 33%."
	if got := stripTrailingSources(answer); got != answer {
		t.Fatalf("expected answer unchanged, got %q", got)
	}
}

func TestLinkifyBareURLWithKnownSource(t *testing.T) {
	answer := "See https://www.ird.govt.nz/income-tax/rates for details."
	got := linkifyBareURLs(answer, makeSources())
	want := "See [Tax rates for individuals](https://www.ird.govt.nz/income-tax/rates) for details."
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestLinkifyBareURLUnknownSource(t *testing.T) {
	answer := "Check https://www.ird.govt.nz/other-page for more."
	got := linkifyBareURLs(answer, makeSources())
	want := "Check [https://www.ird.govt.nz/other-page](https://www.ird.govt.nz/other-page) for more."
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestLinkifyPreservesExistingMarkdownLinks(t *testing.T) {
	answer := "See [Tax rates](https://www.ird.govt.nz/income-tax/rates) for details."
	if got := linkifyBareURLs(answer, makeSources()); got != answer {
		t.Fatalf("expected existing link untouched, got %q", got)
	}
}

func TestLinkifyPreservesURLAsLinkText(t *testing.T) {
	answer := "See [https://www.ird.govt.nz/kiwisaver](https://www.ird.govt.nz/kiwisaver) for details."
	if got := linkifyBareURLs(answer, makeSources()); got != answer {
		t.Fatalf("expected link text left alone, got %q", got)
	}
}

func TestLinkifyNoURLs(t *testing.T) {
	answer := "The tax rate is 33% for income over $70,000."
	if got := linkifyBareURLs(answer, makeSources()); got != answer {
		t.Fatalf("expected answer unchanged, got %q", got)
	}
}

func TestLinkifyEmptySources(t *testing.T) {
	answer := "See https://www.ird.govt.nz/income-tax/rates for details."
	got := linkifyBareURLs(answer, nil)
	want := "See [https://www.ird.govt.nz/income-tax/rates](https://www.ird.govt.nz/income-tax/rates) for details."
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestLinkifyKeepsSentencePunctuation(t *testing.T) {
	answer := "Visit https://www.ird.govt.nz/kiwisaver."
	got := linkifyBareURLs(answer, makeSources())
	want := "Visit [KiwiSaver](https://www.ird.govt.nz/kiwisaver)."
	if got != want {
		t.Fatalf("expected trailing period kept outside the link, got %q", got)
	}
}

func TestEnsureCitationsAppendsFooter(t *testing.T) {
	answer := "The top rate is 39%."
	got := ensureCitations(answer, makeSources())
	want := "The top rate is 39%.\n\nFor more details, see [Tax rates for individuals](https://www.ird.govt.nz/income-tax/rates)."
	if got != want {
		t.Fatalf("expected citation footer, got %q", got)
	}
}

func TestEnsureCitationsNoOpWithExistingLink(t *testing.T) {
	answer := "The top rate is 39% ([Tax rates](https://www.ird.govt.nz/income-tax/rates))."
	if got := ensureCitations(answer, makeSources()); got != answer {
		t.Fatalf("expected answer unchanged, got %q", got)
	}
}

func TestEnsureCitationsNoOpWithoutSources(t *testing.T) {
	answer := "The top rate is 39%."
	if got := ensureCitations(answer, nil); got != answer {
		t.Fatalf("expected answer unchanged, got %q", got)
	}
}

func TestEnsureCitationsFallsBackToURL(t *testing.T) {
	sources := []domain.SourceReference{{URL: "https://www.ird.govt.nz/paye"}}
	got := ensureCitations("Check your PAYE.", sources)
	want := "Check your PAYE.\n\nFor more details, see [https://www.ird.govt.nz/paye](https://www.ird.govt.nz/paye)."
	if got != want {
		t.Fatalf("expected URL used as link text, got %q", got)
	}
}
