package usecase

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
)

func TestCurrentTaxYearBeforeApril(t *testing.T) {
	year := currentTaxYear(time.Date(2026, time.February, 15, 0, 0, 0, 0, time.UTC))
	if year.Label != "2025–26" {
		t.Fatalf("expected label 2025–26, got %s", year.Label)
	}
	if year.Start != "1 April 2025" {
		t.Fatalf("expected start 1 April 2025, got %s", year.Start)
	}
	if year.End != "31 March 2026" {
		t.Fatalf("expected end 31 March 2026, got %s", year.End)
	}
}

func TestCurrentTaxYearAroundBoundary(t *testing.T) {
	march := currentTaxYear(time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC))
	if march.Label != "2025–26" {
		t.Fatalf("expected 31 March to stay in 2025–26, got %s", march.Label)
	}
	april := currentTaxYear(time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC))
	if april.Label != "2026–27" {
		t.Fatalf("expected 1 April to open 2026–27, got %s", april.Label)
	}
}

func TestSystemPromptInjectsTaxYear(t *testing.T) {
	prompt := systemPrompt(time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC))
	want := "The current NZ tax year is 2025–26 (1 April 2025 to 31 March 2026)."
	if !strings.Contains(prompt, want) {
		t.Fatalf("expected prompt to contain %q", want)
	}
	if strings.Contains(prompt, "{current_tax_year}") {
		t.Fatalf("expected all placeholders substituted")
	}
}

func TestContextBlockEmpty(t *testing.T) {
	got := contextBlock(nil)
	want := "<context>\nNo relevant documents were found for this query.\n</context>"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestContextBlockRendersMetadata(t *testing.T) {
	chunks := []domain.RetrievalResult{{
		Content:      "The top rate is 39%.",
		SectionTitle: "Individual rates",
		SourceURL:    "https://ird.govt.nz/rates",
		SourceTitle:  "Tax rates",
		SourceType:   domain.SourceIRDGuidance,
		TaxYear:      "2025-26",
	}}

	got := contextBlock(chunks)
	want := strings.Join([]string{
		"<context>",
		`<source id="1">`,
		"  <title>Tax rates</title>",
		"  <url>https://ird.govt.nz/rates</url>",
		"  <type>ird_guidance</type>",
		"  <section>Individual rates</section>",
		"  <tax_year>2025-26</tax_year>",
		"  <content>\nThe top rate is 39%.\n  </content>",
		"</source>",
		"</context>",
	}, "\n")
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestContextBlockFallsBackToURLTitle(t *testing.T) {
	chunks := []domain.RetrievalResult{{
		Content:   "PAYE info",
		SourceURL: "https://ird.govt.nz/paye",
	}}
	got := contextBlock(chunks)
	if !strings.Contains(got, "<title>https://ird.govt.nz/paye</title>") {
		t.Fatalf("expected URL used as title, got %q", got)
	}
	if strings.Contains(got, "<section>") || strings.Contains(got, "<tax_year>") {
		t.Fatalf("expected empty metadata omitted, got %q", got)
	}
}

func TestBuildAnswerMessagesOrder(t *testing.T) {
	history := []domain.ConversationTurn{{Question: "Prior Q", Answer: "Prior A"}}
	messages := buildAnswerMessages("Follow-up?", nil, history, time.Now())

	roles := make([]string, len(messages))
	for i, m := range messages {
		roles[i] = m.Role
	}
	want := []string{"system", "user", "user", "assistant", "user"}
	if len(roles) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(roles))
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Fatalf("expected role %s at position %d, got %s", want[i], i, roles[i])
		}
	}
	if !strings.HasPrefix(messages[1].Content, "<context>") {
		t.Fatalf("expected context block second, got %q", messages[1].Content)
	}
	if messages[2].Content != "Prior Q" || messages[3].Content != "Prior A" {
		t.Fatalf("expected history turns in order, got %q / %q", messages[2].Content, messages[3].Content)
	}
	if messages[len(messages)-1].Content != "Follow-up?" {
		t.Fatalf("expected question last, got %q", messages[len(messages)-1].Content)
	}
}

func TestBuildAnswerMessagesCapsHistory(t *testing.T) {
	history := make([]domain.ConversationTurn, 5)
	for i := range history {
		history[i] = domain.ConversationTurn{
			Question: fmt.Sprintf("Q%d", i+1),
			Answer:   fmt.Sprintf("A%d", i+1),
		}
	}

	messages := buildAnswerMessages("latest", nil, history, time.Now())
	if len(messages) != 9 {
		t.Fatalf("expected 9 messages with capped history, got %d", len(messages))
	}
	if messages[2].Content != "Q3" {
		t.Fatalf("expected history capped to last 3 turns, first kept was %q", messages[2].Content)
	}
}
