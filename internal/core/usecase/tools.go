package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mkaretu/nz-tax-assistant/internal/core/domain"
	"github.com/mkaretu/nz-tax-assistant/internal/core/ports"
	"github.com/mkaretu/nz-tax-assistant/internal/core/tax"
)

const (
	toolSearchDocuments = "search_tax_documents"
	toolIncomeTax       = "calculate_income_tax"
	toolPAYE            = "calculate_paye"
	toolStudentLoan     = "calculate_student_loan_repayment"
	toolACCLevy         = "calculate_acc_levy"
)

const defaultToolSearchTopK = 5

// toolDefinitions declares every tool offered to the model. Schemas are raw
// JSON so the completion gateway and the MCP server expose the same contract
// without re-encoding.
var toolDefinitions = []domain.ToolDefinition{
	{
		Name:  toolSearchDocuments,
		Label: "Document search",
		Description: "Search the NZ tax document corpus for information on a specific topic. " +
			"Use this when the provided context doesn't contain enough information to answer " +
			"the user's question, or when you need to look up a specific section, form, or tax concept.",
		Schema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {
      "type": "string",
      "description": "A natural language search query. Be specific — include section references (e.g., 'section CE 1'), form numbers (e.g., 'IR3'), tax codes (e.g., 'tax code SL'), or specific concepts (e.g., 'independent earner tax credit eligibility')."
    },
    "source_type_filter": {
      "type": "string",
      "enum": ["ird_guidance", "legislation", "tib", "guide_pdf", "interpretation_statement", "qwba", "fact_sheet", "operational_statement"],
      "description": "Optional: filter results to a specific source type. Use 'legislation' when the user asks about the law itself, 'ird_guidance' for practical how-to questions."
    },
    "tax_year_filter": {
      "type": "string",
      "description": "Optional: filter results to a specific tax year, e.g., '2025-26'. Use when the user is asking about a specific year."
    }
  },
  "required": ["query"]
}`),
	},
	{
		Name:  toolIncomeTax,
		Label: "Income tax calculator",
		Description: "Calculate NZ income tax for a given annual income with a bracket-by-bracket " +
			"breakdown. Use when a user asks 'how much tax on $X' or 'what is my tax on $X income'.",
		Schema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "annual_income": {
      "type": "number",
      "description": "Gross annual income in NZD."
    },
    "tax_year": {
      "type": "string",
      "description": "Tax year, e.g. '2025-26'. Defaults to the current tax year if not specified."
    }
  },
  "required": ["annual_income"]
}`),
	},
	{
		Name:  toolPAYE,
		Label: "PAYE calculator",
		Description: "Calculate PAYE deductions per pay period, including income tax, ACC earner's levy, " +
			"and optional student loan repayment. Use when asked about take-home pay, net pay, or PAYE " +
			"deductions. Limitations: assumes tax code M or ME (standard employee), does not include " +
			"KiwiSaver employee/employer contributions, and does not handle secondary employment tax codes.",
		Schema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "annual_income": {
      "type": "number",
      "description": "Gross annual income in NZD."
    },
    "pay_period": {
      "type": "string",
      "enum": ["weekly", "fortnightly", "four-weekly", "monthly"],
      "description": "Pay frequency. Defaults to 'monthly'."
    },
    "has_student_loan": {
      "type": "boolean",
      "description": "Whether to include student loan repayment."
    },
    "tax_year": {
      "type": "string",
      "description": "Tax year, e.g. '2025-26'. Defaults to the current tax year if not specified."
    }
  },
  "required": ["annual_income"]
}`),
	},
	{
		Name:  toolStudentLoan,
		Label: "Student loan calculator",
		Description: "Calculate annual student loan repayment amount. Use when asked about student " +
			"loan repayments or deductions.",
		Schema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "annual_income": {
      "type": "number",
      "description": "Gross annual income in NZD."
    },
    "tax_year": {
      "type": "string",
      "description": "Tax year, e.g. '2025-26'. Defaults to the current tax year if not specified."
    }
  },
  "required": ["annual_income"]
}`),
	},
	{
		Name:  toolACCLevy,
		Label: "ACC levy calculator",
		Description: "Calculate ACC earner's levy for a given annual income. Use when asked about " +
			"ACC levies or contributions.",
		Schema: json.RawMessage(`{
  "type": "object",
  "properties": {
    "annual_income": {
      "type": "number",
      "description": "Gross annual income in NZD."
    },
    "tax_year": {
      "type": "string",
      "description": "Tax year, e.g. '2025-26'. Defaults to the current tax year if not specified."
    }
  },
  "required": ["annual_income"]
}`),
	},
}

// ToolDefinitions returns the tool set offered to the model. The slice is
// shared; callers must not mutate it.
func ToolDefinitions() []domain.ToolDefinition {
	return toolDefinitions
}

func toolLabel(name string) string {
	for _, def := range toolDefinitions {
		if def.Name == name {
			return def.Label
		}
	}
	return name
}

type searchToolArgs struct {
	Query            string `json:"query"`
	SourceTypeFilter string `json:"source_type_filter"`
	TaxYearFilter    string `json:"tax_year_filter"`
}

type incomeTaxToolArgs struct {
	AnnualIncome float64 `json:"annual_income"`
	TaxYear      string  `json:"tax_year"`
}

type payeToolArgs struct {
	AnnualIncome   float64 `json:"annual_income"`
	PayPeriod      string  `json:"pay_period"`
	HasStudentLoan bool    `json:"has_student_loan"`
	TaxYear        string  `json:"tax_year"`
}

// ToolDispatcher executes model-requested tool calls against the retriever
// and the tax calculators.
type ToolDispatcher struct {
	retriever  ports.DocumentSearcher
	searchTopK int
}

func NewToolDispatcher(retriever ports.DocumentSearcher, searchTopK int) *ToolDispatcher {
	if searchTopK <= 0 {
		searchTopK = defaultToolSearchTopK
	}
	return &ToolDispatcher{retriever: retriever, searchTopK: searchTopK}
}

// Execute runs one tool call. The payload is what goes back to the model as
// the tool result; chunks are the raw retrieval hits of a document search,
// kept out of the payload so the orchestrator can track sources without
// feeding the model duplicate data. Domain errors (unknown tool, invalid
// calculator input) become error payloads so the model can adapt; malformed
// argument JSON is a protocol failure and returns a Go error instead.
func (d *ToolDispatcher) Execute(ctx context.Context, call domain.ToolCall) (any, []domain.RetrievalResult, error) {
	switch call.Name {
	case toolSearchDocuments:
		var args searchToolArgs
		if err := unmarshalToolArgs(call, &args); err != nil {
			return nil, nil, err
		}
		return d.executeSearch(ctx, args)

	case toolIncomeTax:
		var args incomeTaxToolArgs
		if err := unmarshalToolArgs(call, &args); err != nil {
			return nil, nil, err
		}
		result, err := tax.IncomeTax(args.AnnualIncome, args.TaxYear)
		return calculatorPayload(result, err), nil, nil

	case toolPAYE:
		var args payeToolArgs
		if err := unmarshalToolArgs(call, &args); err != nil {
			return nil, nil, err
		}
		result, err := tax.PAYE(args.AnnualIncome, args.PayPeriod, args.HasStudentLoan, args.TaxYear)
		return calculatorPayload(result, err), nil, nil

	case toolStudentLoan:
		var args incomeTaxToolArgs
		if err := unmarshalToolArgs(call, &args); err != nil {
			return nil, nil, err
		}
		result, err := tax.StudentLoanRepayment(args.AnnualIncome, args.TaxYear)
		return calculatorPayload(result, err), nil, nil

	case toolACCLevy:
		var args incomeTaxToolArgs
		if err := unmarshalToolArgs(call, &args); err != nil {
			return nil, nil, err
		}
		result, err := tax.ACCLevy(args.AnnualIncome, args.TaxYear)
		return calculatorPayload(result, err), nil, nil
	}

	return map[string]string{"error": fmt.Sprintf("Unknown tool: %s", call.Name)}, nil, nil
}

func (d *ToolDispatcher) executeSearch(ctx context.Context, args searchToolArgs) (any, []domain.RetrievalResult, error) {
	opts := domain.SearchOptions{
		TopK: d.searchTopK,
		Filter: domain.SearchFilter{
			SourceType: domain.SourceType(args.SourceTypeFilter),
			TaxYear:    args.TaxYearFilter,
		},
	}
	hits, err := d.retriever.Search(ctx, args.Query, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("search tool: %w", err)
	}

	view := make([]map[string]string, 0, len(hits))
	for _, hit := range hits {
		title := hit.SourceTitle
		if title == "" {
			title = hit.SourceURL
		}
		view = append(view, map[string]string{
			"title":   title,
			"url":     hit.SourceURL,
			"section": hit.SectionTitle,
			"content": hit.Content,
		})
	}
	return map[string]any{"chunks": view}, hits, nil
}

func unmarshalToolArgs(call domain.ToolCall, into any) error {
	if err := json.Unmarshal([]byte(call.Arguments), into); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "dispatch tool",
			fmt.Errorf("tool %s arguments: %w", call.Name, err))
	}
	return nil
}

func calculatorPayload(result any, err error) any {
	if err != nil {
		return map[string]string{"error": err.Error()}
	}
	return result
}
