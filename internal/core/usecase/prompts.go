package usecase

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/legal-intake/internal/core/domain"
)

const (
	preprocessTextLimit     = 8000
	classificationTextLimit = 5000
	validationTextLimit     = 5000
	extractionExcerptLimit  = 2000
	textPreviewLimit        = 500
	maxHintDates            = 5
	maxHintEntities         = 5
)

func buildPreprocessPrompt(text, label string) string {
	if strings.TrimSpace(label) == "" {
		label = "document"
	}
	return fmt.Sprintf(`You pre-analyze legal documents for a law firm.
Extract structured information from the %s below.
Return one JSON object with exactly these keys:
{"entities":{"people":[],"organizations":[],"locations":[],"amounts":[]},
 "dates_and_deadlines":[{"date":"YYYY-MM-DD","description":"","importance":"high|medium|low"}],
 "key_facts":[],
 "document_metadata":{"suggested_type":"","language":"","topic":"","sentiment":""}}
No markdown, no commentary.

Text:
%s`, label, truncateRunes(text, preprocessTextLimit))
}

func buildDeadlinePrompt(text string, today time.Time, hints *domain.HintPayload) string {
	var hintBlock strings.Builder
	if hints != nil && len(hints.DatesAndDeadlines) > 0 {
		hintBlock.WriteString("\nDates already spotted by a preliminary review (cross-check, do not copy blindly):\n")
		for i, d := range hints.DatesAndDeadlines {
			if i == maxHintDates {
				break
			}
			fmt.Fprintf(&hintBlock, "- %s: %s (%s importance)\n", d.Date, d.Description, d.Importance)
		}
	}

	return fmt.Sprintf(`You extract legal deadlines from documents written in Spanish or English.
Today is %s. Resolve relative expressions against today using calendar days
(for example "dentro de 20 días" or "in 20 days" means today + 20 days).
Return only this JSON shape and nothing else:
{"deadlines":[{"date":"YYYY-MM-DD","description":"what must happen by this date"}]}
Return {"deadlines":[]} when the text has no deadlines.
%s
Text:
%s`, today.Format(domain.DateLayout), hintBlock.String(), text)
}

func buildClassificationPrompt(filename, text string, metadata map[string]any, hints *domain.HintPayload) string {
	types := make([]string, 0, len(domain.DocTypes))
	for _, t := range domain.DocTypes {
		types = append(types, string(t))
	}

	var hintBlock strings.Builder
	if hints != nil {
		hintBlock.WriteString("\nPreliminary review:\n")
		fmt.Fprintf(&hintBlock, "suggested_type: %s\n", hints.DocumentMetadata.SuggestedType)
		fmt.Fprintf(&hintBlock, "topic: %s\n", hints.DocumentMetadata.Topic)
		fmt.Fprintf(&hintBlock, "people: %s\n", strings.Join(firstN(hints.Entities.People, maxHintEntities), ", "))
		fmt.Fprintf(&hintBlock, "organizations: %s\n", strings.Join(firstN(hints.Entities.Organizations, maxHintEntities), ", "))
	}

	metaBlock := ""
	if len(metadata) > 0 {
		raw, _ := json.Marshal(metadata)
		metaBlock = "\nMetadata: " + string(raw) + "\n"
	}

	return fmt.Sprintf(`You classify documents for a law firm.
Filename: %s
%s%s
Return one JSON object with keys:
doc_type (one of: %s), matter_id (string or null), tags (array of strings),
key_entities {people, organizations, dates, amounts: arrays of strings},
summary (string), confidence (number from 0 to 1).
No markdown, no extra keys.

Document:
%s`, filename, metaBlock, hintBlock.String(), strings.Join(types, ", "), truncateRunes(text, classificationTextLimit))
}

func buildClassificationAuditPrompt(cls domain.Classification, text string, hints *domain.HintPayload) string {
	clsJSON, _ := json.Marshal(cls)
	hintJSON := []byte("null")
	if hints != nil {
		hintJSON, _ = json.Marshal(hints)
	}
	return fmt.Sprintf(`You audit another model's document classification against the source text.
Classification:
%s

Preliminary extraction:
%s

%s

Source text:
%s`, clsJSON, hintJSON, auditResponseContract, truncateRunes(text, validationTextLimit))
}

func buildDeadlineAuditPrompt(deadlines []domain.Deadline, text string, hints *domain.HintPayload) string {
	type auditedDeadline struct {
		ID          int64  `json:"id"`
		Date        string `json:"date"`
		Description string `json:"description"`
	}
	items := make([]auditedDeadline, 0, len(deadlines))
	for _, d := range deadlines {
		items = append(items, auditedDeadline{ID: d.ID, Date: d.Date.Format(domain.DateLayout), Description: d.Description})
	}
	deadlinesJSON, _ := json.Marshal(items)

	hintDatesJSON := []byte("[]")
	if hints != nil && hints.DatesAndDeadlines != nil {
		hintDatesJSON, _ = json.Marshal(hints.DatesAndDeadlines)
	}
	return fmt.Sprintf(`You audit deadlines another model extracted from a legal document.
Extracted deadlines:
%s

Dates found by a preliminary review:
%s

%s

Source text:
%s`, deadlinesJSON, hintDatesJSON, auditResponseContract, truncateRunes(text, validationTextLimit))
}

const auditResponseContract = `Return one JSON object:
{"validation_status":"validated|warning|error","confidence_score":0.0,
 "feedback":"","verified_items":[],"discrepancies":[],"missing_information":[]}
No markdown.`

var analysisTemplates = map[domain.AnalysisType]string{
	domain.AnalysisDeadlineRisk: `You are a legal operations analyst. Assess deadline risk for the firm
from these aggregate figures (no client documents are included):
%s
Focus on overdue exposure, short-horizon concentration and workload peaks.`,
	domain.AnalysisCaseloadHealth: `You are a legal operations analyst. Assess caseload health for the firm
from these aggregate figures:
%s
Focus on capacity per client and attorney, case age and intake trend.`,
	domain.AnalysisProfitabilityTrends: `You are a legal finance analyst. Assess profitability trends for the firm
from these aggregate figures:
%s
Focus on realization, margin drivers and revenue concentration.`,
}

func buildAnalysisPrompt(kind domain.AnalysisType, input map[string]any) string {
	inputJSON, _ := json.MarshalIndent(input, "", "  ")
	return fmt.Sprintf(analysisTemplates[kind], inputJSON) + `
Return one JSON object:
{"key_insights":[],"action_items":[],"metrics":{"name":0.0},"summary":"",
 "risk_level":"low|medium|high|critical","confidence":0.0}
No markdown.`
}

func firstN(values []string, n int) []string {
	if len(values) <= n {
		return values
	}
	return values[:n]
}
