package classify

import (
	"fmt"
	"strings"
)

const maxPromptChars = 6000

// BuildSystemPrompt composes the system message with the allowed
// categories, a selection rubric, and strict-but-practical formatting
// rules.
func BuildSystemPrompt(req ClassifyRequest) string {
	var catLine string
	if len(req.AllowedCategories) > 0 {
		catLine = "You MUST include a 'category' and it MUST be exactly one of the allowed enum. " +
			"If uncertain, choose 'Other'. Allowed categories (enum): " +
			strings.Join(req.AllowedCategories, ", ") + ". "
	} else {
		catLine = "You MUST include a 'category' that is a short, sensible label. If uncertain, use 'Other'. "
	}

	parts := []string{
		"You are a document classifier. Return ONLY JSON that matches the provided JSON Schema.",
		catLine,
		"Category selection rubric: " + buildCategoryRubric(req.AllowedCategories),
		"Put 3 to 8 short lowercase keywords under 'tags' that describe the document's subject matter.",
		"For 'summary', write one or two plain sentences describing what the document is. Avoid personal names and addresses.",
		"Set 'language' to the ISO 639-1 code of the document's main language.",
		"If the document states its own date, put it under 'document_date' as YYYY-MM-DD; otherwise omit it.",
		"Set 'confidence' between 0 and 1 for how certain the classification is.",
		"Never output null. If a field is not present, omit it.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the extracted pages with filename and folder
// hints. Long documents are truncated; the opening pages carry the
// classification signal.
func BuildUserPrompt(req ClassifyRequest) string {
	var b strings.Builder
	if f := strings.TrimSpace(req.FilenameHint); f != "" {
		b.WriteString("Filename: ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	if f := strings.TrimSpace(req.FolderHint); f != "" {
		b.WriteString("Folder path: ")
		b.WriteString(f)
		b.WriteString("\n")
	}

	b.WriteString("\nExtracted text:\n")
	remaining := maxPromptChars
	for _, p := range req.Pages {
		if remaining <= 0 {
			b.WriteString("\n…(truncated)")
			break
		}
		text := strings.TrimSpace(p.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "--- page %d ---\n", p.PageNumber)
		if len(text) > remaining {
			b.WriteString(text[:remaining])
			b.WriteString("\n…(truncated)")
			break
		}
		b.WriteString(text)
		b.WriteString("\n")
		remaining -= len(text)
	}
	return b.String()
}

// buildCategoryRubric emits short, high-precision rules only for
// categories present in the enum, with tie-breakers for buckets that
// are easy to confuse.
func buildCategoryRubric(allowed []string) string {
	if len(allowed) == 0 {
		return "Use the content to decide: bills requesting payment -> 'Invoice'; proof of a completed payment -> 'Receipt'; " +
			"signed obligations -> 'Contract'; structured findings or analyses -> 'Report'; letters and emails -> 'Correspondence'; " +
			"fill-in documents -> 'Form'; slide decks -> 'Presentation'; otherwise -> 'Other'. " +
			"When torn between two, choose the narrower, more specific one; if still unsure, choose 'Other'."
	}

	defs := map[string]string{
		"Invoice":        "A request for payment with line items, amounts due, and payment terms.",
		"Receipt":        "Proof of a completed payment (store receipts, payment confirmations).",
		"Contract":       "A signed or signable agreement creating obligations (leases, NDAs, terms of service).",
		"Report":         "Structured findings, analyses, or periodic summaries (annual reports, audits, studies).",
		"Correspondence": "Letters, emails, and memos addressed to a person or organization.",
		"Form":           "A fill-in document with fields to complete (applications, questionnaires, claims).",
		"Presentation":   "Slide decks and pitch materials.",
		"Legal":          "Court filings, statutes, legal opinions. Not ordinary contracts.",
		"Financial":      "Bank statements, balance sheets, tax filings. Not invoices or receipts.",
		"Technical":      "Manuals, specifications, datasheets, API documentation.",
		"Other":          "Use only when nothing else applies unambiguously.",
	}

	var parts []string
	for _, c := range allowed {
		if d, ok := defs[c]; ok {
			parts = append(parts, c+": "+d)
		}
	}
	if hasAll(allowed, "Invoice", "Receipt") {
		parts = append(parts, "Tie-breaker: money still owed -> 'Invoice'; money already paid -> 'Receipt'.")
	}
	if hasAll(allowed, "Contract", "Legal") {
		parts = append(parts, "Tie-breaker: agreements between parties -> 'Contract'; court or statutory material -> 'Legal'.")
	}
	if hasAll(allowed, "Report", "Financial") {
		parts = append(parts, "Tie-breaker: prose analysis -> 'Report'; tabular account data -> 'Financial'.")
	}

	if len(parts) == 0 {
		return "Use the content to pick the closest category; if uncertain, choose 'Other'."
	}
	return strings.Join(parts, " | ")
}

func hasAll(list []string, a, b string) bool {
	foundA, foundB := false, false
	for _, x := range list {
		if x == a {
			foundA = true
		} else if x == b {
			foundB = true
		}
	}
	return foundA && foundB
}
