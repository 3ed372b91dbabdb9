package constants

import (
	"strings"
)

type Category string

const (
	Invoice        Category = "Invoice"
	Receipt        Category = "Receipt"
	Contract       Category = "Contract"
	Report         Category = "Report"
	Correspondence Category = "Correspondence"
	Form           Category = "Form"
	Presentation   Category = "Presentation"
	Legal          Category = "Legal"
	Financial      Category = "Financial"
	Technical      Category = "Technical"
	Other          Category = "Other"
)

var allCategories = []Category{
	Invoice,
	Receipt,
	Contract,
	Report,
	Correspondence,
	Form,
	Presentation,
	Legal,
	Financial,
	Technical,
	Other,
}

func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

func Canonicalize(input string) (Category, bool) {
	if input == "" {
		return Other, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	// synonyms map
	synonyms := map[string]Category{
		"bill":          Invoice,
		"statement":     Financial,
		"bank":          Financial,
		"agreement":     Contract,
		"nda":           Contract,
		"letter":        Correspondence,
		"email":         Correspondence,
		"memo":          Correspondence,
		"slides":        Presentation,
		"deck":          Presentation,
		"manual":        Technical,
		"specification": Technical,
		"datasheet":     Technical,
		"application":   Form,
		"questionnaire": Form,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	// check if it matches any category string
	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}

	return Other, false
}
