package classify

import (
	"context"
	"slices"
	"strings"

	"github.com/poiesic/medingest/core"
)

var _ Classifier = (*KeywordClassifier)(nil)

// DefaultKeywords maps each built-in subject area to word prefixes that
// indicate it. A prefix matches at the start of a word.
var DefaultKeywords = map[string][]string{
	"cardiology":       {"cardiolog", "cardiovascular", "cardiac", "heart", "coronary", "myocardial", "atrial"},
	"dermatology":      {"dermatolog", "skin", "psoriasis", "eczema", "melanoma", "cutaneous"},
	"endocrinology":    {"endocrin", "diabetes", "diabetic", "hormone", "thyroid", "insulin", "obesity"},
	"gastroenterology": {"gastroenterolog", "digestive", "gastrointestinal", "colitis", "crohn", "hepatic", "liver"},
	"geriatrics":       {"geriatric", "elderly", "aging", "older adult", "frailty", "dementia"},
	"immunology":       {"immunolog", "immune", "autoimmune", "antibod", "vaccin", "allerg"},
	"nephrology":       {"nephrolog", "kidney", "renal", "dialysis", "glomerul"},
	"neurology":        {"neurolog", "brain", "stroke", "epilep", "parkinson", "alzheimer", "multiple sclerosis"},
	"oncology":         {"oncolog", "cancer", "neoplasm", "tumor", "tumour", "carcinoma", "lymphoma", "leukemia"},
	"ophthalmology":    {"ophthalmolog", "eye", "vision", "retina", "glaucoma", "cataract", "macular"},
	"pediatrics":       {"pediatric", "paediatric", "child", "infant", "neonat", "adolescen"},
	"psychiatry":       {"psychiatr", "mental health", "depressi", "anxiety", "schizophreni", "bipolar"},
	"pulmonology":      {"pulmonolog", "lung", "pulmonary", "asthma", "copd", "respiratory"},
	"rheumatology":     {"rheumatolog", "arthritis", "lupus", "gout", "vasculitis"},
}

// KeywordClassifier matches subject keywords against MeSH terms, keywords
// and the title. The record's subject hint is always included.
type KeywordClassifier struct {
	keywords map[string][]string
	areas    []string
}

// NewKeywordClassifier creates a classifier over keywords. A nil map uses DefaultKeywords.
func NewKeywordClassifier(keywords map[string][]string) *KeywordClassifier {
	if keywords == nil {
		keywords = DefaultKeywords
	}
	normalized := make(map[string][]string, len(keywords))
	for area, words := range keywords {
		key := core.NormalizePartitionName(area)
		for _, w := range words {
			normalized[key] = append(normalized[key], core.NormalizeTitle(w))
		}
	}
	areas := make([]string, 0, len(normalized))
	for area := range normalized {
		areas = append(areas, area)
	}
	slices.Sort(areas)
	return &KeywordClassifier{keywords: normalized, areas: areas}
}

// Classify returns matching areas in name order, hint first.
func (c *KeywordClassifier) Classify(ctx context.Context, r *core.Record) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parts := make([]string, 0, 2+len(r.MeSHTerms)+len(r.Keywords))
	parts = append(parts, r.Title)
	parts = append(parts, r.MeSHTerms...)
	parts = append(parts, r.Keywords...)
	text := " " + core.NormalizeTitle(strings.Join(parts, " ")) + " "

	var subjects []string
	if r.SubjectHint != "" {
		subjects = append(subjects, r.SubjectHint)
	}
	for _, area := range c.areas {
		for _, w := range c.keywords[area] {
			if w != "" && strings.Contains(text, " "+w) {
				subjects = append(subjects, area)
				break
			}
		}
	}
	return subjects, nil
}
