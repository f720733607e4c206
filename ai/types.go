package ai

import "github.com/poiesic/medingest/core"

// SubjectAreas are the subject areas models may choose from.
var SubjectAreas = []string{
	"cardiology",
	"dermatology",
	"endocrinology",
	"gastroenterology",
	"geriatrics",
	"immunology",
	"nephrology",
	"neurology",
	"oncology",
	"ophthalmology",
	"pediatrics",
	"psychiatry",
	"pulmonology",
	"rheumatology",
}

// ArticleText is the part of a record shown to a model.
type ArticleText struct {
	Title           string
	Abstract        string
	Journal         string
	PublicationType string
	MeSHTerms       []string
	Keywords        []string
}

// SubjectLabel is one subject area assigned by a classifier.
type SubjectLabel struct {
	// Name is a lowercase subject area, usually one of SubjectAreas.
	Name string

	// Confidence in [0, 1].
	Confidence float64
}

// QualityAssessment holds per-aspect quality scores in [0, 1].
type QualityAssessment struct {
	Overall   float64
	Content   float64
	Writing   float64
	Citation  float64
	Rationale string
}

// ArticleFromRecord extracts the model-facing fields of a record.
func ArticleFromRecord(r *core.Record) ArticleText {
	return ArticleText{
		Title:           r.Title,
		Abstract:        r.Abstract,
		Journal:         r.Journal,
		PublicationType: r.PublicationType,
		MeSHTerms:       r.MeSHTerms,
		Keywords:        r.Keywords,
	}
}
