// Package mock provides test doubles for the ai service interfaces.
//
//	classifier := mock.NewMockSubjectClassifier().
//	    WithClassifySubjectsFunc(func(ctx context.Context, a ai.ArticleText) ([]ai.SubjectLabel, error) {
//	        return []ai.SubjectLabel{{Name: "oncology", Confidence: 0.9}}, nil
//	    })
//	count := classifier.CallCount()
//
// Defaults:
//
//   - MockSubjectClassifier: areas named in the title or MeSH terms
//   - MockQualityAssessor: a fixed score on every aspect
//   - MockProvider: aggregates both
package mock
