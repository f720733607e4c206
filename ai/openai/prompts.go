package openai

import (
	"fmt"
	"strings"

	"github.com/poiesic/medingest/ai"
)

const classificationPromptTemplate = `Classify the medical article into subject areas and return them as JSON.

Output ONLY valid JSON. Do not include any preamble or explanation. Start your response with the
opening brace { and end with the closing brace }. Use this shape:

{"subjects": [{"name": "<subject area>", "confidence": <number between 0 and 1>}]}

Rules:
- Choose names from this list only: %s.
- Include every area the article substantially addresses, most confident first.
- Confidence reflects how central the area is to the article, not how common it is.
- If no listed area applies, return {"subjects": []}.

Example:
Title: "Empagliflozin and heart failure hospitalization in type 2 diabetes"
Output:
{"subjects": [{"name": "cardiology", "confidence": 0.9}, {"name": "endocrinology", "confidence": 0.85}]}`

const assessmentPromptTemplate = `Rate the quality of the medical article from its metadata and return the ratings as JSON.

Output ONLY valid JSON. Do not include any preamble or explanation. Use this shape:

{"overall": <0-1>, "content": <0-1>, "writing": <0-1>, "citation": <0-1>, "rationale": "<one sentence>"}

Rules:
- content: study design strength, sample size, clinical relevance.
- writing: clarity and completeness of the title and abstract.
- citation: venue and evidence the work is grounded in prior literature.
- overall: your combined judgment, not necessarily the mean.
- Systematic reviews, meta-analyses and randomized trials usually rate higher than case reports.
- All numbers are between 0 and 1 inclusive.`

func classificationSystemPrompt() string {
	return fmt.Sprintf(classificationPromptTemplate, strings.Join(ai.SubjectAreas, ", "))
}

func assessmentSystemPrompt() string {
	return assessmentPromptTemplate
}

// articlePrompt renders the article for the human turn.
func articlePrompt(article ai.ArticleText, maxAbstract int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", article.Title)
	if article.Journal != "" {
		fmt.Fprintf(&b, "Journal: %s\n", article.Journal)
	}
	if article.PublicationType != "" {
		fmt.Fprintf(&b, "Publication type: %s\n", article.PublicationType)
	}
	if len(article.MeSHTerms) > 0 {
		fmt.Fprintf(&b, "MeSH terms: %s\n", strings.Join(article.MeSHTerms, "; "))
	}
	if len(article.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(article.Keywords, "; "))
	}
	if article.Abstract != "" {
		fmt.Fprintf(&b, "Abstract: %s\n", truncate(article.Abstract, maxAbstract))
	}
	return b.String()
}
