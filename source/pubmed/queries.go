package pubmed

import (
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/medingest/core"
)

// SubjectQueries maps the built-in subject areas to PubMed search terms.
var SubjectQueries = map[string]string{
	"cardiology":       "cardiology[MeSH Terms] OR cardiovascular[tiab] OR heart disease[tiab]",
	"oncology":         "oncology[MeSH Terms] OR cancer[tiab] OR neoplasms[tiab]",
	"neurology":        "neurology[MeSH Terms] OR neurological[tiab] OR brain disease[tiab]",
	"immunology":       "immunology[MeSH Terms] OR immune[tiab] OR autoimmune[tiab]",
	"endocrinology":    "endocrinology[MeSH Terms] OR diabetes[tiab] OR hormone[tiab]",
	"gastroenterology": "gastroenterology[MeSH Terms] OR digestive[tiab] OR gastrointestinal[tiab]",
	"nephrology":       "nephrology[MeSH Terms] OR kidney[tiab] OR renal[tiab]",
	"pulmonology":      "pulmonology[MeSH Terms] OR lung[tiab] OR pulmonary[tiab]",
	"rheumatology":     "rheumatology[MeSH Terms] OR arthritis[tiab] OR autoimmune[tiab]",
	"dermatology":      "dermatology[MeSH Terms] OR skin[tiab] OR dermatology[tiab]",
	"ophthalmology":    "ophthalmology[MeSH Terms] OR eye[tiab] OR vision[tiab]",
	"psychiatry":       "psychiatry[MeSH Terms] OR mental health[tiab] OR depression[tiab]",
	"pediatrics":       "pediatrics[MeSH Terms] OR child[tiab] OR pediatric[tiab]",
	"geriatrics":       "geriatrics[MeSH Terms] OR elderly[tiab] OR aging[tiab]",
}

// SubjectQuery returns the search term for a subject area.
// Unknown areas search title and abstract for the literal name.
func SubjectQuery(area string) string {
	key := core.NormalizePartitionName(area)
	if q, ok := SubjectQueries[key]; ok {
		return q
	}
	return fmt.Sprintf("%q[tiab]", strings.TrimSpace(area))
}

const pdatLayout = "2006/01/02"

// withDateRange restricts term to a publication date range.
// An open end of the range is filled with PubMed's conventional bounds.
func withDateRange(term string, from, to time.Time) string {
	if from.IsZero() && to.IsZero() {
		return term
	}
	start := "1800/01/01"
	if !from.IsZero() {
		start = from.Format(pdatLayout)
	}
	end := "3000/12/31"
	if !to.IsZero() {
		end = to.Format(pdatLayout)
	}
	return fmt.Sprintf("(%s) AND (%s[PDAT] : %s[PDAT])", term, start, end)
}
