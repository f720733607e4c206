package pubmed

import (
	"encoding/xml"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/medingest/core"
)

// innerText collects all character data of an element, including text nested
// in inline markup such as <i> or <sup>.
type innerText string

func (t *innerText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var b strings.Builder
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch v := tok.(type) {
		case xml.CharData:
			b.Write(v)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				*t = innerText(strings.Join(strings.Fields(b.String()), " "))
				return nil
			}
			depth--
		}
	}
}

type articleSet struct {
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Citation   medlineCitation `xml:"MedlineCitation"`
	ArticleIDs []articleID     `xml:"PubmedData>ArticleIdList>ArticleId"`
}

type medlineCitation struct {
	PMID     string      `xml:"PMID"`
	Article  article     `xml:"Article"`
	MeSH     []innerText `xml:"MeshHeadingList>MeshHeading>DescriptorName"`
	Keywords []innerText `xml:"KeywordList>Keyword"`
}

type article struct {
	Title            innerText   `xml:"ArticleTitle"`
	Abstract         []innerText `xml:"Abstract>AbstractText"`
	Journal          journal     `xml:"Journal"`
	Authors          []author    `xml:"AuthorList>Author"`
	PublicationTypes []innerText `xml:"PublicationTypeList>PublicationType"`
	ELocationIDs     []articleID `xml:"ELocationID"`
}

type journal struct {
	Title   string  `xml:"Title"`
	PubDate pubDate `xml:"JournalIssue>PubDate"`
}

type pubDate struct {
	Year        string `xml:"Year"`
	Month       string `xml:"Month"`
	Day         string `xml:"Day"`
	MedlineDate string `xml:"MedlineDate"`
}

type author struct {
	LastName       string `xml:"LastName"`
	ForeName       string `xml:"ForeName"`
	CollectiveName string `xml:"CollectiveName"`
}

// articleID covers both ArticleId (IdType) and ELocationID (EIdType).
type articleID struct {
	IDType  string `xml:"IdType,attr"`
	EIDType string `xml:"EIdType,attr"`
	Value   string `xml:",chardata"`
}

// parseArticles decodes an efetch response. Articles without a PMID are dropped.
func parseArticles(data []byte, subjectHint string) ([]core.Record, error) {
	var set articleSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, err
	}

	records := make([]core.Record, 0, len(set.Articles))
	for _, a := range set.Articles {
		pmid := strings.TrimSpace(a.Citation.PMID)
		if pmid == "" {
			continue
		}
		art := a.Citation.Article

		rec := core.Record{
			ExternalID:  pmid,
			Source:      Kind,
			Title:       string(art.Title),
			Abstract:    joinTexts(art.Abstract),
			Journal:     strings.TrimSpace(art.Journal.Title),
			DOI:         a.doi(),
			PublishedAt: art.Journal.PubDate.date(),
			MeSHTerms:   texts(a.Citation.MeSH),
			Keywords:    texts(a.Citation.Keywords),
			SubjectHint: subjectHint,
		}
		if len(art.PublicationTypes) > 0 {
			rec.PublicationType = string(art.PublicationTypes[0])
		}
		for _, au := range art.Authors {
			if name := au.name(); name != "" {
				rec.Authors = append(rec.Authors, name)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func (a pubmedArticle) doi() string {
	for _, id := range a.ArticleIDs {
		if strings.EqualFold(id.IDType, "doi") {
			return strings.TrimSpace(id.Value)
		}
	}
	for _, id := range a.Citation.Article.ELocationIDs {
		if strings.EqualFold(id.EIDType, "doi") {
			return strings.TrimSpace(id.Value)
		}
	}
	return ""
}

func (au author) name() string {
	if au.CollectiveName != "" {
		return strings.TrimSpace(au.CollectiveName)
	}
	return strings.TrimSpace(strings.TrimSpace(au.LastName) + " " + strings.TrimSpace(au.ForeName))
}

var monthNames = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// date converts a PubDate. Missing month or day default to 1; a date
// without a year is left zero.
func (p pubDate) date() time.Time {
	yearText := p.Year
	if yearText == "" && len(p.MedlineDate) >= 4 {
		// e.g. "2019 Nov-Dec"
		yearText = p.MedlineDate[:4]
	}
	year, err := strconv.Atoi(strings.TrimSpace(yearText))
	if err != nil || year <= 0 {
		return time.Time{}
	}

	month := time.January
	if m := strings.TrimSpace(p.Month); m != "" {
		if n, err := strconv.Atoi(m); err == nil && n >= 1 && n <= 12 {
			month = time.Month(n)
		} else if len(m) >= 3 {
			if named, ok := monthNames[strings.ToLower(m[:3])]; ok {
				month = named
			}
		}
	}

	day := 1
	if n, err := strconv.Atoi(strings.TrimSpace(p.Day)); err == nil && n >= 1 && n <= 31 {
		day = n
	}

	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Month() != month {
		// Day overflowed into the next month
		t = time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

func joinTexts(parts []innerText) string {
	return strings.Join(texts(parts), " ")
}

func texts(parts []innerText) []string {
	var out []string
	for _, p := range parts {
		if s := strings.TrimSpace(string(p)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
