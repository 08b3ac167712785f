package esaj

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CaseRecord is one parsed result-list row, immutable once created. It
// only exists to decide eligibility and to drive navigation.
type CaseRecord struct {
	ProcessNumber string // canonical: whitespace/punctuation stripped
	RawLabel      string // display string, used for exact-text navigation
	ClaimClass    string
	SubjectMatter string
}

var processNumberNoise = regexp.MustCompile(`[\s.-]`)

// CanonicalProcessNumber strips whitespace, dots and dashes from a
// displayed process number.
func CanonicalProcessNumber(label string) string {
	return processNumberNoise.ReplaceAllString(label, "")
}

// Eligible reports whether the row matches the claim-class and
// subject-matter filters of the run.
func (r CaseRecord) Eligible() bool {
	return strings.Contains(strings.ToLower(r.ClaimClass), requiredClaimClass) &&
		strings.Contains(strings.ToLower(r.SubjectMatter), requiredSubject)
}

// parseResultRows extracts CaseRecords from the result list's HTML, in
// document order. Rows without a process link are ignored.
func parseResultRows(html string) ([]CaseRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var records []CaseRecord
	doc.Find("li").Each(func(_ int, row *goquery.Selection) {
		label := strings.TrimSpace(row.Find(selProcessLink).Text())
		if label == "" {
			return
		}
		records = append(records, CaseRecord{
			ProcessNumber: CanonicalProcessNumber(label),
			RawLabel:      label,
			ClaimClass:    strings.TrimSpace(row.Find(selClaimClass).Text()),
			SubjectMatter: strings.TrimSpace(row.Find(selSubject).Text()),
		})
	})
	return records, nil
}
