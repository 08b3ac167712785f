// Package petition recovers structured defendant data from the raw text
// of an initial petition document.
//
// Extraction runs an ordered cascade of pattern strategies over a
// normalized copy of the text, first success wins. Identifier candidates
// are only accepted when their check digits validate, a failed candidate
// simply falls through to the next strategy.
package petition

import (
	"regexp"
	"strings"

	"juris-robot/lib/idvalidate"
)

// NotFound is the sentinel carried by any field the cascade could not
// resolve. Fields never hold an empty string.
const NotFound = "Não encontrado"

type Fields struct {
	DefendantName string
	DefendantID   string
	CaseValue     string
}

// Normalize lower-cases text and collapses every whitespace run into a
// single space so pattern offsets are deterministic.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// high-confidence contextual pattern: a name-like span introduced by an
// action phrase, followed after qualifiers by a tax-id marker and an
// identifier-shaped token
var qualifiedDefendantPattern = regexp.MustCompile(
	`(?:em face de|ação de cobrança em)\s+(.*?),\s*.*?inscrit[oa]\s+no\s+(?:cnpj|cpf).{0,5}\s+([\d./-]+)`,
)

// ordered: the first keyword found in the text anchors the defendant block
var defendantKeywords = []string{"em face de", "contra", "requerido:", "requerida:"}

const defendantBlockSize = 400

var (
	namePrefixPattern  = regexp.MustCompile(`^(.*?),`)
	idCandidatePattern = regexp.MustCompile(`[\d./-]{11,18}`)
	caseValuePatterns  = []*regexp.Regexp{
		regexp.MustCompile(`valor da causa[:,]?\s*(?:de\s+|em\s+)?r\$\s*([\d.]+,\d{2})`),
		regexp.MustCompile(`dá-se à causa o valor de\s+r\$\s*([\d.]+,\d{2})`),
		regexp.MustCompile(`atribui-se à causa o valor de\s+r\$\s*([\d.]+,\d{2})`),
		regexp.MustCompile(`valor atribuído à causa[:,]?\s*(?:de\s+)?r\$\s*([\d.]+,\d{2})`),
	}
)

// residual phrases that the block capture tends to drag into a name
var nameArtifacts = []string{
	"pessoa jurídica de direito privado",
	"instituição financeira",
	"já qualificado",
	"já qualificada",
	"nos autos",
}

// CleanName strips qualifications and residual artifacts from a captured
// name span. Applying it twice yields the same result as once.
func CleanName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if i := strings.Index(name, ","); i >= 0 {
		name = name[:i]
	}
	lower := strings.ToLower(name)
	for _, artifact := range nameArtifacts {
		if i := strings.Index(lower, artifact); i >= 0 {
			name = name[:i] + name[i+len(artifact):]
			lower = strings.ToLower(name)
		}
	}
	// collapse last: excising a mid-name artifact leaves a double space
	name = strings.Join(strings.Fields(name), " ")
	return strings.ToUpper(name)
}

// matchQualifiedDefendant is the high-confidence strategy: both name and
// identifier must come out of one contextual match and the identifier
// must validate.
func matchQualifiedDefendant(text string) (name, id string, ok bool) {
	groups := qualifiedDefendantPattern.FindStringSubmatch(text)
	if groups == nil {
		return "", "", false
	}
	digits := idvalidate.Digits(groups[2])
	if !idvalidate.Any(digits) {
		return "", "", false
	}
	return CleanName(groups[1]), digits, true
}

// matchDefendantBlock is the fallback strategy: anchor a fixed-size block
// after the first defendant keyword, then search name and identifier
// independently within it.
func matchDefendantBlock(text string) (name, id string) {
	var block string
	for _, key := range defendantKeywords {
		start := strings.Index(text, key)
		if start < 0 {
			continue
		}
		start += len(key)
		end := start + defendantBlockSize
		if end > len(text) {
			end = len(text)
		}
		block = text[start:end]
		break
	}
	if block == "" {
		return "", ""
	}

	if groups := namePrefixPattern.FindStringSubmatch(block); groups != nil {
		name = CleanName(groups[1])
	}
	for _, candidate := range idCandidatePattern.FindAllString(block, -1) {
		digits := idvalidate.Digits(candidate)
		if idvalidate.Any(digits) {
			id = digits
			break
		}
	}
	return name, id
}

func matchCaseValue(text string) string {
	for _, pattern := range caseValuePatterns {
		if groups := pattern.FindStringSubmatch(text); groups != nil {
			return groups[1]
		}
	}
	return ""
}

// Extract runs the full cascade over raw document text. Every field
// resolves independently, a missing field never fails the others.
func Extract(text string) Fields {
	normalized := Normalize(text)

	name, id, ok := matchQualifiedDefendant(normalized)
	if !ok {
		name, id = matchDefendantBlock(normalized)
	}

	value := matchCaseValue(normalized)

	fields := Fields{
		DefendantName: name,
		DefendantID:   id,
		CaseValue:     value,
	}
	if fields.DefendantName == "" {
		fields.DefendantName = NotFound
	}
	if fields.DefendantID == "" {
		fields.DefendantID = NotFound
	}
	if fields.CaseValue == "" {
		fields.CaseValue = NotFound
	}
	return fields
}
