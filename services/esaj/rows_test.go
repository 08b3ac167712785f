package esaj

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const resultListHTML = `
<ul class="unj-list-row">
	<li>
		<a class="linkProcesso"> 1001234-56.2023.8.26.0100 </a>
		<div class="classeProcesso">Procedimento Comum Cível</div>
		<div class="assuntoPrincipalProcesso">Contratos Bancários</div>
	</li>
	<li>
		<a class="linkProcesso">2002345-67.2023.8.26.0100</a>
		<div class="classeProcesso">Execução de Título Extrajudicial</div>
		<div class="assuntoPrincipalProcesso">Contratos Bancários</div>
	</li>
	<li>
		<div class="classeProcesso">linha decorativa sem processo</div>
	</li>
</ul>`

func TestParseResultRows(t *testing.T) {
	records, err := parseResultRows(resultListHTML)
	require.NoError(t, err)
	require.Len(t, records, 2, "rows without a process link are dropped")

	require.Equal(t, CaseRecord{
		ProcessNumber: "10012345620238260100",
		RawLabel:      "1001234-56.2023.8.26.0100",
		ClaimClass:    "Procedimento Comum Cível",
		SubjectMatter: "Contratos Bancários",
	}, records[0])

	require.True(t, records[0].Eligible())
	require.False(t, records[1].Eligible(), "wrong claim class")
}

func TestEligibleNeedsBothFilters(t *testing.T) {
	record := CaseRecord{ClaimClass: "PROCEDIMENTO COMUM CÍVEL", SubjectMatter: "Despejo"}
	require.False(t, record.Eligible())

	record.SubjectMatter = "Contratos Bancários e afins"
	require.True(t, record.Eligible(), "filters match case-insensitive substrings")
}

func TestCanonicalProcessNumber(t *testing.T) {
	require.Equal(t, "10012345620238260100", CanonicalProcessNumber(" 1001234-56.2023.8.26.0100 "))
	require.Equal(t, "10012345620238260100", CanonicalProcessNumber("10012345620238260100"))
}
