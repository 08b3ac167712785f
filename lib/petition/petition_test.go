package petition

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const samplePetition = `AÇÃO DE COBRANÇA que move o autor
em face de João da Silva, brasileiro, casado,
inscrito no CPF nº 529.982.247-25, residente na rua A.
Dá-se à causa o valor de R$ 15.000,00.`

func TestExtract(t *testing.T) {
	fields := Extract(samplePetition)
	expected := Fields{
		DefendantName: "JOÃO DA SILVA",
		DefendantID:   "52998224725",
		CaseValue:     "15.000,00",
	}
	if diff := cmp.Diff(expected, fields); diff != "" {
		t.Fatalf("unexpected fields (-want +got):\n%s", diff)
	}
}

// when the high-confidence strategy yields a checksum-valid identifier,
// the fallback block scan must not contribute anything
func TestQualifiedStrategyWins(t *testing.T) {
	text := `em face de ACME Corp Ltda, pessoa jurídica,
inscrita no CNPJ nº 11.222.333/0001-81, com sede.
requerido: wrong name, cpf 111.111.111-11`

	fields := Extract(text)
	require.Equal(t, "ACME CORP LTDA", fields.DefendantName)
	require.Equal(t, "11222333000181", fields.DefendantID)
}

// a checksum failure in the high-confidence match is silent, the block
// scan runs and picks the first valid identifier in the window
func TestChecksumFailureFallsThrough(t *testing.T) {
	text := `em face de Fulano de Tal, inscrito no cpf nº 123.456.789-00,
com endereço na rua x, documento correto cpf 529.982.247-25 conforme anexo`

	fields := Extract(text)
	require.Equal(t, "FULANO DE TAL", fields.DefendantName)
	require.Equal(t, "52998224725", fields.DefendantID)
}

func TestDefendantBlockKeywords(t *testing.T) {
	text := `requerido: Banco Exemplo S/A, instituição financeira,
cnpj 11.222.333/0001-81, citando-se`

	fields := Extract(text)
	require.Equal(t, "BANCO EXEMPLO S/A", fields.DefendantName)
	require.Equal(t, "11222333000181", fields.DefendantID)
}

func TestCaseValuePhrasings(t *testing.T) {
	for _, tc := range []struct {
		text  string
		value string
	}{
		{"Valor da causa: R$ 1.234,56", "1.234,56"},
		{"valor da causa de R$ 500,00", "500,00"},
		{"Dá-se à causa o valor de R$ 15.000,00", "15.000,00"},
		{"Atribui-se à causa o valor de R$ 999,99", "999,99"},
		{"valor atribuído à causa de R$ 10.000,00", "10.000,00"},
	} {
		fields := Extract(tc.text)
		require.Equal(t, tc.value, fields.CaseValue, "text: %s", tc.text)
	}
}

func TestSentinels(t *testing.T) {
	fields := Extract("texto sem nenhum dado aproveitável")
	require.Equal(t, NotFound, fields.DefendantName)
	require.Equal(t, NotFound, fields.DefendantID)
	require.Equal(t, NotFound, fields.CaseValue)

	fields = Extract("")
	require.Equal(t, NotFound, fields.DefendantName)
}

// a resolved field never blocks the others
func TestFieldsResolveIndependently(t *testing.T) {
	fields := Extract("contra Sicrano de Souza, sem documento algum")
	require.Equal(t, "SICRANO DE SOUZA", fields.DefendantName)
	require.Equal(t, NotFound, fields.DefendantID)
	require.Equal(t, NotFound, fields.CaseValue)
}

func TestCleanNameIdempotent(t *testing.T) {
	for _, raw := range []string{
		"  joão   da  silva , brasileiro",
		"banco exemplo s/a instituição financeira",
		"banco instituição financeira exemplo",
		"ACME CORP",
		"ré já qualificada nos autos",
	} {
		once := CleanName(raw)
		require.Equal(t, once, CleanName(once), "raw: %q", raw)
	}
}

// excising an artifact from the middle of a name must not leave the
// surrounding whitespace behind
func TestCleanNameMidArtifact(t *testing.T) {
	require.Equal(t, "BANCO EXEMPLO", CleanName("banco instituição financeira exemplo"))
	require.Equal(t, "BANCO EXEMPLO S/A", CleanName("banco pessoa jurídica de direito privado exemplo s/a"))
}

func TestNormalize(t *testing.T) {
	require.Equal(t, "a b c", Normalize("  A \n\tB   c "))
}
