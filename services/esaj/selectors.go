package esaj

import "time"

// DefaultPortalURL is the consultation entrypoint of the portal.
const DefaultPortalURL = "https://esaj.tjsp.jus.br/cpopg/open.do"

// Portal markup contract. These selectors and labels are an external,
// versioned surface that drifts with portal releases — a broken selector
// is an expected failure mode, handled by the run's error scoping rather
// than by code.
const (
	selUserMenu          = "#headerNmUsuarioLogado"
	selUsername          = "#usernameForm"
	selPassword          = "#passwordForm"
	selLoginSubmit       = "#pbEntrar"
	selSecondFactorInput = `input[placeholder^="Ex.:"]`
	labelSecondFactorOK  = "Enviar"
	postLoginURLPart     = "cpopg/open.do"

	selSearchType   = "select#cbPesquisa"
	searchTypeOAB   = "NUMOAB"
	selSearchField  = "#campo_NUMOAB"
	selSearchSubmit = "#botaoConsultarProcessos"

	selResultList   = "ul.unj-list-row"
	selResultRow    = "ul.unj-list-row > li"
	selProcessLink  = "a.linkProcesso"
	selClaimClass   = "div.classeProcesso"
	selSubject      = "div.assuntoPrincipalProcesso"
	selNextPage     = `a[title="Próxima página"]`
	selFolderButton = `[title="Pasta digital"]`

	labelExpandDetail = "Mais Recolher"
	labelCaseValue    = "Valor da ação"
	labelPetition     = "petição"
	frameDocument     = `iframe[name="documento"]`
	selDownloadButton = `[title="Baixar"]`
)

// record eligibility: both substrings must appear, case-insensitively
const (
	requiredClaimClass = "procedimento comum cível"
	requiredSubject    = "contratos bancários"
)

// detail pages carrying either marker are terminal and skipped
var terminalStatusMarkers = []string{"extinto", "cancelado"}

const invalidCodeMarker = "código inválido"

// wait bounds per scope — session-scoped timeouts are fatal, key-scoped
// skip the key, record-scoped skip the record
const (
	navigateWait      = 30 * time.Second
	secondFactorWait  = 7 * time.Second
	loginWait         = 15 * time.Second
	firstResultWait   = 15 * time.Second
	recordOpenWait    = 30 * time.Second
	detailPeekWait    = 3 * time.Second
	folderVisibleWait = 5 * time.Second
	folderOpenWait    = 45 * time.Second
	petitionClickWait = 15 * time.Second
	downloadClickWait = 30 * time.Second
	downloadWait      = 60 * time.Second
	listReadWait      = 10 * time.Second
)
