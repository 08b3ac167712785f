// Package esaj drives an authenticated session against the court portal
// and turns eligible case records into ingestion payloads.
//
// The scraper is a single-flight state machine: one login, then one
// search pass per key, paginating result lists and handling records
// strictly in list order. Failures are contained at the smallest
// enclosing scope — a bad record skips the record, a stuck key skips the
// key, only login-scoped failures abort the run.
package esaj

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"juris-robot/lib/browser"
	"juris-robot/lib/petition"
	"juris-robot/services/ingest"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/esaj")

// ErrLoginFailed aborts the run: credentials rejected, the verification
// code unobtainable or rejected, or the post-login page never loaded.
var ErrLoginFailed = errors.New("esaj: login failed")

// CodeFetcher obtains the out-of-band verification code when the portal
// raises its second-factor surface.
type CodeFetcher func(ctx context.Context) (string, error)

// DocumentExtractor turns a downloaded petition into plain text.
// Satisfied by *pdftext.Extractor.
type DocumentExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Sink receives validated records. Satisfied by *ingest.Client.
type Sink interface {
	Create(ctx context.Context, record ingest.Record) error
}

type Options struct {
	PortalURL string // defaults to DefaultPortalURL
	Username  string
	Password  string
	Target    int // stop once this many records were newly ingested
	FetchCode CodeFetcher
}

// RunState is the mutable state of one run, owned exclusively by the
// scraper's navigation loop.
type RunState struct {
	Processed int
	Target    int
	Seen      map[string]struct{}
}

// KeyStats summarizes one search key's pass for the run report.
type KeyStats struct {
	Key      string
	Eligible int
	Ingested int
	Aborted  bool // abandoned after a record-open timeout (soft-block)
}

type Scraper struct {
	page  Page
	docs  DocumentExtractor
	sink  Sink
	opts  Options
	state RunState
	stats []KeyStats
}

func NewScraper(page Page, docs DocumentExtractor, sink Sink, opts Options) *Scraper {
	if opts.PortalURL == "" {
		opts.PortalURL = DefaultPortalURL
	}
	if opts.Target <= 0 {
		opts.Target = 500
	}
	return &Scraper{
		page: page,
		docs: docs,
		sink: sink,
		opts: opts,
		state: RunState{
			Target: opts.Target,
			Seen:   map[string]struct{}{},
		},
	}
}

func (s *Scraper) State() RunState {
	return s.state
}

func (s *Scraper) Stats() []KeyStats {
	return s.stats
}

// Run executes one full session: login, then one search pass per key in
// order, until the target count is reached or keys are exhausted. Only
// login-scoped failures are returned, everything else is contained.
func (s *Scraper) Run(ctx context.Context, keys []string) error {
	ctx, span := tracer.Start(ctx, "scraper:Run")
	defer span.End()

	if err := s.login(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		return err
	}

	for _, key := range keys {
		if s.done() {
			slog.InfoContext(ctx, "target reached, ending session early",
				"processed", s.state.Processed, "target", s.state.Target)
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		// strategic pause between searches
		s.page.Pause(4*time.Second, 8*time.Second)
		s.searchKey(ctx, key)
	}

	slog.InfoContext(ctx, "session finished",
		"processed", s.state.Processed, "target", s.state.Target)
	return nil
}

func (s *Scraper) done() bool {
	return s.state.Processed >= s.state.Target
}

func (s *Scraper) login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "scraper:login")
	defer span.End()

	slog.InfoContext(ctx, "logging in", "portal", s.opts.PortalURL, "username", s.opts.Username)

	if err := s.page.Navigate(s.opts.PortalURL, navigateWait); err != nil {
		return fmt.Errorf("%w: open portal: %w", ErrLoginFailed, err)
	}
	s.page.Pause(1*time.Second, 2*time.Second)

	if err := s.page.Click(selUserMenu, loginWait); err != nil {
		return fmt.Errorf("%w: open login form: %w", ErrLoginFailed, err)
	}
	if err := s.page.TypeSlow(selUsername, s.opts.Username); err != nil {
		return fmt.Errorf("%w: fill username: %w", ErrLoginFailed, err)
	}
	if err := s.page.TypeSlow(selPassword, s.opts.Password); err != nil {
		return fmt.Errorf("%w: fill password: %w", ErrLoginFailed, err)
	}
	if err := s.page.Click(selLoginSubmit, loginWait); err != nil {
		return fmt.Errorf("%w: submit credentials: %w", ErrLoginFailed, err)
	}

	if s.page.Visible(selSecondFactorInput, secondFactorWait) {
		slog.InfoContext(ctx, "second factor surface detected")
		if err := s.secondFactor(ctx); err != nil {
			return err
		}
	} else if err := s.page.WaitURLContains(postLoginURLPart, loginWait); err != nil {
		return fmt.Errorf("%w: post-login page never loaded: %w", ErrLoginFailed, err)
	}

	slog.InfoContext(ctx, "login successful")
	return nil
}

func (s *Scraper) secondFactor(ctx context.Context) error {
	if s.opts.FetchCode == nil {
		return fmt.Errorf("%w: second factor required but no code fetcher configured", ErrLoginFailed)
	}

	code, err := s.opts.FetchCode(ctx)
	if err != nil {
		return fmt.Errorf("%w: obtain verification code: %w", ErrLoginFailed, err)
	}

	if err := s.page.Fill(selSecondFactorInput, code, loginWait); err != nil {
		return fmt.Errorf("%w: fill verification code: %w", ErrLoginFailed, err)
	}
	if err := s.page.ClickText(labelSecondFactorOK, loginWait); err != nil {
		return fmt.Errorf("%w: submit verification code: %w", ErrLoginFailed, err)
	}

	// race success navigation against an explicit rejection
	deadline := time.Now().Add(loginWait)
	for time.Now().Before(deadline) {
		if s.page.WaitURLContains(postLoginURLPart, time.Second) == nil {
			return nil
		}
		content, err := s.page.Content()
		if err == nil && strings.Contains(strings.ToLower(content), invalidCodeMarker) {
			return fmt.Errorf("%w: portal rejected the verification code", ErrLoginFailed)
		}
	}
	return fmt.Errorf("%w: no navigation after verification code", ErrLoginFailed)
}

// searchKey runs one full pass for a key. Never fatal: a key that fails
// to produce results, or goes unstable mid-pass, is logged and dropped.
func (s *Scraper) searchKey(ctx context.Context, key string) {
	ctx, span := tracer.Start(ctx, "scraper:searchKey")
	defer span.End()

	stats := KeyStats{Key: key}
	defer func() { s.stats = append(s.stats, stats) }()

	slog.InfoContext(ctx, "searching", "key", key)

	if err := s.submitSearch(ctx, key); err != nil {
		slog.WarnContext(ctx, "search submission failed, skipping key", "key", key, "err", err)
		return
	}

	if err := s.page.WaitVisible(selResultRow, firstResultWait); err != nil {
		slog.WarnContext(ctx, "no initial results for key, skipping", "key", key, "err", err)
		return
	}

	pageNum := 1
	for {
		if s.done() || ctx.Err() != nil {
			return
		}
		s.page.Pause(2*time.Second, 4*time.Second)
		slog.InfoContext(ctx, "reading result page", "key", key, "page", pageNum)

		records, err := s.currentPageRecords(ctx)
		if err != nil {
			slog.WarnContext(ctx, "failed to read result list, ending key", "key", key, "err", err)
			return
		}
		if len(records) == 0 {
			slog.InfoContext(ctx, "empty result page, ending key", "key", key, "page", pageNum)
			return
		}

		if !s.processRecords(ctx, records, &stats) {
			// a stuck record navigation is evidence of soft-blocking,
			// cut losses for this key
			stats.Aborted = true
			return
		}
		if s.done() {
			return
		}

		n, err := s.page.Count(selNextPage, detailPeekWait)
		if err != nil || n == 0 {
			slog.InfoContext(ctx, "last result page reached", "key", key, "pages", pageNum)
			return
		}
		s.page.Pause(2*time.Second, 4*time.Second)
		if err := s.page.Click(selNextPage, navigateWait); err != nil {
			slog.WarnContext(ctx, "failed to advance result page, ending key", "key", key, "err", err)
			return
		}
		pageNum++
	}
}

func (s *Scraper) submitSearch(ctx context.Context, key string) error {
	if err := s.page.Navigate(s.opts.PortalURL, navigateWait); err != nil {
		return err
	}
	if err := s.page.WaitVisible(selSearchType, firstResultWait); err != nil {
		return err
	}
	if err := s.page.SelectOption(selSearchType, searchTypeOAB, listReadWait); err != nil {
		return err
	}
	if err := s.page.TypeSlow(selSearchField, key); err != nil {
		return err
	}
	s.page.Pause(1*time.Second, 2*time.Second)
	return s.page.Click(selSearchSubmit, navigateWait)
}

func (s *Scraper) currentPageRecords(ctx context.Context) ([]CaseRecord, error) {
	html, err := s.page.HTML(selResultList, listReadWait)
	if err != nil {
		return nil, err
	}
	records, err := parseResultRows(html)
	if err != nil {
		return nil, err
	}

	eligible := records[:0]
	for _, record := range records {
		if record.Eligible() {
			eligible = append(eligible, record)
		} else {
			slog.DebugContext(ctx, "row not eligible",
				"process", record.ProcessNumber,
				"class", record.ClaimClass,
				"subject", record.SubjectMatter)
		}
	}
	return eligible, nil
}

// processRecords handles one page of eligible rows in list order. A
// false return means the session looks soft-blocked and the caller must
// abandon the rest of the key.
func (s *Scraper) processRecords(ctx context.Context, records []CaseRecord, stats *KeyStats) bool {
	for _, record := range records {
		if s.done() || ctx.Err() != nil {
			return true
		}

		if _, seen := s.state.Seen[record.ProcessNumber]; seen {
			slog.InfoContext(ctx, "process already handled this run, skipping", "process", record.ProcessNumber)
			continue
		}
		// seen regardless of outcome: success, skip and error all count
		s.state.Seen[record.ProcessNumber] = struct{}{}
		stats.Eligible++

		s.page.Pause(1*time.Second, 3*time.Second)
		slog.InfoContext(ctx, "opening record", "process", record.RawLabel)

		if err := s.page.ClickText(record.RawLabel, recordOpenWait); err != nil {
			if errors.Is(err, browser.ErrTimeout) {
				slog.ErrorContext(ctx, "timeout opening record, abandoning key to protect the session",
					"process", record.ProcessNumber)
				return false
			}
			slog.WarnContext(ctx, "failed to open record, skipping", "process", record.ProcessNumber, "err", err)
			continue
		}

		if s.handleRecord(ctx, record) {
			stats.Ingested++
		}
		s.back(ctx)
	}
	return true
}

// handleRecord processes one open record detail view and reports whether
// a new record was ingested. The page is left on the detail view, the
// caller navigates back.
func (s *Scraper) handleRecord(ctx context.Context, record CaseRecord) bool {
	content, err := s.page.Content()
	if err == nil && hasTerminalStatus(content) {
		slog.InfoContext(ctx, "record is terminal, skipping", "process", record.ProcessNumber)
		return false
	}

	siteValue := s.peekSiteValue(ctx)

	if !s.page.Visible(selFolderButton, folderVisibleWait) {
		slog.InfoContext(ctx, "record has no digital folder, skipping", "process", record.ProcessNumber)
		return false
	}

	folder, err := s.page.OpenFolder(selFolderButton, folderOpenWait)
	if err != nil {
		slog.WarnContext(ctx, "failed to open digital folder, skipping record",
			"process", record.ProcessNumber, "err", err)
		return false
	}

	fields, err := s.extractPetition(ctx, folder, record)
	if err != nil {
		slog.WarnContext(ctx, "petition extraction failed, skipping record",
			"process", record.ProcessNumber, "err", err)
		return false
	}

	return s.submit(ctx, record, fields, siteValue)
}

// peekSiteValue best-effort reads the case value the detail page reports.
// Failure is normal, the value just stays absent.
func (s *Scraper) peekSiteValue(ctx context.Context) string {
	if err := s.page.ClickText(labelExpandDetail, detailPeekWait); err == nil {
		s.page.Pause(300*time.Millisecond, 700*time.Millisecond)
	}
	value, err := s.page.TextAfter(labelCaseValue, detailPeekWait)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(value)
}

// extractPetition downloads and parses the petition document out of an
// open digital folder. The folder and the downloaded artifact are
// released on every path.
func (s *Scraper) extractPetition(ctx context.Context, folder Folder, record CaseRecord) (petition.Fields, error) {
	defer folder.Close()

	if err := folder.ClickText(labelPetition, petitionClickWait); err != nil {
		return petition.Fields{}, fmt.Errorf("select petition document: %w", err)
	}
	if err := folder.ClickInFrame(frameDocument, selDownloadButton, downloadClickWait); err != nil {
		return petition.Fields{}, fmt.Errorf("trigger download: %w", err)
	}

	path, err := folder.AwaitDownload(downloadWait)
	if err != nil {
		return petition.Fields{}, fmt.Errorf("await download: %w", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.WarnContext(ctx, "failed to remove downloaded petition", "path", path, "err", err)
		}
	}()

	slog.InfoContext(ctx, "petition downloaded", "process", record.ProcessNumber, "path", path)

	text, err := s.docs.Extract(ctx, path)
	if err != nil {
		return petition.Fields{}, fmt.Errorf("extract document text: %w", err)
	}
	return petition.Extract(text), nil
}

// submit posts the record and reports whether it counted as newly
// processed. The site-reported case value wins over the document's.
func (s *Scraper) submit(ctx context.Context, record CaseRecord, fields petition.Fields, siteValue string) bool {
	value := fields.CaseValue
	if siteValue != "" {
		value = siteValue
	}

	payload := ingest.Record{
		NumeroProcesso: record.ProcessNumber,
		NomeReu:        fields.DefendantName,
		CpfCnpjReu:     fields.DefendantID,
		ValorCausa:     value,
	}

	err := s.sink.Create(ctx, payload)
	switch {
	case err == nil:
		s.state.Processed++
		slog.InfoContext(ctx, "record ingested",
			"process", record.ProcessNumber,
			"processed", s.state.Processed,
			"target", s.state.Target)
		return true
	case errors.Is(err, ingest.ErrDuplicate):
		slog.InfoContext(ctx, "record already ingested previously", "process", record.ProcessNumber)
		return false
	default:
		slog.WarnContext(ctx, "sink rejected record, skipping", "process", record.ProcessNumber, "err", err)
		return false
	}
}

func (s *Scraper) back(ctx context.Context) {
	if err := s.page.Back(); err != nil {
		slog.WarnContext(ctx, "failed to navigate back to result list", "err", err)
	}
}

func hasTerminalStatus(content string) bool {
	lower := strings.ToLower(content)
	for _, marker := range terminalStatusMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
