// Package pdftext extracts plain text from petition PDFs.
//
// The embedded text layer is always tried first. Documents whose text
// layer is too thin to be usable (scanned filings, mostly) fall back to
// per-page rasterization plus OCR. External tools are driven through the
// Runner seam so tests never shell out.
package pdftext

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

// ErrNoText means both the text layer and the OCR pass produced nothing
// usable for the document.
var ErrNoText = errors.New("pdftext: document yielded no text")

// documents whose text layer holds fewer non-whitespace characters than
// this are treated as image-only
const minTextLayerChars = 200

type Config struct {
	Pdftotext string // binary name or absolute path, default "pdftotext"
	Pdftoppm  string // default "pdftoppm"
	Tesseract string // default "tesseract"

	Lang string // tesseract language, default "por"
	DPI  int    // rasterization resolution, default 300
}

type Extractor struct {
	cfg    Config
	runner Runner
}

func NewExtractor(cfg Config) *Extractor {
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "por"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Extractor{cfg: cfg, runner: execRunner{}}
}

// NewExtractorWithRunner is the test seam.
func NewExtractorWithRunner(cfg Config, runner Runner) *Extractor {
	e := NewExtractor(cfg)
	e.runner = runner
	return e
}

func countNonWhitespace(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// Extract returns the document's plain text, all pages concatenated in
// page order.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	text, err := e.textLayer(ctx, path)
	if err != nil {
		slog.WarnContext(ctx, "text layer extraction failed", "path", path, "err", err)
		text = ""
	}
	if countNonWhitespace(text) >= minTextLayerChars {
		return text, nil
	}

	slog.InfoContext(ctx, "text layer too thin, running ocr", "path", path, "chars", countNonWhitespace(text))
	ocrText, err := e.ocr(ctx, path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoText, err)
	}
	if countNonWhitespace(ocrText) == 0 {
		return "", ErrNoText
	}
	return ocrText, nil
}

func (e *Extractor) textLayer(ctx context.Context, path string) (string, error) {
	out, stderr, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w: %s", err, stderr)
	}
	return string(out), nil
}

func (e *Extractor) ocr(ctx context.Context, path string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "juris-ocr-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	_, stderr, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return "", fmt.Errorf("pdftoppm: %w: %s", err, stderr)
	}

	// pdftoppm pads page numbers to a fixed width, lexical order is page order
	pages, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(pages)
	if len(pages) == 0 {
		return "", fmt.Errorf("pdftoppm rendered no pages")
	}

	var b strings.Builder
	for i, page := range pages {
		out, stderr, err := e.runner.Run(ctx, e.cfg.Tesseract, page, "stdout", "-l", e.cfg.Lang)
		if err != nil {
			slog.WarnContext(ctx, "ocr pass failed for page", "page", i+1, "err", err, "stderr", string(stderr))
			continue
		}
		b.Write(out)
		b.WriteString("\n")
	}
	return b.String(), nil
}
