package pdftext

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeRunner scripts pdftotext/pdftoppm/tesseract without shelling out.
type fakeRunner struct {
	textLayer string
	pageTexts []string
	calls     []string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, name)
	switch name {
	case "pdftotext":
		return []byte(f.textLayer), nil, nil
	case "pdftoppm":
		prefix := args[len(args)-1]
		for i := range f.pageTexts {
			err := os.WriteFile(fmt.Sprintf("%s-%d.png", prefix, i+1), []byte{0}, 0o644)
			if err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	case "tesseract":
		page := args[0]
		for i := range f.pageTexts {
			if strings.HasSuffix(page, fmt.Sprintf("-%d.png", i+1)) {
				return []byte(f.pageTexts[i]), nil, nil
			}
		}
		return nil, nil, fmt.Errorf("unexpected page %s", page)
	}
	return nil, nil, fmt.Errorf("unexpected command %s", name)
}

func newExtractor(runner Runner) *Extractor {
	return NewExtractorWithRunner(Config{}, runner)
}

func TestTextLayerSufficient(t *testing.T) {
	runner := &fakeRunner{textLayer: strings.Repeat("a", 200)}
	text, err := newExtractor(runner).Extract(context.Background(), "doc.pdf")
	require.NoError(t, err)
	require.Equal(t, runner.textLayer, text)
	require.Equal(t, []string{"pdftotext"}, runner.calls, "ocr must not run")
}

// whitespace does not count towards the threshold
func TestThresholdIgnoresWhitespace(t *testing.T) {
	runner := &fakeRunner{
		textLayer: strings.Repeat("a \n\t", 199),
		pageTexts: []string{"ocr output com conteúdo"},
	}
	text, err := newExtractor(runner).Extract(context.Background(), "doc.pdf")
	require.NoError(t, err)
	require.Equal(t, "ocr output com conteúdo\n", text)
	require.Contains(t, runner.calls, "pdftoppm")
	require.Contains(t, runner.calls, "tesseract")
}

func TestOcrPageOrder(t *testing.T) {
	runner := &fakeRunner{
		textLayer: "thin",
		pageTexts: []string{"primeira página", "segunda página", "terceira página"},
	}
	text, err := newExtractor(runner).Extract(context.Background(), "doc.pdf")
	require.NoError(t, err)
	require.Equal(t, "primeira página\nsegunda página\nterceira página\n", text)
}

func TestNoTextAnywhere(t *testing.T) {
	runner := &fakeRunner{textLayer: "", pageTexts: []string{" ", "\n"}}
	_, err := newExtractor(runner).Extract(context.Background(), "doc.pdf")
	require.ErrorIs(t, err, ErrNoText)
}

func TestOcrRendersNoPages(t *testing.T) {
	runner := &fakeRunner{textLayer: "", pageTexts: nil}
	_, err := newExtractor(runner).Extract(context.Background(), "doc.pdf")
	require.ErrorIs(t, err, ErrNoText)
}

func TestDefaults(t *testing.T) {
	e := NewExtractor(Config{})
	require.Equal(t, "por", e.cfg.Lang)
	require.Equal(t, 300, e.cfg.DPI)
	require.Equal(t, "pdftotext", e.cfg.Pdftotext)
}
