package extract

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docsearch/internal/logging"
	"docsearch/internal/util"

	"github.com/stretchr/testify/require"
)

type fakeTextLayer struct {
	pages []string
	err   error
}

func (f fakeTextLayer) PageTexts(context.Context, string) ([]string, error) {
	return f.pages, f.err
}

type fakeRasterizer struct {
	pages  int
	err    error
	outDir string
}

func (f *fakeRasterizer) Rasterize(_ context.Context, _ string, outDir string) ([]string, error) {
	f.outDir = outDir
	out := make([]string, 0, f.pages)
	for i := 0; i < f.pages; i++ {
		p := filepath.Join(outDir, "page-"+string(rune('1'+i))+".png")
		if err := os.WriteFile(p, []byte("img"), 0o644); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, f.err
}

type fakeOCR struct {
	calls int
	text  string
	err   error
}

func (f *fakeOCR) Recognize(context.Context, string) (string, error) {
	f.calls++
	return f.text, f.err
}

func touch(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("%PDF-1.4"), 0o644))
	return p
}

func TestTextRichPDFNeverInvokesOCR(t *testing.T) {
	ocr := &fakeOCR{text: "should not be used"}
	for _, perPage := range []int{51, 80, 400, 2000} {
		pages := []string{strings.Repeat("a", perPage), strings.Repeat("b", perPage), strings.Repeat("c", perPage)}
		e := New(Config{TextLayer: fakeTextLayer{pages: pages}, OCR: ocr, Rasterizer: &fakeRasterizer{pages: 3}, Logger: logging.Nop()})
		out, err := e.Extract(context.Background(), touch(t, "digital.pdf"))
		require.NoError(t, err)
		require.Equal(t, MethodText, out.Method)
		require.Equal(t, 3, out.PageCount)
	}
	require.Zero(t, ocr.calls)
}

func TestSparsePDFFallsBackToOCR(t *testing.T) {
	ocr := &fakeOCR{text: "  dòng một \n\n dòng hai\n"}
	r := &fakeRasterizer{pages: 2}
	e := New(Config{TextLayer: fakeTextLayer{pages: []string{"x", ""}}, OCR: ocr, Rasterizer: r, TempDir: t.TempDir(), Logger: logging.Nop()})

	out, err := e.Extract(context.Background(), touch(t, "scan.pdf"))
	require.NoError(t, err)
	require.Equal(t, MethodOCR, out.Method)
	require.Equal(t, 2, ocr.calls)
	require.Equal(t, "--- Page 1 ---\ndòng một\ndòng hai\n\n--- Page 2 ---\ndòng một\ndòng hai", out.Text)

	_, statErr := os.Stat(r.outDir)
	require.True(t, os.IsNotExist(statErr), "ocr temp dir must be removed")
}

func TestThresholdIsStrict(t *testing.T) {
	ocr := &fakeOCR{text: "ocr text"}
	e := New(Config{MinCharsPerPage: 50, TextLayer: fakeTextLayer{pages: []string{strings.Repeat("a", 50)}}, OCR: ocr, Rasterizer: &fakeRasterizer{pages: 1}, Logger: logging.Nop()})
	out, err := e.Extract(context.Background(), touch(t, "edge.pdf"))
	require.NoError(t, err)
	require.Equal(t, MethodOCR, out.Method)
	require.Equal(t, 1, ocr.calls)
}

func TestScannedPDFWithoutOCRIsUnsupported(t *testing.T) {
	e := New(Config{TextLayer: fakeTextLayer{pages: []string{"", "", ""}}, Logger: logging.Nop()})
	require.False(t, e.OCREnabled())
	_, err := e.Extract(context.Background(), touch(t, "scan.pdf"))
	require.ErrorIs(t, err, util.ErrUnsupportedScannedDocument)
	require.ErrorIs(t, err, util.ErrExtraction)
}

func TestOCRFailureCleansTempDir(t *testing.T) {
	r := &fakeRasterizer{pages: 2}
	e := New(Config{TextLayer: fakeTextLayer{pages: []string{""}}, OCR: &fakeOCR{err: errors.New("engine crashed")}, Rasterizer: r, TempDir: t.TempDir(), Logger: logging.Nop()})
	_, err := e.Extract(context.Background(), touch(t, "scan.pdf"))
	require.ErrorIs(t, err, util.ErrExtraction)
	_, statErr := os.Stat(r.outDir)
	require.True(t, os.IsNotExist(statErr))
}

func TestRasterizeFailureCleansTempDir(t *testing.T) {
	r := &fakeRasterizer{pages: 1, err: errors.New("pdftoppm missing")}
	e := New(Config{TextLayer: fakeTextLayer{pages: []string{""}}, OCR: &fakeOCR{}, Rasterizer: r, TempDir: t.TempDir(), Logger: logging.Nop()})
	_, err := e.Extract(context.Background(), touch(t, "scan.pdf"))
	require.ErrorIs(t, err, util.ErrExtraction)
	_, statErr := os.Stat(r.outDir)
	require.True(t, os.IsNotExist(statErr))
}

func TestTextLayerErrorIsExtractionError(t *testing.T) {
	e := New(Config{TextLayer: fakeTextLayer{err: errors.New("xref broken")}, Logger: logging.Nop()})
	_, err := e.Extract(context.Background(), touch(t, "broken.pdf"))
	require.ErrorIs(t, err, util.ErrExtraction)
}

func TestPlainTextBypassesBothTiers(t *testing.T) {
	ocr := &fakeOCR{}
	e := New(Config{TextLayer: fakeTextLayer{err: errors.New("must not be called")}, OCR: ocr, Logger: logging.Nop()})
	p := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(p, []byte("dòng 1\r\ndòng 2\n"), 0o644))

	out, err := e.Extract(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, MethodDirect, out.Method)
	require.Equal(t, TypeText, out.FileType)
	require.Equal(t, "dòng 1\ndòng 2", out.Text)
	require.Zero(t, ocr.calls)
}

func TestDOCXParagraphs(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tender.docx")
	f, err := os.Create(p)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Chương 1</w:t></w:r></w:p>
    <w:p><w:r><w:t xml:space="preserve">Bê tông </w:t></w:r><w:r><w:t>cốt thép</w:t></w:r></w:p>
  </w:body>
</w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	out, err := New(Config{Logger: logging.Nop()}).Extract(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, TypeDOCX, out.FileType)
	require.Equal(t, "Chương 1\nBê tông cốt thép", out.Text)
}

func TestImageNeedsOCR(t *testing.T) {
	p := touch(t, "photo.png")
	_, err := New(Config{Logger: logging.Nop()}).Extract(context.Background(), p)
	require.ErrorIs(t, err, util.ErrUnsupportedScannedDocument)

	ocr := &fakeOCR{text: "biển báo"}
	out, err := New(Config{OCR: ocr, Logger: logging.Nop()}).Extract(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, "biển báo", out.Text)
	require.Equal(t, MethodOCR, out.Method)
}

func TestUnsupportedExtension(t *testing.T) {
	_, err := New(Config{Logger: logging.Nop()}).Extract(context.Background(), touch(t, "legacy.doc"))
	require.ErrorIs(t, err, util.ErrExtraction)
}
