package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"docsearch/internal/util"
)

const DefaultOCRDPI = 200

func (e *Extractor) ocrPDF(ctx context.Context, path string) (Extraction, error) {
	dir, err := os.MkdirTemp(e.tempDir, "docsearch-ocr-*")
	if err != nil {
		return Extraction{}, fmt.Errorf("create ocr temp dir: %w: %w", util.ErrExtraction, err)
	}
	defer os.RemoveAll(dir)

	images, err := e.rasterizer.Rasterize(ctx, path, dir)
	if err != nil {
		return Extraction{}, fmt.Errorf("rasterize %s: %w: %w", path, util.ErrExtraction, err)
	}
	var b strings.Builder
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return Extraction{}, err
		}
		text, err := e.ocr.Recognize(ctx, img)
		if err != nil {
			return Extraction{}, fmt.Errorf("ocr page %d of %s: %w: %w", i+1, path, util.ErrExtraction, err)
		}
		fmt.Fprintf(&b, "\n--- Page %d ---\n", i+1)
		b.WriteString(joinLines(text))
		b.WriteString("\n")
	}
	return Extraction{Text: b.String(), Method: MethodOCR, PageCount: len(images)}, nil
}

// joinLines keeps the non-blank recognized lines.
func joinLines(text string) string {
	lines := strings.Split(util.NormalizeNewlines(text), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// PDFToPPM rasterizes pages with poppler's pdftoppm.
type PDFToPPM struct {
	Binary string
	DPI    int
}

func NewPDFToPPM(dpi int) *PDFToPPM {
	if dpi <= 0 {
		dpi = DefaultOCRDPI
	}
	return &PDFToPPM{Binary: "pdftoppm", DPI: dpi}
}

func (p *PDFToPPM) Rasterize(ctx context.Context, pdfPath, outDir string) ([]string, error) {
	prefix := filepath.Join(outDir, "page")
	cmd := exec.CommandContext(ctx, p.Binary, "-r", strconv.Itoa(p.DPI), "-png", pdfPath, prefix)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	images, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, fmt.Errorf("list rendered pages: %w", err)
	}
	// pdftoppm zero-pads page numbers to a common width.
	sort.Strings(images)
	return images, nil
}

// TesseractOCR shells out to the tesseract CLI.
type TesseractOCR struct {
	Binary    string
	Languages string
}

func NewTesseractOCR(languages string) *TesseractOCR {
	if strings.TrimSpace(languages) == "" {
		languages = "eng"
	}
	return &TesseractOCR{Binary: "tesseract", Languages: languages}
}

func (t *TesseractOCR) Recognize(ctx context.Context, imagePath string) (string, error) {
	cmd := exec.CommandContext(ctx, t.Binary, imagePath, "stdout", "-l", t.Languages, "--oem", "3", "--psm", "3")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
