package extract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"docsearch/internal/logging"
	"docsearch/internal/util"
)

const DefaultMinCharsPerPage = 50

const (
	TypePDF   = "pdf"
	TypeDOCX  = "docx"
	TypeText  = "text"
	TypeImage = "image"
)

const (
	MethodText   = "text"
	MethodOCR    = "ocr"
	MethodDirect = "direct"
)

// TextLayer reads the embedded text of each page of a PDF.
type TextLayer interface {
	PageTexts(ctx context.Context, path string) ([]string, error)
}

// Rasterizer renders every page of a PDF into an image file inside outDir and
// returns the image paths in page order.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath, outDir string) ([]string, error)
}

// OCREngine turns one page image into text.
type OCREngine interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

type Config struct {
	MinCharsPerPage int
	TextLayer       TextLayer
	// OCR nil disables the slow path entirely.
	OCR        OCREngine
	Rasterizer Rasterizer
	TempDir    string
	Logger     *slog.Logger
}

type Extraction struct {
	Text      string `json:"text"`
	FileType  string `json:"file_type"`
	Method    string `json:"method"`
	PageCount int    `json:"page_count"`
}

type Extractor struct {
	minChars   int
	textLayer  TextLayer
	ocr        OCREngine
	rasterizer Rasterizer
	tempDir    string
	log        *slog.Logger
}

func New(cfg Config) *Extractor {
	e := &Extractor{
		minChars:   cfg.MinCharsPerPage,
		textLayer:  cfg.TextLayer,
		ocr:        cfg.OCR,
		rasterizer: cfg.Rasterizer,
		tempDir:    cfg.TempDir,
		log:        logging.OrDefault(cfg.Logger),
	}
	if e.minChars <= 0 {
		e.minChars = DefaultMinCharsPerPage
	}
	if e.textLayer == nil {
		e.textLayer = PDFTextLayer{}
	}
	if e.ocr != nil && e.rasterizer == nil {
		e.rasterizer = NewPDFToPPM(0)
	}
	return e
}

// OCREnabled reports whether scanned input can be handled.
func (e *Extractor) OCREnabled() bool {
	return e.ocr != nil
}

func FileTypeOf(path string) (string, bool) {
	switch util.FileExt(path) {
	case ".pdf":
		return TypePDF, true
	case ".docx":
		return TypeDOCX, true
	case ".txt", ".md", ".csv":
		return TypeText, true
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff":
		return TypeImage, true
	default:
		return "", false
	}
}

func (e *Extractor) Extract(ctx context.Context, path string) (Extraction, error) {
	fileType, ok := FileTypeOf(path)
	if !ok {
		return Extraction{}, fmt.Errorf("extract %s: unsupported file type %q: %w", path, util.FileExt(path), util.ErrExtraction)
	}
	var (
		out Extraction
		err error
	)
	switch fileType {
	case TypePDF:
		out, err = e.extractPDF(ctx, path)
	case TypeDOCX:
		out, err = e.extractDOCX(path)
	case TypeText:
		out, err = e.extractPlain(path)
	case TypeImage:
		out, err = e.extractImage(ctx, path)
	}
	if err != nil {
		return Extraction{}, err
	}
	out.FileType = fileType
	out.Text = util.SanitizeText(util.NormalizeNewlines(out.Text))
	if out.Text == "" {
		return Extraction{}, fmt.Errorf("extract %s: no text: %w", path, util.ErrExtraction)
	}
	return out, nil
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (Extraction, error) {
	pages, err := e.textLayer.PageTexts(ctx, path)
	if err != nil {
		return Extraction{}, fmt.Errorf("read pdf text layer %s: %w: %w", path, util.ErrExtraction, err)
	}
	var b strings.Builder
	for _, p := range pages {
		b.WriteString(p)
		b.WriteString("\n")
	}
	text := b.String()
	avg := averageCharsPerPage(text, len(pages))
	if avg > float64(e.minChars) {
		return Extraction{Text: text, Method: MethodText, PageCount: len(pages)}, nil
	}

	if e.ocr == nil {
		return Extraction{}, fmt.Errorf("extract %s: %.1f chars per page: %w: %w", path, avg, util.ErrExtraction, util.ErrUnsupportedScannedDocument)
	}
	e.log.Info("text layer too sparse, falling back to OCR", "path", path, "pages", len(pages), "avg_chars_per_page", avg)
	return e.ocrPDF(ctx, path)
}

func (e *Extractor) extractPlain(path string) (Extraction, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Extraction{}, fmt.Errorf("read %s: %w: %w", path, util.ErrExtraction, err)
	}
	if !utf8.Valid(raw) {
		raw = []byte(strings.ToValidUTF8(string(raw), ""))
	}
	return Extraction{Text: string(raw), Method: MethodDirect, PageCount: 1}, nil
}

func (e *Extractor) extractImage(ctx context.Context, path string) (Extraction, error) {
	if e.ocr == nil {
		return Extraction{}, fmt.Errorf("extract %s: image input: %w: %w", path, util.ErrExtraction, util.ErrUnsupportedScannedDocument)
	}
	text, err := e.ocr.Recognize(ctx, path)
	if err != nil {
		return Extraction{}, fmt.Errorf("ocr %s: %w: %w", path, util.ErrExtraction, err)
	}
	return Extraction{Text: joinLines(text), Method: MethodOCR, PageCount: 1}, nil
}

func averageCharsPerPage(text string, pages int) float64 {
	if pages <= 0 {
		return 0
	}
	return float64(utf8.RuneCountInString(strings.TrimSpace(text))) / float64(pages)
}
