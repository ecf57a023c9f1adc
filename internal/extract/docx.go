package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"docsearch/internal/util"
)

type docxDocument struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []struct {
		Text []struct {
			Content string `xml:",chardata"`
		} `xml:"t"`
	} `xml:"r"`
}

func (e *Extractor) extractDOCX(path string) (Extraction, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return Extraction{}, fmt.Errorf("open docx %s: %w: %w", path, util.ErrExtraction, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return Extraction{}, fmt.Errorf("open document.xml: %w: %w", util.ErrExtraction, err)
		}
		raw, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return Extraction{}, fmt.Errorf("read document.xml: %w: %w", util.ErrExtraction, err)
		}
		text, err := docxText(raw)
		if err != nil {
			return Extraction{}, fmt.Errorf("parse document.xml: %w: %w", util.ErrExtraction, err)
		}
		return Extraction{Text: text, Method: MethodDirect, PageCount: 1}, nil
	}
	return Extraction{}, fmt.Errorf("docx %s has no word/document.xml: %w", path, util.ErrExtraction)
}

// docxText joins paragraphs with a newline, one line per paragraph.
func docxText(raw []byte) (string, error) {
	var doc docxDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return "", err
	}
	paras := make([]string, 0, len(doc.Body.Paragraphs))
	for _, p := range doc.Body.Paragraphs {
		var b strings.Builder
		for _, r := range p.Runs {
			for _, t := range r.Text {
				b.WriteString(t.Content)
			}
		}
		paras = append(paras, b.String())
	}
	return strings.Join(paras, "\n"), nil
}
