package core

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/echotwin/echotwin/internal/apperr"
)

const (
	mimePDF  = "application/pdf"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// ExtractText converts an uploaded file into plain text based on its declared
// MIME type. PDFs yield their text layer, word-processor documents yield raw
// text with formatting discarded, and anything else is read verbatim as
// UTF-8. The caller owns the file and removes it regardless of outcome.
func ExtractText(path, mimeType string) (string, error) {
	base := mimeType
	if i := strings.Index(mimeType, ";"); i >= 0 {
		base = strings.TrimSpace(mimeType[:i])
	}

	switch base {
	case mimePDF:
		return extractPDF(path)
	case mimeDOCX, "application/msword":
		return extractDOCX(path)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", apperr.NewUpstream("reading uploaded file", err)
		}
		return string(data), nil
	}
}

func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", apperr.NewUpstream("parsing PDF", err)
	}
	// Close the underlying file whether or not extraction succeeds.
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", apperr.NewUpstream("extracting PDF text layer", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", apperr.NewUpstream("reading PDF text layer", err)
	}
	return buf.String(), nil
}

// extractDOCX pulls the text runs out of word/document.xml. A .docx is a zip
// archive; the <w:t> elements hold the text and </w:p> ends a paragraph.
func extractDOCX(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", apperr.NewUpstream("opening word document", err)
	}
	defer zr.Close()

	var doc io.ReadCloser
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc, err = f.Open()
			if err != nil {
				return "", apperr.NewUpstream("opening word document body", err)
			}
			break
		}
	}
	if doc == nil {
		return "", apperr.NewUpstream("parsing word document",
			fmt.Errorf("word/document.xml missing from archive"))
	}
	defer doc.Close()

	var sb strings.Builder
	decoder := xml.NewDecoder(doc)
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", apperr.NewUpstream("decoding word document", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}
