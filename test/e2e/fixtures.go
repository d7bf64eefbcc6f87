package e2e

import (
	"archive/zip"
	"bytes"
	"html"

	"github.com/xuri/excelize/v2"
)

// SupportedFileExtensions are the corpus formats generated for file-based tests.
// PDF extraction is covered by internal/extract; a minimal PDF with
// extractable text is not generated here.
var SupportedFileExtensions = []string{".txt", ".md", ".rst", ".docx", ".xlsx"}

// WriteMinimalFile returns the bytes of a minimal file of type ext holding text.
// Plain types get the raw text.
func WriteMinimalFile(ext, text string) ([]byte, error) {
	switch ext {
	case ".docx":
		return minimalDocx(text)
	case ".xlsx":
		return minimalXlsx(text)
	default:
		return []byte(text), nil
	}
}

func minimalDocx(text string) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create("word/document.xml")
	if err != nil {
		return nil, err
	}
	_, err = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` +
		html.EscapeString(text) + `</w:t></w:r></w:p></w:body></w:document>`))
	if err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func minimalXlsx(text string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetCellValue("Sheet1", "A1", text); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
