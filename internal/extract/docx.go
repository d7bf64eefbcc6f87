package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	docxDefaultPart     = "word/document.xml"
	docxContentTypes    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

type contentTypes struct {
	Overrides []struct {
		PartName    string `xml:"PartName,attr"`
		ContentType string `xml:"ContentType,attr"`
	} `xml:"Override"`
}

// extractDOCX renders the main document part as paragraphs separated by blank
// lines. Paragraphs styled Title or HeadingN become markdown headings.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}
	part := docxDefaultPart
	if ct, err := readZipPart(zr, docxContentTypes); err == nil {
		if p := mainDocumentPart(ct); p != "" {
			part = p
		}
	}
	doc, err := readZipPart(zr, part)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	return docxText(doc)
}

func readZipPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not found", name)
}

func mainDocumentPart(data []byte) string {
	var types contentTypes
	if err := xml.Unmarshal(data, &types); err != nil {
		return ""
	}
	for _, o := range types.Overrides {
		if o.ContentType == docxMainContentType {
			return strings.TrimPrefix(o.PartName, "/")
		}
	}
	return ""
}

func docxText(doc []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	var (
		out    strings.Builder
		para   strings.Builder
		level  int
		inText bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("extract DOCX: parse: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "p":
				para.Reset()
				level = 0
			case "pStyle":
				level = headingLevel(attrValue(el, "val"))
			case "t":
				inText = true
			case "tab", "br":
				para.WriteByte(' ')
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				line := strings.TrimSpace(para.String())
				if line == "" {
					continue
				}
				if out.Len() > 0 {
					out.WriteString("\n\n")
				}
				if level > 0 {
					out.WriteString(strings.Repeat("#", level))
					out.WriteByte(' ')
				}
				out.WriteString(line)
			}
		case xml.CharData:
			if inText {
				para.Write(el)
			}
		}
	}
	return out.String(), nil
}

func attrValue(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// headingLevel maps a paragraph style id to a markdown heading level, 0 for body text.
func headingLevel(style string) int {
	s := strings.ToLower(style)
	if s == "title" {
		return 1
	}
	if !strings.HasPrefix(s, "heading") {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimPrefix(s, "heading"))
	if err != nil || n < 1 {
		return 0
	}
	if n > 6 {
		n = 6
	}
	return n
}
