package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF renders each page with text under a "## Page N" heading so chunks
// can cite the page they came from. Pages without text are skipped.
func extractPDF(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	var b strings.Builder
	for n := 1; n <= r.NumPage(); n++ {
		page := r.Page(n)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract page %d: %w", n, err)
		}
		if text = strings.TrimSpace(text); text == "" {
			continue
		}
		writePage(&b, n, text)
	}
	return b.String(), nil
}

func writePage(b *strings.Builder, n int, text string) {
	if b.Len() > 0 {
		b.WriteString("\n\n")
	}
	fmt.Fprintf(b, "## Page %d\n\n%s", n, text)
}
