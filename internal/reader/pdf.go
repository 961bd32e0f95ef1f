package reader

import (
	"bytes"

	"github.com/ledongthuc/pdf"
)

// extractPDF extracts the text layer of a PDF. Image-only PDFs yield an
// empty string; OCR is out of scope.
func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
