package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrUnreadable covers malformed, corrupt and password-protected PDFs.
	// The underlying library reports all of these as parse failures, so a
	// single kind is used.
	ErrUnreadable = errors.New("unreadable PDF")

	// ErrNoText means the PDF parsed fine but no page yielded any text.
	ErrNoText = errors.New("no extractable text in PDF")
)

// ExtractPDF returns the concatenated plain text of all pages, in document
// order, separated by newlines.
func ExtractPDF(data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty input", ErrUnreadable)
	}

	// The parser panics on some malformed inputs instead of returning an
	// error; fold those into ErrUnreadable.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrUnreadable, r)
		}
	}()

	reader := bytes.NewReader(data)

	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	var textBuilder strings.Builder
	numPages := pdfReader.NumPage()

	for i := 1; i <= numPages; i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// Skip unreadable pages, keep the rest
			continue
		}

		textBuilder.WriteString(pageText)
		textBuilder.WriteString("\n")
	}

	extractedText := strings.TrimSpace(textBuilder.String())

	if extractedText == "" {
		return "", ErrNoText
	}

	return extractedText, nil
}
