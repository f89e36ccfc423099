// Package cv reads the plain text of a CV file.
package cv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrEmpty is returned when a CV file holds no readable text.
var ErrEmpty = errors.New("cv has no text")

// Extensions lists the file types ExtractText understands.
var Extensions = []string{".pdf", ".txt", ".md"}

// ExtractText returns the text of a PDF, plain text or markdown CV. Line endings are normalized so
// the same CV hashes identically regardless of origin.
func ExtractText(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("open cv: %w", err)
	}

	var (
		text string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		text, err = pdfText(path)
	case ".txt", ".md":
		var data []byte
		data, err = os.ReadFile(path)
		text = string(data)
	default:
		return "", fmt.Errorf("unsupported cv format %q (supported: %s)", ext, strings.Join(Extensions, ", "))
	}
	if err != nil {
		return "", err
	}

	text = clean(text)
	if text == "" {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), ErrEmpty)
	}
	return text, nil
}

func pdfText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("read pdf page %d: %w", i, err)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
