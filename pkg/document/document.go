// Package document turns requirement documents into plain text that can be
// fed to the extraction pipeline.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxDocumentSize caps uploaded and fetched documents.
	MaxDocumentSize = 10 << 20
	docXMLMax       = 50 << 20
)

var (
	ErrUnsupported = errors.New("unsupported document type")
	ErrTooLarge    = errors.New("document too large")
	ErrEmpty       = errors.New("document contains no text")
)

var reNewlines = regexp.MustCompile(`\n{3,}`)

// Text extracts the text of an uploaded file. The format is picked from the
// file extension; files without one are treated as plain text.
func Text(name string, content []byte) (string, error) {
	if len(content) > MaxDocumentSize {
		return "", ErrTooLarge
	}

	var (
		text string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".docx":
		text, err = parseDocx(content)
	case "", ".txt", ".md", ".markdown", ".text":
		text, err = plainText(content)
	case ".html", ".htm":
		text, err = htmlText(bytes.NewReader(content), nil)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}
	if err != nil {
		return "", err
	}
	return normalize(text)
}

func plainText(content []byte) (string, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(content) {
		return "", fmt.Errorf("%w: text is not valid UTF-8", ErrUnsupported)
	}
	return string(content), nil
}

// normalize trims the text, unifies line endings and collapses runs of blank
// lines.
func normalize(text string) (string, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSpace(text)
	text = reNewlines.ReplaceAllString(text, "\n\n")
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}
