// Package extract pulls plain text out of uploaded documents for synthesis.
// Supported formats are .txt and .docx; everything else is rejected up front
// so the caller can map the failure to a client error.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/fumiama/go-docx"
)

var (
	ErrUnsupportedType = errors.New("extract: unsupported file type")
	ErrEmptyDocument   = errors.New("extract: document contains no text")
)

// Text extracts readable text from an uploaded file, using the filename
// extension to pick the parser. The result is trimmed and truncated to at
// most limit characters (runes, not bytes) on a word boundary where one is
// near; limit <= 0 means no ceiling. The bool reports whether truncation
// dropped any text.
func Text(filename string, data []byte, limit int) (string, bool, error) {
	var (
		text string
		err  error
	)
	switch strings.ToLower(path.Ext(filename)) {
	case ".txt":
		text, err = plainText(data)
	case ".docx":
		text, err = docxText(data)
	default:
		return "", false, fmt.Errorf("%s: %w", filename, ErrUnsupportedType)
	}
	if err != nil {
		return "", false, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false, ErrEmptyDocument
	}
	cut := truncate(text, limit)
	return cut, len(cut) < len(text), nil
}

func plainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errors.New("extract: text file is not valid UTF-8")
	}
	return string(data), nil
}

// docxText collects paragraph and table text from the OOXML body, one line
// per block. Formatting, headers and embedded objects are dropped.
func docxText(data []byte) (string, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("extract: parse docx: %w", err)
	}
	var sb strings.Builder
	for _, item := range doc.Document.Body.Items {
		switch block := item.(type) {
		case *docx.Paragraph:
			sb.WriteString(block.String())
			sb.WriteByte('\n')
		case *docx.Table:
			sb.WriteString(block.String())
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}

// truncate cuts s to at most limit runes, backing up to the previous space
// when one falls in the last tenth of the window.
func truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)[:limit]
	cut := string(runes)
	if i := strings.LastIndexByte(cut, ' '); i > limit*9/10 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}
