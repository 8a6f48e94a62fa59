// Package render writes an extracted article in one of the output formats.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/hyperifyio/goreadable/internal/readable"
)

// Format names an output format.
type Format string

const (
	HTML     Format = "html"
	Text     Format = "text"
	Markdown Format = "markdown"
	PDF      Format = "pdf"
)

// ParseFormat accepts a format name, case-insensitively. Empty means HTML.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return HTML, nil
	case HTML, Text, Markdown, PDF:
		return f, nil
	case "md":
		return Markdown, nil
	case "txt":
		return Text, nil
	default:
		return "", fmt.Errorf("unknown format %q (want html, text, markdown or pdf)", s)
	}
}

// ContentType is the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case Text:
		return "text/plain; charset=utf-8"
	case Markdown:
		return "text/markdown; charset=utf-8"
	case PDF:
		return "application/pdf"
	default:
		return "text/html; charset=utf-8"
	}
}

// Write renders a in format f to w.
func Write(w io.Writer, a *readable.Article, f Format) error {
	switch f {
	case HTML, "":
		_, err := io.WriteString(w, a.HTML+"\n")
		return err
	case Text:
		_, err := io.WriteString(w, PlainText(a.HTML)+"\n")
		return err
	case Markdown:
		md, err := ToMarkdown(a.HTML, a.BaseURL)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, md+"\n")
		return err
	case PDF:
		md, err := ToMarkdown(a.HTML, a.BaseURL)
		if err != nil {
			return err
		}
		return WritePDF(w, a.Title, md)
	default:
		return fmt.Errorf("unknown format %q", f)
	}
}
