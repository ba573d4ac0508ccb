package extractor

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"github.com/yungbote/docchat-backend/internal/domain"
)

// PageSpan maps a page number (1-based) to its character range inside
// Extraction.Text.
type PageSpan struct {
	Page  int
	Start int
	End   int
}

type Extraction struct {
	Text     string
	Pages    []PageSpan
	Warnings []string
}

// Extract determines the true file type from bytes (sniffing), then pulls
// plain text. PDF goes through a per-page reader first so chunks can be
// traced back to pages; if that fails a permissive whole-document pass runs
// before the upload is declared unparsable.
// Supported: PDF, TXT/MD, HTML (strip tags).
func Extract(originalName string, mimeType string, data []byte) (*Extraction, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	mt := strings.ToLower(strings.TrimSpace(mimeType))

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file name=%s mime=%s", domain.ErrUnparsableDocument, originalName, mimeType)
	}

	if isPDF(data) {
		return extractPDF(data)
	}

	if looksLikeHTML(data) || mt == "text/html" || ext == ".html" || ext == ".htm" {
		text := extractHTML(string(data))
		if text == "" {
			return nil, fmt.Errorf("%w: html contained no text name=%s", domain.ErrUnparsableDocument, originalName)
		}
		return singlePage(text), nil
	}

	if isProbablyText(data) || mt == "text/plain" || ext == ".txt" || ext == ".md" || ext == ".markdown" {
		text := normalizeText(string(data))
		if text == "" {
			return nil, fmt.Errorf("%w: file contained no text name=%s", domain.ErrUnparsableDocument, originalName)
		}
		return singlePage(text), nil
	}

	if mt == "application/pdf" || ext == ".pdf" {
		head := firstBytesHex(data, 16)
		return nil, fmt.Errorf(
			"%w: file claims pdf but missing %%PDF header name=%s mime=%s head=%s",
			domain.ErrUnparsableDocument, originalName, mimeType, head,
		)
	}

	return nil, fmt.Errorf(
		"%w: unsupported file type name=%s ext=%s mime=%s head=%s",
		domain.ErrUnparsableDocument, originalName, ext, mimeType, firstBytesHex(data, 16),
	)
}

// ------------------------
// Sniff helpers
// ------------------------

func isPDF(b []byte) bool {
	// PDF starts with "%PDF-"
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

func looksLikeHTML(b []byte) bool {
	s := strings.ToLower(string(b[:min(len(b), 2048)]))
	if strings.HasPrefix(strings.TrimSpace(s), "<!doctype") {
		return true
	}
	if strings.HasPrefix(strings.TrimSpace(s), "<html") {
		return true
	}
	// also catch saved error pages
	if strings.Contains(s, "<html") && strings.Contains(s, "</html>") {
		return true
	}
	return false
}

func isProbablyText(b []byte) bool {
	// Heuristic: if most bytes are printable / whitespace and no NULs.
	sample := b[:min(len(b), 4096)]
	nul := 0
	good := 0
	for _, c := range sample {
		if c == 0x00 {
			nul++
			continue
		}
		if c == '\n' || c == '\r' || c == '\t' || (c >= 0x20 && c <= 0x7E) || c >= 0x80 {
			good++
		}
	}
	if nul > 0 {
		return false
	}
	// allow some binary noise
	return float64(good)/float64(len(sample)) > 0.9
}

func firstBytesHex(b []byte, n int) string {
	n = min(len(b), n)
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		out = append(out, hexdigits[b[i]>>4], hexdigits[b[i]&0x0f])
	}
	return string(out)
}

// ------------------------
// PDF
// ------------------------

func extractPDF(data []byte) (*Extraction, error) {
	out, primaryErr := extractPDFPages(data)
	if primaryErr == nil {
		return out, nil
	}

	text, fallbackErr := extractPDFWhole(data)
	if fallbackErr == nil {
		ex := singlePage(text)
		ex.Warnings = append(ex.Warnings, fmt.Sprintf("per-page pdf parse failed, used whole-document pass: %v", primaryErr))
		return ex, nil
	}

	return nil, fmt.Errorf(
		"%w: pdf parse failed (primary: %v; fallback: %v)",
		domain.ErrUnparsableDocument, primaryErr, fallbackErr,
	)
}

func extractPDFPages(data []byte) (out *Extraction, err error) {
	// The pdf package panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("pdf reader: %w", err)
	}

	ex := &Extraction{}
	var b strings.Builder
	empty := 0
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			empty++
			continue
		}
		raw, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			ex.Warnings = append(ex.Warnings, fmt.Sprintf("page %d: %v", i, pageErr))
			continue
		}
		text := normalizeText(raw)
		if text == "" {
			empty++
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		start := b.Len()
		b.WriteString(text)
		ex.Pages = append(ex.Pages, PageSpan{Page: i, Start: start, End: b.Len()})
	}

	ex.Text = b.String()
	if strings.TrimSpace(ex.Text) == "" {
		return nil, fmt.Errorf("pdf yielded no text (%d empty pages, %d warnings)", empty, len(ex.Warnings))
	}
	return ex, nil
}

func extractPDFWhole(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf plaintext: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("pdf read: %w", err)
	}
	text = normalizeText(string(b))
	if text == "" {
		return "", fmt.Errorf("pdf yielded no text")
	}
	return text, nil
}

// ------------------------
// Text normalization
// ------------------------

var (
	htmlTagRe      = regexp.MustCompile(`(?s)<[^>]*>`)
	spaceRunRe     = regexp.MustCompile(`[ \t]+`)
	newlineRunRe   = regexp.MustCompile(`\n{3,}`)
	trailingWSRe   = regexp.MustCompile(`[ \t]+\n`)
	leadingBlankRe = regexp.MustCompile(`\n[ \t]+`)
)

func extractHTML(s string) string {
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return normalizeText(s)
}

// normalizeText collapses horizontal whitespace runs but keeps paragraph
// breaks: the chunker splits on "\n\n" first, so blank lines carry meaning.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, " ", " ")
	s = spaceRunRe.ReplaceAllString(s, " ")
	s = trailingWSRe.ReplaceAllString(s, "\n")
	s = leadingBlankRe.ReplaceAllString(s, "\n")
	s = newlineRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func singlePage(text string) *Extraction {
	return &Extraction{
		Text:  text,
		Pages: []PageSpan{{Page: 1, Start: 0, End: len(text)}},
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// PageForOffset returns the page containing the given character offset, or 0
// when the offset maps to no page (separator gaps included in the next page).
func PageForOffset(pages []PageSpan, offset int) int {
	for _, p := range pages {
		if offset >= p.Start && offset < p.End {
			return p.Page
		}
	}
	if n := len(pages); n > 0 && offset >= pages[n-1].End {
		return pages[n-1].Page
	}
	return 0
}
