// Package render formats decoded entries as text.
package render

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tinytelemetry/vxlview/internal/entrycache"
)

const (
	// FixedAllowance is the budget reserved for everything except the
	// header and body: time, ids, names and punctuation.
	FixedAllowance = 256
	// MaxBudget caps the self-sized budget of Render.
	MaxBudget = 64 << 10
)

var (
	// ErrTruncated means the text did not fit the budget. The returned text
	// is the prefix that did fit.
	ErrTruncated = errors.New("render: output truncated")
	// ErrFormat means the entry could not be formatted at all.
	ErrFormat = errors.New("render: format error")
)

// Names resolves interned string indices of the open log.
type Names interface {
	Component(i uint16) string
	File(i uint16) string
	Function(i uint16) string
}

// Budget returns the byte budget Render uses for e.
func Budget(e *entrycache.Entry) int {
	n := len(e.Header) + len(e.Body) + FixedAllowance
	if n > MaxBudget {
		n = MaxBudget
	}
	return n
}

// Render formats e in short (one line) or long (multi-line) form, sized by
// Budget.
func Render(e *entrycache.Entry, names Names, long bool) (string, error) {
	if e == nil {
		return "", fmt.Errorf("%w: nil entry", ErrFormat)
	}
	return RenderLimit(e, names, long, Budget(e))
}

// RenderLimit formats e into at most limit bytes. If the text is longer it is
// cut at a rune boundary and returned together with ErrTruncated, so the
// caller can retry with a larger limit.
func RenderLimit(e *entrycache.Entry, names Names, long bool, limit int) (string, error) {
	if e == nil {
		return "", fmt.Errorf("%w: nil entry", ErrFormat)
	}
	if names == nil {
		return "", fmt.Errorf("%w: no names table", ErrFormat)
	}
	if !utf8.ValidString(e.Header) || !utf8.ValidString(e.Body) {
		return "", fmt.Errorf("%w: entry %d is not valid UTF-8", ErrFormat, e.Raw)
	}

	var b strings.Builder
	b.Grow(min(limit, Budget(e)))
	if long {
		writeLong(&b, e, names)
	} else {
		writeShort(&b, e, names)
	}

	s := b.String()
	if len(s) <= limit {
		return s, nil
	}
	return truncate(s, limit), ErrTruncated
}

// [time pid:tid component\file:line (function)] header // body
func writeShort(b *strings.Builder, e *entrycache.Entry, names Names) {
	fmt.Fprintf(b, "[%s %04x:%04x %s\\%s:%s (%s)] %s",
		e.TimeText, e.PID, e.TID,
		names.Component(e.Component), names.File(e.File), e.LineText,
		names.Function(e.Function), e.Header)
	if e.Body != "" {
		b.WriteString(" // ")
		b.WriteString(e.Body)
	}
}

func writeLong(b *strings.Builder, e *entrycache.Entry, names Names) {
	fmt.Fprintf(b, "Date/Time: %s\r\n", e.TimeText)
	fmt.Fprintf(b, "Severity: %s\r\n", e.Severity)
	fmt.Fprintf(b, "Source: PID %d, TID %d, %s\\%s:%s (in function %s)\r\n",
		e.PID, e.TID,
		names.Component(e.Component), names.File(e.File), e.LineText,
		names.Function(e.Function))
	b.WriteString(e.Header)
	if e.Body != "" {
		b.WriteString("\r\n\r\n")
		b.WriteString(e.Body)
	}
	b.WriteString("\r\n")
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
