// Package filter decides which log entries are visible.
//
// Criteria is an immutable description of what to show. Compile turns it into
// a Predicate whose Matches method is pure and deterministic, so callers may
// re-evaluate it freely.
package filter

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/tinytelemetry/vxlview/internal/entrycache"
	"github.com/tinytelemetry/vxlview/internal/logparse"
	"github.com/tinytelemetry/vxlview/internal/vxl"
)

// Names resolves interned string indices of the open log.
type Names interface {
	Component(i uint16) string
	File(i uint16) string
	Function(i uint16) string
}

// Criteria selects entries. Empty lists and zero values match everything.
type Criteria struct {
	Components    []string  `yaml:"components,omitempty" json:"components,omitempty"`
	Files         []string  `yaml:"files,omitempty" json:"files,omitempty"`
	Functions     []string  `yaml:"functions,omitempty" json:"functions,omitempty"`
	Severities    []string  `yaml:"severities,omitempty" json:"severities,omitempty"`
	Text          string    `yaml:"text,omitempty" json:"text,omitempty"`
	CaseSensitive bool      `yaml:"case_sensitive,omitempty" json:"case_sensitive,omitempty"`
	Since         time.Time `yaml:"since,omitempty" json:"since,omitempty"`
	Until         time.Time `yaml:"until,omitempty" json:"until,omitempty"`
	PID           uint32    `yaml:"pid,omitempty" json:"pid,omitempty"`
	TID           uint32    `yaml:"tid,omitempty" json:"tid,omitempty"`
	Expr          string    `yaml:"expr,omitempty" json:"expr,omitempty"`
}

// IsZero reports whether c matches every entry.
func (c Criteria) IsZero() bool {
	return c.Equal(Criteria{})
}

// Equal reports whether c and o select the same entries by construction.
func (c Criteria) Equal(o Criteria) bool {
	return slices.Equal(c.Components, o.Components) &&
		slices.Equal(c.Files, o.Files) &&
		slices.Equal(c.Functions, o.Functions) &&
		slices.Equal(c.Severities, o.Severities) &&
		c.Text == o.Text &&
		c.CaseSensitive == o.CaseSensitive &&
		c.Since.Equal(o.Since) &&
		c.Until.Equal(o.Until) &&
		c.PID == o.PID &&
		c.TID == o.TID &&
		strings.TrimSpace(c.Expr) == strings.TrimSpace(o.Expr)
}

// Clone returns a deep copy of c.
func (c Criteria) Clone() Criteria {
	out := c
	out.Components = slices.Clone(c.Components)
	out.Files = slices.Clone(c.Files)
	out.Functions = slices.Clone(c.Functions)
	out.Severities = slices.Clone(c.Severities)
	return out
}

// Predicate is compiled Criteria bound to the interned names of one log.
type Predicate struct {
	names      Names
	components map[string]bool
	files      map[string]bool
	functions  map[string]bool
	severities [vxl.NumSeverities]bool
	anySev     bool
	text       string
	fold       bool
	since      time.Time
	until      time.Time
	pid        uint32
	tid        uint32
	expr       *exprFilter
}

// Compile validates c and prepares it for evaluation against entries whose
// interned indices resolve through names.
func Compile(c Criteria, names Names) (*Predicate, error) {
	if !c.Since.IsZero() && !c.Until.IsZero() && c.Until.Before(c.Since) {
		return nil, fmt.Errorf("filter: until %s is before since %s", c.Until, c.Since)
	}
	if names == nil && (len(c.Components) > 0 || len(c.Files) > 0 || len(c.Functions) > 0 || c.Expr != "") {
		return nil, errors.New("filter: name criteria need a names table")
	}

	p := &Predicate{
		names:      names,
		components: set(c.Components),
		files:      set(c.Files),
		functions:  set(c.Functions),
		anySev:     len(c.Severities) == 0,
		text:       c.Text,
		fold:       !c.CaseSensitive,
		since:      c.Since,
		until:      c.Until,
		pid:        c.PID,
		tid:        c.TID,
	}
	for _, name := range c.Severities {
		sev, ok := logparse.ParseSeverity(name)
		if !ok {
			return nil, fmt.Errorf("filter: unknown severity %q", name)
		}
		p.severities[sev] = true
	}
	if p.fold {
		p.text = strings.ToLower(p.text)
	}

	expr, err := newExprFilter(c.Expr)
	if err != nil {
		return nil, fmt.Errorf("filter: expr: %w", err)
	}
	p.expr = expr
	return p, nil
}

// MatchAll returns a predicate that accepts every entry.
func MatchAll() *Predicate {
	return &Predicate{anySev: true, fold: true}
}

// Matches reports whether e passes the filter.
func (p *Predicate) Matches(e *entrycache.Entry) bool {
	if e == nil {
		return false
	}
	if !p.anySev && (!e.Severity.Valid() || !p.severities[e.Severity]) {
		return false
	}
	if p.pid != 0 && e.PID != p.pid {
		return false
	}
	if p.tid != 0 && e.TID != p.tid {
		return false
	}
	if !p.since.IsZero() && e.Time.Before(p.since) {
		return false
	}
	if !p.until.IsZero() && e.Time.After(p.until) {
		return false
	}
	if p.components != nil && !p.components[p.names.Component(e.Component)] {
		return false
	}
	if p.files != nil && !p.files[p.names.File(e.File)] {
		return false
	}
	if p.functions != nil && !p.functions[p.names.Function(e.Function)] {
		return false
	}
	if p.text != "" && !p.containsText(e) {
		return false
	}
	if p.expr != nil && !p.expr.eval(e, p.names) {
		return false
	}
	return true
}

func (p *Predicate) containsText(e *entrycache.Entry) bool {
	if p.fold {
		return strings.Contains(strings.ToLower(e.Header), p.text) ||
			strings.Contains(strings.ToLower(e.Body), p.text)
	}
	return strings.Contains(e.Header, p.text) || strings.Contains(e.Body, p.text)
}

func set(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

// exprFilter wraps a compiled CEL program evaluated per entry.
type exprFilter struct {
	prog cel.Program
}

func newExprFilter(expr string) (*exprFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("severity", cel.StringType),
		cel.Variable("component", cel.StringType),
		cel.Variable("file", cel.StringType),
		cel.Variable("function", cel.StringType),
		cel.Variable("line", cel.IntType),
		cel.Variable("pid", cel.IntType),
		cel.Variable("tid", cel.IntType),
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("header", cel.StringType),
		cel.Variable("body", cel.StringType),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression must evaluate to bool, got %s", ast.OutputType())
	}
	prog, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	return &exprFilter{prog: prog}, nil
}

func (f *exprFilter) eval(e *entrycache.Entry, names Names) bool {
	out, _, err := f.prog.Eval(map[string]any{
		"severity":  e.Severity.String(),
		"component": names.Component(e.Component),
		"file":      names.File(e.File),
		"function":  names.Function(e.Function),
		"line":      int64(e.Line),
		"pid":       int64(e.PID),
		"tid":       int64(e.TID),
		"ts_ms":     e.Time.UnixMilli(),
		"header":    e.Header,
		"body":      e.Body,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
