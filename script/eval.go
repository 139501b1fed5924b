package script

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var templateExpr = regexp.MustCompile(`\$\{([^}]+)}`)

// Template is a string with embedded ${...} expressions.
type Template struct {
	raw      string
	segments []templateSegment
}

// templateSegment is either literal text or a compiled expression.
type templateSegment struct {
	text string
	code Script
}

// NewTemplate compiles every ${...} expression in raw.
func NewTemplate(compiler Compiler, raw string) (*Template, error) {
	if strings.Count(raw, "${") > strings.Count(raw, "}") {
		return nil, fmt.Errorf("unclosed template expression in string: %q", raw)
	}
	t := &Template{raw: raw}
	var lastEnd int
	for _, match := range templateExpr.FindAllStringSubmatchIndex(raw, -1) {
		if match[0] > lastEnd {
			t.segments = append(t.segments, templateSegment{text: raw[lastEnd:match[0]]})
		}
		expr := raw[match[2]:match[3]]
		code, err := compiler.Compile(context.Background(), expr)
		if err != nil {
			return nil, fmt.Errorf("failed to compile template expression %q: %w", expr, err)
		}
		t.segments = append(t.segments, templateSegment{code: code})
		lastEnd = match[1]
	}
	if lastEnd < len(raw) {
		t.segments = append(t.segments, templateSegment{text: raw[lastEnd:]})
	}
	return t, nil
}

// Eval renders the template.
func (t *Template) Eval(ctx context.Context, globals map[string]any) (string, error) {
	var sb strings.Builder
	for _, segment := range t.segments {
		if segment.code == nil {
			sb.WriteString(segment.text)
			continue
		}
		result, err := segment.code.Evaluate(ctx, globals)
		if err != nil {
			return "", fmt.Errorf("failed to evaluate template expression: %w", err)
		}
		sb.WriteString(result.String())
	}
	return sb.String(), nil
}

// String returns the template source.
func (t *Template) String() string {
	return t.raw
}
