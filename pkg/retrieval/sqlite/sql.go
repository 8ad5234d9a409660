package sqlite

import (
	"fmt"
	"strings"

	"github.com/ArturGR3/AI-Hackathon/pkg/retrieval"
)

// whereClause renders the predicate and time range with ? placeholders.
func whereClause(p *retrieval.Predicate, tr retrieval.TimeRange) (string, []any, error) {
	var (
		conds []string
		args  []any
	)
	if p != nil {
		if err := p.Validate(); err != nil {
			return "", nil, err
		}
		cond, condArgs, err := render(p)
		if err != nil {
			return "", nil, err
		}
		conds = append(conds, cond)
		args = append(args, condArgs...)
	}
	if !tr.Start.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, tr.Start.UnixNano())
	}
	if !tr.End.IsZero() {
		conds = append(conds, "created_at < ?")
		args = append(args, tr.End.UnixNano())
	}
	if len(conds) == 0 {
		return "", nil, nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args, nil
}

// render checks json_type before comparing so a missing key or a value of
// another type is false.
func render(p *retrieval.Predicate) (string, []any, error) {
	if !p.IsLeaf() {
		parts := make([]string, 0, len(p.Operands))
		var args []any
		for _, op := range p.Operands {
			s, a, err := render(op)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, s)
			args = append(args, a...)
		}
		return "(" + strings.Join(parts, " "+string(p.Logic)+" ") + ")", args, nil
	}

	path, err := jsonPath(p.Field)
	if err != nil {
		return "", nil, err
	}
	switch retrieval.ValueKind(p.Value) {
	case retrieval.KindString:
		return fmt.Sprintf("(json_type(metadata, ?) = 'text' AND json_extract(metadata, ?) %s ?)", sqlOp(p.Op)),
			[]any{path, path, p.Value}, nil
	case retrieval.KindNumber:
		f, _ := retrieval.AsFloat(p.Value)
		return fmt.Sprintf("(json_type(metadata, ?) IN ('integer', 'real') AND json_extract(metadata, ?) %s ?)", sqlOp(p.Op)),
			[]any{path, path, f}, nil
	case retrieval.KindBool:
		want := p.Value.(bool)
		if p.Op == retrieval.OpNe {
			want = !want
		}
		return "(json_type(metadata, ?) = ?)", []any{path, fmt.Sprint(want)}, nil
	}
	return "", nil, fmt.Errorf("unsupported value %v for field %q", p.Value, p.Field)
}

// jsonPath quotes the key so dots and spaces in field names are literal.
func jsonPath(field string) (string, error) {
	if strings.ContainsAny(field, `"\`) {
		return "", fmt.Errorf("field name %q cannot contain quotes or backslashes", field)
	}
	return `$."` + field + `"`, nil
}

func sqlOp(op retrieval.Op) string {
	switch op {
	case retrieval.OpEq:
		return "="
	case retrieval.OpNe:
		return "<>"
	}
	return string(op)
}
