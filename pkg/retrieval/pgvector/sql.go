package pgvector

import (
	"fmt"
	"strings"

	"github.com/ArturGR3/AI-Hackathon/pkg/retrieval"
)

// sqlBuilder collects positional arguments while rendering SQL fragments.
type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// predicate renders p against the metadata JSONB column. Each leaf checks
// the JSON type first so a missing key, or a value of another type, is
// false rather than a cast error.
func (b *sqlBuilder) predicate(p *retrieval.Predicate) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	return b.render(p), nil
}

func (b *sqlBuilder) render(p *retrieval.Predicate) string {
	if !p.IsLeaf() {
		parts := make([]string, len(p.Operands))
		for i, op := range p.Operands {
			parts[i] = b.render(op)
		}
		return "(" + strings.Join(parts, " "+string(p.Logic)+" ") + ")"
	}

	key := b.arg(p.Field)
	var jsonType, lhs, rhs string
	switch retrieval.ValueKind(p.Value) {
	case retrieval.KindString:
		jsonType = "string"
		lhs = fmt.Sprintf("(metadata ->> %s::text)", key)
		if p.Op.Ordering() {
			lhs += ` COLLATE "C"`
		}
		rhs = b.arg(p.Value) + "::text"
	case retrieval.KindNumber:
		f, _ := retrieval.AsFloat(p.Value)
		jsonType = "number"
		lhs = fmt.Sprintf("(metadata ->> %s::text)::numeric", key)
		rhs = b.arg(f) + "::numeric"
	case retrieval.KindBool:
		jsonType = "boolean"
		lhs = fmt.Sprintf("(metadata ->> %s::text)::boolean", key)
		rhs = b.arg(p.Value) + "::boolean"
	}

	return fmt.Sprintf("(CASE WHEN jsonb_typeof(metadata -> %s::text) = '%s' THEN %s %s %s ELSE false END)",
		key, jsonType, lhs, sqlOp(p.Op), rhs)
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
