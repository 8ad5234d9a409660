package weaviate

import (
	"fmt"
	"regexp"

	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"

	"github.com/ArturGR3/AI-Hackathon/pkg/retrieval"
)

// Fixed properties of every object.
const (
	propContents  = "contents"
	propMetadata  = "metadata_json"
	propCreatedAt = "created_at"
	propSeq       = "seq"

	// metaPrefix namespaces flattened metadata properties.
	metaPrefix = "meta_"
)

// Weaviate data types used for flattened metadata.
const (
	typeText    = "text"
	typeNumber  = "number"
	typeBoolean = "boolean"
)

var propNameRe = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)

func metaProp(field string) string {
	return metaPrefix + field
}

// dataTypeOf maps a scalar metadata value to its property type, or "" when
// the value cannot be flattened.
func dataTypeOf(v any) string {
	switch retrieval.ValueKind(v) {
	case retrieval.KindString:
		return typeText
	case retrieval.KindNumber:
		return typeNumber
	case retrieval.KindBool:
		return typeBoolean
	}
	return ""
}

// prune resolves leaves that can never match because the class has no
// property for the field, or the property holds another type. It returns
// the remaining predicate and false when the whole tree is false.
func prune(p *retrieval.Predicate, props map[string]string) (*retrieval.Predicate, bool) {
	if p == nil {
		return nil, true
	}
	if p.IsLeaf() {
		if !propNameRe.MatchString(p.Field) {
			return nil, false
		}
		want := dataTypeOf(p.Value)
		if want == "" || props[metaProp(p.Field)] != want {
			return nil, false
		}
		return p, true
	}

	kept := make([]*retrieval.Predicate, 0, len(p.Operands))
	for _, op := range p.Operands {
		q, ok := prune(op, props)
		switch {
		case !ok && p.Logic == retrieval.And:
			return nil, false
		case ok:
			kept = append(kept, q)
		}
	}
	if len(kept) == 0 {
		return nil, false
	}
	if p.Logic == retrieval.Or {
		return retrieval.AnyOf(kept...), true
	}
	return retrieval.AllOf(kept...), true
}

// where converts an already pruned predicate into a where filter.
func where(p *retrieval.Predicate) (*filters.WhereBuilder, error) {
	if !p.IsLeaf() {
		operands := make([]*filters.WhereBuilder, 0, len(p.Operands))
		for _, op := range p.Operands {
			w, err := where(op)
			if err != nil {
				return nil, err
			}
			operands = append(operands, w)
		}
		operator := filters.And
		if p.Logic == retrieval.Or {
			operator = filters.Or
		}
		return filters.Where().WithOperator(operator).WithOperands(operands), nil
	}

	prop := metaProp(p.Field)
	leaf := filters.Where().WithPath([]string{prop}).WithOperator(whereOp(p.Op))
	switch retrieval.ValueKind(p.Value) {
	case retrieval.KindString:
		leaf = leaf.WithValueText(p.Value.(string))
	case retrieval.KindNumber:
		f, _ := retrieval.AsFloat(p.Value)
		leaf = leaf.WithValueNumber(f)
	case retrieval.KindBool:
		leaf = leaf.WithValueBoolean(p.Value.(bool))
	default:
		return nil, fmt.Errorf("unsupported value %v for field %q", p.Value, p.Field)
	}
	if p.Op != retrieval.OpNe {
		return leaf, nil
	}
	// NotEqual also matches objects where the property is null.
	present := filters.Where().WithPath([]string{prop}).WithOperator(filters.IsNull).WithValueBoolean(false)
	return filters.Where().WithOperator(filters.And).WithOperands([]*filters.WhereBuilder{present, leaf}), nil
}

func whereOp(op retrieval.Op) filters.WhereOperator {
	switch op {
	case retrieval.OpNe:
		return filters.NotEqual
	case retrieval.OpGt:
		return filters.GreaterThan
	case retrieval.OpGte:
		return filters.GreaterThanEqual
	case retrieval.OpLt:
		return filters.LessThan
	case retrieval.OpLte:
		return filters.LessThanEqual
	}
	return filters.Equal
}

func timeWhere(tr retrieval.TimeRange) []*filters.WhereBuilder {
	var out []*filters.WhereBuilder
	if !tr.Start.IsZero() {
		out = append(out, filters.Where().WithPath([]string{propCreatedAt}).
			WithOperator(filters.GreaterThanEqual).WithValueDate(tr.Start))
	}
	if !tr.End.IsZero() {
		out = append(out, filters.Where().WithPath([]string{propCreatedAt}).
			WithOperator(filters.LessThan).WithValueDate(tr.End))
	}
	return out
}

func idsWhere(ids []string) *filters.WhereBuilder {
	operands := make([]*filters.WhereBuilder, 0, len(ids))
	for _, id := range ids {
		operands = append(operands, filters.Where().WithPath([]string{"id"}).
			WithOperator(filters.Equal).WithValueText(id))
	}
	return allOrOne(filters.Or, operands)
}

// allOrOne joins operands, returning a single operand unwrapped and nil for none.
func allOrOne(operator filters.WhereOperator, operands []*filters.WhereBuilder) *filters.WhereBuilder {
	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	}
	return filters.Where().WithOperator(operator).WithOperands(operands)
}
