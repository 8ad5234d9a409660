package retrieval

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Op is a leaf comparison operator.
type Op string

const (
	OpEq  Op = "=="
	OpNe  Op = "!="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpLt  Op = "<"
	OpLte Op = "<="
)

func (o Op) valid() bool {
	switch o {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// Ordering reports whether the operator compares order rather than equality.
func (o Op) Ordering() bool {
	return o == OpGt || o == OpGte || o == OpLt || o == OpLte
}

// Logic joins the operands of a composite predicate.
type Logic string

const (
	And Logic = "AND"
	Or  Logic = "OR"
)

// Predicate is a boolean expression over metadata fields. A leaf compares
// one field against a value; a composite joins its operands with Logic.
//
// Example:
//
//	p := retrieval.AnyOf(
//	    retrieval.Eq("sender", "Tax"),
//	    retrieval.Eq("addressed_to", "Nune Grygorian"),
//	)
type Predicate struct {
	Field string `json:"field,omitempty"`
	Op    Op     `json:"op,omitempty"`
	Value any    `json:"value,omitempty"`

	Logic    Logic        `json:"logic,omitempty"`
	Operands []*Predicate `json:"operands,omitempty"`
}

// Compare builds a leaf predicate.
// Named string and bool types are normalised to their base type.
func Compare(field string, op Op, value any) *Predicate {
	if value != nil {
		rv := reflect.ValueOf(value)
		switch rv.Kind() {
		case reflect.String:
			value = rv.String()
		case reflect.Bool:
			value = rv.Bool()
		}
	}
	return &Predicate{Field: field, Op: op, Value: value}
}

// Eq builds an equality leaf.
func Eq(field string, value any) *Predicate {
	return Compare(field, OpEq, value)
}

// AnyOf joins predicates with OR. Nil operands are skipped; a single operand
// is returned as is and no operands yield nil.
func AnyOf(preds ...*Predicate) *Predicate {
	return join(Or, preds)
}

// AllOf joins predicates with AND, with the same nil handling as AnyOf.
func AllOf(preds ...*Predicate) *Predicate {
	return join(And, preds)
}

func join(logic Logic, preds []*Predicate) *Predicate {
	operands := make([]*Predicate, 0, len(preds))
	for _, p := range preds {
		if p != nil {
			operands = append(operands, p)
		}
	}
	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	}
	return &Predicate{Logic: logic, Operands: operands}
}

// MetadataEquals turns an equality filter map into an AND of equality
// leaves, in key order.
func MetadataEquals(filter map[string]any) *Predicate {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	leaves := make([]*Predicate, 0, len(keys))
	for _, k := range keys {
		leaves = append(leaves, Eq(k, filter[k]))
	}
	return AllOf(leaves...)
}

// IsLeaf reports whether p is a single comparison.
func (p *Predicate) IsLeaf() bool {
	return p.Logic == "" && len(p.Operands) == 0
}

// Validate checks that the tree is well formed: known operators, non-empty
// fields, scalar values, and no ordering comparisons on booleans.
func (p *Predicate) Validate() error {
	if p == nil {
		return nil
	}
	if !p.IsLeaf() {
		if p.Logic != And && p.Logic != Or {
			return fmt.Errorf("unknown predicate logic %q", p.Logic)
		}
		if len(p.Operands) == 0 {
			return fmt.Errorf("%s predicate has no operands", p.Logic)
		}
		for i, op := range p.Operands {
			if op == nil {
				return fmt.Errorf("%s operand %d is nil", p.Logic, i)
			}
			if err := op.Validate(); err != nil {
				return err
			}
		}
		return nil
	}

	if strings.TrimSpace(p.Field) == "" {
		return fmt.Errorf("predicate field is empty")
	}
	if !p.Op.valid() {
		return fmt.Errorf("predicate on %q has unknown operator %q", p.Field, p.Op)
	}
	switch ValueKind(p.Value) {
	case KindString, KindNumber:
	case KindBool:
		if p.Op.Ordering() {
			return fmt.Errorf("operator %s is not defined for boolean field %q", p.Op, p.Field)
		}
	default:
		return fmt.Errorf("predicate on %q has unsupported value type %T", p.Field, p.Value)
	}
	return nil
}

// Match evaluates the predicate against metadata. A leaf whose field is
// missing, or holds a value of a different kind, does not match.
func (p *Predicate) Match(metadata map[string]any) bool {
	if p == nil {
		return true
	}
	if !p.IsLeaf() {
		switch p.Logic {
		case Or:
			for _, op := range p.Operands {
				if op.Match(metadata) {
					return true
				}
			}
			return false
		default:
			for _, op := range p.Operands {
				if !op.Match(metadata) {
					return false
				}
			}
			return true
		}
	}

	actual, ok := metadata[p.Field]
	if !ok {
		return false
	}
	kind := ValueKind(p.Value)
	if ValueKind(actual) != kind {
		return false
	}

	var cmp int
	switch kind {
	case KindString:
		cmp = strings.Compare(actual.(string), p.Value.(string))
	case KindNumber:
		a, _ := AsFloat(actual)
		b, _ := AsFloat(p.Value)
		switch {
		case a < b:
			cmp = -1
		case a > b:
			cmp = 1
		}
	case KindBool:
		if actual.(bool) != p.Value.(bool) {
			cmp = 1
		}
	default:
		return false
	}

	switch p.Op {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	}
	return false
}

// Fields returns the distinct metadata fields referenced by the tree.
func (p *Predicate) Fields() []string {
	seen := map[string]bool{}
	var out []string
	var walk func(*Predicate)
	walk = func(n *Predicate) {
		if n == nil {
			return
		}
		if n.IsLeaf() {
			if !seen[n.Field] {
				seen[n.Field] = true
				out = append(out, n.Field)
			}
			return
		}
		for _, op := range n.Operands {
			walk(op)
		}
	}
	walk(p)
	return out
}

// String renders the predicate, e.g. "sender == Tax OR addressed_to == Nune Grygorian".
func (p *Predicate) String() string {
	if p == nil {
		return ""
	}
	if p.IsLeaf() {
		return fmt.Sprintf("%s %s %v", p.Field, p.Op, p.Value)
	}
	parts := make([]string, len(p.Operands))
	for i, op := range p.Operands {
		s := op.String()
		if !op.IsLeaf() {
			s = "(" + s + ")"
		}
		parts[i] = s
	}
	return strings.Join(parts, " "+string(p.Logic)+" ")
}

// Kind classifies predicate and metadata values.
type Kind int

const (
	KindInvalid Kind = iota
	KindString
	KindNumber
	KindBool
)

// ValueKind classifies a scalar value. Any integer or float type is a number.
func ValueKind(v any) Kind {
	switch v.(type) {
	case string:
		return KindString
	case bool:
		return KindBool
	}
	if _, ok := AsFloat(v); ok {
		return KindNumber
	}
	return KindInvalid
}

// AsFloat converts any integer or float value to float64.
func AsFloat(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
