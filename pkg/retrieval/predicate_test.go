package retrieval

import (
	"math"
	"testing"
)

type sender string

func TestPredicateMatch(t *testing.T) {
	t.Parallel()

	meta := map[string]any{
		"sender":       "Tax",
		"addressed_to": "Nune Grygorian",
		"amount":       float64(120),
		"pages":        3,
		"urgent":       true,
	}
	tests := []struct {
		name string
		p    *Predicate
		want bool
	}{
		{"nil matches everything", nil, true},
		{"eq", Eq("sender", "Tax"), true},
		{"named string type", Eq("sender", sender("Tax")), true},
		{"eq mismatch", Eq("sender", "Health"), false},
		{"ne", Compare("sender", OpNe, "Health"), true},
		{"missing field", Eq("department", "Tax"), false},
		{"missing field with ne", Compare("department", OpNe, "Tax"), false},
		{"kind mismatch", Eq("amount", "120"), false},
		{"number gt across types", Compare("amount", OpGt, 100), true},
		{"number lte", Compare("pages", OpLte, 3.0), true},
		{"number lt", Compare("pages", OpLt, 3), false},
		{"string ordering", Compare("sender", OpGte, "Health"), true},
		{"bool", Eq("urgent", true), true},
		{"or either side", AnyOf(Eq("sender", "Health"), Eq("addressed_to", "Nune Grygorian")), true},
		{"or neither", AnyOf(Eq("sender", "Health"), Eq("addressed_to", "Artur Grygorian")), false},
		{"and both", AllOf(Eq("sender", "Tax"), Eq("urgent", true)), true},
		{"and one", AllOf(Eq("sender", "Tax"), Eq("urgent", false)), false},
		{"nested", AllOf(Eq("urgent", true), AnyOf(Eq("sender", "Health"), Compare("amount", OpGte, 120))), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.p.Match(meta); got != tt.want {
				t.Errorf("%s Match() = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

func TestPredicateValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		p       *Predicate
		wantErr bool
	}{
		{"nil", nil, false},
		{"leaf", Eq("sender", "Tax"), false},
		{"empty field", Eq(" ", "Tax"), true},
		{"bad op", &Predicate{Field: "sender", Op: "=~", Value: "Tax"}, true},
		{"nil value", Eq("sender", nil), true},
		{"slice value", Eq("sender", []string{"Tax"}), true},
		{"bool ordering", Compare("urgent", OpGt, true), true},
		{"bad logic", &Predicate{Logic: "XOR", Operands: []*Predicate{Eq("a", 1)}}, true},
		{"empty composite", &Predicate{Logic: Or}, true},
		{"nil operand", &Predicate{Logic: And, Operands: []*Predicate{Eq("a", 1), nil}}, true},
		{"nested bad", AnyOf(Eq("a", 1), Compare("b", OpLt, false)), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestJoinSkipsNil(t *testing.T) {
	t.Parallel()

	if AnyOf() != nil || AnyOf(nil, nil) != nil {
		t.Error("AnyOf with no operands should be nil")
	}
	leaf := Eq("sender", "Tax")
	if AnyOf(nil, leaf) != leaf {
		t.Error("AnyOf with one operand should return it")
	}
	p := AnyOf(leaf, Eq("addressed_to", "Nune Grygorian"))
	if p.Logic != Or || len(p.Operands) != 2 {
		t.Errorf("AnyOf() = %+v", p)
	}
}

func TestPredicateString(t *testing.T) {
	t.Parallel()

	p := AllOf(
		AnyOf(Eq("sender", "Tax"), Eq("addressed_to", "Nune Grygorian")),
		Compare("amount", OpGt, 10),
	)
	want := "(sender == Tax OR addressed_to == Nune Grygorian) AND amount > 10"
	if got := p.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got := MetadataEquals(map[string]any{"sender": "Tax", "addressed_to": "Artur Grygorian"}).String(); got != "addressed_to == Artur Grygorian AND sender == Tax" {
		t.Errorf("MetadataEquals() = %q", got)
	}
	if got := p.Fields(); len(got) != 3 {
		t.Errorf("Fields() = %v", got)
	}
}

func TestCosineDistance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 1},
	}
	for _, tt := range tests {
		if got := CosineDistance(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: CosineDistance() = %g, want %g", tt.name, got, tt.want)
		}
	}
	if !math.IsNaN(CosineDistance([]float32{1}, []float32{1, 2})) {
		t.Error("length mismatch should be NaN")
	}

	v := []float32{0.25, -1.5, 3}
	got, err := DecodeVector(EncodeVector(v))
	if err != nil || len(got) != 3 || got[1] != -1.5 {
		t.Errorf("DecodeVector(EncodeVector()) = %v, %v", got, err)
	}
}
