package qdrant

import (
	"fmt"
	"time"

	qd "github.com/qdrant/go-client/qdrant"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/ArturGR3/AI-Hackathon/pkg/retrieval"
)

// Payload keys.
const (
	payloadContents  = "contents"
	payloadMetadata  = "metadata"
	payloadCreatedAt = "created_at"
	payloadSeq       = "seq"
)

func metadataKey(field string) string {
	return payloadMetadata + "." + field
}

// buildFilter converts a predicate and time range into a Qdrant filter, or
// nil when neither constrains the search.
func buildFilter(p *retrieval.Predicate, tr retrieval.TimeRange) (*qd.Filter, error) {
	var must []*qd.Condition
	if p != nil {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		cond, err := condition(p)
		if err != nil {
			return nil, err
		}
		must = append(must, cond)
	}
	if !tr.IsZero() {
		must = append(must, timeCondition(tr))
	}
	if len(must) == 0 {
		return nil, nil
	}
	return &qd.Filter{Must: must}, nil
}

func condition(p *retrieval.Predicate) (*qd.Condition, error) {
	if !p.IsLeaf() {
		conds := make([]*qd.Condition, 0, len(p.Operands))
		for _, op := range p.Operands {
			c, err := condition(op)
			if err != nil {
				return nil, err
			}
			conds = append(conds, c)
		}
		if p.Logic == retrieval.Or {
			return qd.NewFilterAsCondition(&qd.Filter{Should: conds}), nil
		}
		return qd.NewFilterAsCondition(&qd.Filter{Must: conds}), nil
	}

	key := metadataKey(p.Field)
	switch retrieval.ValueKind(p.Value) {
	case retrieval.KindString:
		return stringCondition(key, p.Op, p.Value.(string))
	case retrieval.KindNumber:
		f, _ := retrieval.AsFloat(p.Value)
		return numberCondition(key, p.Op, f), nil
	case retrieval.KindBool:
		v := p.Value.(bool)
		if p.Op == retrieval.OpNe {
			v = !v
		}
		return qd.NewMatchBool(key, v), nil
	}
	return nil, fmt.Errorf("unsupported value %v for field %q", p.Value, p.Field)
}

// stringCondition matches keywords. A missing field must not satisfy "!=",
// so the except match also requires the field to be present.
func stringCondition(key string, op retrieval.Op, v string) (*qd.Condition, error) {
	switch op {
	case retrieval.OpEq:
		return qd.NewMatchKeyword(key, v), nil
	case retrieval.OpNe:
		return qd.NewFilterAsCondition(&qd.Filter{
			Must:    []*qd.Condition{qd.NewMatchExcept(key, v)},
			MustNot: []*qd.Condition{qd.NewIsEmpty(key)},
		}), nil
	}
	return nil, fmt.Errorf("qdrant does not support %s on string field %q", op, key)
}

func numberCondition(key string, op retrieval.Op, v float64) *qd.Condition {
	switch op {
	case retrieval.OpNe:
		return qd.NewFilterAsCondition(&qd.Filter{Should: []*qd.Condition{
			qd.NewRange(key, &qd.Range{Lt: qd.PtrOf(v)}),
			qd.NewRange(key, &qd.Range{Gt: qd.PtrOf(v)}),
		}})
	case retrieval.OpGt:
		return qd.NewRange(key, &qd.Range{Gt: qd.PtrOf(v)})
	case retrieval.OpGte:
		return qd.NewRange(key, &qd.Range{Gte: qd.PtrOf(v)})
	case retrieval.OpLt:
		return qd.NewRange(key, &qd.Range{Lt: qd.PtrOf(v)})
	case retrieval.OpLte:
		return qd.NewRange(key, &qd.Range{Lte: qd.PtrOf(v)})
	}
	return qd.NewRange(key, &qd.Range{Gte: qd.PtrOf(v), Lte: qd.PtrOf(v)})
}

func timeCondition(tr retrieval.TimeRange) *qd.Condition {
	r := &qd.DatetimeRange{}
	if !tr.Start.IsZero() {
		r.Gte = timestamppb.New(tr.Start)
	}
	if !tr.End.IsZero() {
		r.Lt = timestamppb.New(tr.End)
	}
	return qd.NewDatetimeRange(payloadCreatedAt, r)
}

func formatCreated(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
