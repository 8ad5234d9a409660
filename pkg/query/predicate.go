package query

import "github.com/ArturGR3/AI-Hackathon/pkg/retrieval"

// Metadata keys the predicate builder filters on.
const (
	FieldSender      = "sender"
	FieldAddressedTo = "addressed_to"
)

// BuildPredicate emits one equality leaf per present field and joins them
// with OR, so a document matching either the sender or the recipient
// qualifies. It returns nil when no field is present. The time filter is not
// part of the predicate; see Constraints.TimeRange.
func BuildPredicate(c Constraints) *retrieval.Predicate {
	var leaves []*retrieval.Predicate
	if c.Sender != nil {
		leaves = append(leaves, retrieval.Eq(FieldSender, string(*c.Sender)))
	}
	if c.AddressedTo != nil {
		leaves = append(leaves, retrieval.Eq(FieldAddressedTo, string(*c.AddressedTo)))
	}
	return retrieval.AnyOf(leaves...)
}
