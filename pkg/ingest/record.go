package ingest

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hbollon/go-edlib"

	"github.com/ArturGR3/AI-Hackathon/pkg/query"
	"github.com/ArturGR3/AI-Hackathon/pkg/retrieval"
)

// BuildRecord flattens doc into a record created at createdAt.
//
// Contents are "Sender: {sender}\nAddressed to: {addressed_to}\n{content_in_english}"
// followed by one "\nRequired Action: {json}" line per action. Metadata holds
// every document field except content_in_english.
func BuildRecord(doc GovernmentDocument, createdAt time.Time) (retrieval.Record, error) {
	if err := doc.Validate(); err != nil {
		return retrieval.Record{}, fmt.Errorf("invalid document: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Sender: %s\nAddressed to: %s\n%s", doc.Sender, doc.AddressedTo, doc.ContentInEnglish)
	for _, a := range doc.RequiredActions {
		raw, err := json.Marshal(a)
		if err != nil {
			return retrieval.Record{}, fmt.Errorf("encoding required action: %w", err)
		}
		b.WriteString("\nRequired Action: ")
		b.Write(raw)
	}

	metadata, err := documentMetadata(doc)
	if err != nil {
		return retrieval.Record{}, err
	}

	return retrieval.Record{
		ID:       retrieval.NewID(createdAt),
		Contents: b.String(),
		Metadata: metadata,
	}, nil
}

// documentMetadata goes through JSON so every backend sees plain JSON values.
func documentMetadata(doc GovernmentDocument) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding document metadata: %w", err)
	}
	var md map[string]any
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil, fmt.Errorf("decoding document metadata: %w", err)
	}
	delete(md, "content_in_english")
	if md["required_actions"] == nil {
		md["required_actions"] = []any{}
	}
	return md, nil
}

// MinRecipientSimilarity is the Jaro-Winkler score above which an analysed
// name is mapped onto a known recipient.
const MinRecipientSimilarity = 0.85

var honorifics = []string{"herr", "frau", "dr.", "dr", "prof.", "prof", "mr.", "mrs.", "ms.", "mr", "mrs", "ms"}

// CanonicalRecipient maps name onto the closest known recipient so filters on
// addressed_to match. The name is returned trimmed but otherwise unchanged
// when nothing is close enough.
func CanonicalRecipient(name string, recipients []query.Recipient) string {
	name = strings.TrimSpace(name)
	needle := normalizeName(name)
	if needle == "" {
		return name
	}

	best, bestScore := "", float32(0)
	for _, r := range recipients {
		score := edlib.JaroWinklerSimilarity(needle, normalizeName(string(r)))
		if score > bestScore {
			best, bestScore = string(r), score
		}
	}
	if bestScore >= MinRecipientSimilarity {
		return best
	}
	return name
}

func normalizeName(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ",")
		if slices.Contains(honorifics, f) {
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

