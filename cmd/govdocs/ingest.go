package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ArturGR3/AI-Hackathon/pkg/ingest"
	"github.com/ArturGR3/AI-Hackathon/pkg/retrieval"
)

var (
	ingestAnalyze      bool
	ingestDropExisting bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Add letters to the store",
	Long: `Adds letters to the vector store.

By default each file holds an analysed letter as JSON, either one document
or an array of them. With --analyze each file holds the plain text of one
letter, which the language model analyses first.

--drop-existing drops the table, recreates it and rebuilds the index before
writing.

Examples:
  govdocs ingest analysed/tax-2024-05.json
  govdocs ingest --analyze scans/*.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestAnalyze, "analyze", false, "treat files as letter text and analyse them with the model")
	ingestCmd.Flags().BoolVar(&ingestDropExisting, "drop-existing", false, "drop and recreate the table before writing")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) (err error) {
	a, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { err = closeApp(cmd, a, err) }()

	ctx := a.context(cmd.Context())
	if err := prepareStore(ctx, a.store, ingestDropExisting); err != nil {
		return err
	}

	in := a.ingestor()
	var records []retrieval.Record
	if ingestAnalyze {
		texts := make([]string, 0, len(args))
		for _, path := range args {
			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			texts = append(texts, string(raw))
		}
		if records, err = in.IngestTexts(ctx, texts, a.cfg.Ingest.Parallelism); err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
	} else {
		for _, path := range args {
			docs, err := readDocuments(path)
			if err != nil {
				return err
			}
			for _, doc := range docs {
				rec, err := in.Ingest(ctx, doc)
				if err != nil {
					return fmt.Errorf("ingest %s failed: %w", path, err)
				}
				records = append(records, rec)
			}
		}
	}

	for _, rec := range records {
		title, _ := rec.Metadata["title_in_english"].(string)
		cmd.Printf("Ingested %s %s\n", rec.ID, title)
	}
	return nil
}

// prepareStore makes sure the table and index exist, dropping the table
// first when drop is set.
func prepareStore(ctx context.Context, store *retrieval.Store, drop bool) error {
	if drop {
		if err := store.DropTables(ctx); err != nil {
			return err
		}
	}
	exists, err := store.TablesExist(ctx)
	if err != nil {
		return err
	}
	if !exists {
		if err := store.CreateTables(ctx); err != nil {
			return err
		}
	}
	return store.CreateIndex(ctx)
}

// readDocuments decodes one analysed document or an array of them.
func readDocuments(path string) ([]ingest.GovernmentDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	raw = bytes.TrimSpace(raw)

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var docs []ingest.GovernmentDocument
	if bytes.HasPrefix(raw, []byte("[")) {
		err = dec.Decode(&docs)
	} else {
		var doc ingest.GovernmentDocument
		err = dec.Decode(&doc)
		docs = append(docs, doc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return docs, nil
}
