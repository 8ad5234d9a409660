package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ArturGR3/AI-Hackathon/pkg/query"
)

var (
	askLimit int
	askJSON  bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the stored letters",
	Long: `Extracts sender, recipient and date constraints from the question,
searches the matching letters and answers from them.

Examples:
  govdocs ask "Do I need to pay anything to the tax office this month?"
  govdocs ask --json "When is Nune's next appointment?"`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askLimit, "limit", "n", 0, "number of letters to retrieve (0 uses the configured limit)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the full result as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) (err error) {
	a, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { err = closeApp(cmd, a, err) }()

	if askLimit > 0 {
		a.cfg.Query.Limit = askLimit
	}
	proc, err := a.processor()
	if err != nil {
		return err
	}

	res, err := proc.Process(a.context(cmd.Context()), args[0])
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	printResult(cmd, res)
	return nil
}

func printResult(cmd *cobra.Command, res *query.Result) {
	cmd.Println("Answer:", res.Response.Answer)
	if !res.Response.EnoughContext {
		cmd.Println("(the retrieved letters may not be enough to answer fully)")
	}

	if len(res.Response.ThoughtProcess) > 0 {
		cmd.Println()
		cmd.Println("Thought process:")
		for i, step := range res.Response.ThoughtProcess {
			cmd.Printf("  %d. %s\n", i+1, step)
		}
	}

	cmd.Println()
	cmd.Println("Filters:", describeConstraints(res.Preprocessing))

	cmd.Println()
	if len(res.Sources) == 0 {
		cmd.Println("No matching letters.")
		return
	}
	cmd.Println("Sources:")
	for i, src := range res.Sources {
		md := src.Record.Metadata
		title, _ := md["title_in_english"].(string)
		if title == "" {
			title = src.Record.ID
		}
		cmd.Printf("  [%d] %s (%.3f)\n", i+1, title, src.Distance)
		if sender, ok := md["sender"].(string); ok {
			cmd.Printf("      From: %s", sender)
			if sent, ok := md["sent_date"].(string); ok {
				cmd.Printf(", sent %s", sent)
			}
			cmd.Println()
		}
	}
}

func describeConstraints(c query.Constraints) string {
	var parts []string
	if c.Sender != nil {
		parts = append(parts, "sender="+string(*c.Sender))
	}
	if c.AddressedTo != nil {
		parts = append(parts, "addressed_to="+string(*c.AddressedTo))
	}
	if r := c.TimeRange(); r != nil {
		parts = append(parts, "created="+r.String())
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}
