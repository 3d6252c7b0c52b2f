package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/radwerk/reportd/internal/generate"
	"github.com/radwerk/reportd/internal/ingest"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send <path>",
	Short: "Ingest a document file or directory tree into the vector store",
	Long: `Ingest wiki documents. A file is processed on its own; a directory is
walked recursively for matching files (underscore-prefixed names are skipped).
Unchanged documents are detected through their stored indexing timestamp and
skipped.

Examples:
  reportd send /data/wiki/mri/2024/g287-jane-doe.txt
  reportd send /data/wiki --collection reports`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func runSend(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	path := args[0]
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path %s: %w", path, err)
	}

	if !info.IsDir() {
		outcome := app.pipeline.ProcessFile(cmd.Context(), path, flagCollection, false)
		printOutcome(cmd, outcome)
		if outcome.Status == ingest.StatusError {
			return fmt.Errorf("ingesting %s: %s", path, outcome.Detail)
		}
		return nil
	}

	summary, err := app.pipeline.ProcessDirectory(cmd.Context(), path, flagCollection)
	if err != nil {
		return err
	}
	for _, outcome := range summary.Outcomes {
		printOutcome(cmd, outcome)
	}
	cmd.Printf("%d succeeded, %d skipped, %d failed\n",
		summary.Succeeded, summary.Skipped, summary.Failed)
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d files failed", summary.Failed, summary.Total())
	}
	return nil
}

func printOutcome(cmd *cobra.Command, outcome ingest.Outcome) {
	switch outcome.Status {
	case ingest.StatusSuccess:
		cmd.Printf("ok      %s (%d chunks)\n", outcome.DocumentID, outcome.ChunkCount)
	case ingest.StatusSkipped:
		cmd.Printf("skipped %s (%s)\n", outcome.DocumentID, outcome.Detail)
	case ingest.StatusError:
		cmd.Printf("error   %s: %s\n", outcome.Path, outcome.Detail)
	}
}

var queryCmd = &cobra.Command{
	Use:   "query <terms...>",
	Short: "Run a semantic search over indexed chunks",
	Long: `Embed the given terms and return the closest indexed chunks.

Examples:
  reportd query knee mri effusion
  reportd query --limit 10 --collection reports kontrastmittel`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	terms := strings.Join(args, " ")
	results, err := app.store.Query(cmd.Context(), flagCollection, []string{terms}, flagLimit, nil)
	if err != nil {
		return err
	}
	if len(results) == 0 || len(results[0]) == 0 {
		cmd.Println("no results")
		return nil
	}

	for _, hit := range results[0] {
		cmd.Printf("%.4f  %s\n", hit.Distance, hit.ID)
		cmd.Printf("        %s\n", firstLine(hit.Document))
	}
	return nil
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}

var heartbeatCmd = &cobra.Command{
	Use:   "heartbeat",
	Short: "Check vector store liveness",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()

		beat, err := app.store.Heartbeat(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Printf("heartbeat: %d\n", beat)
		return nil
	},
}

var identityCmd = &cobra.Command{
	Use:   "identity",
	Short: "Show the vector store identity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()

		identity, err := app.store.Identity(cmd.Context())
		if err != nil {
			return err
		}
		encoded, err := json.MarshalIndent(identity, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(encoded))
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List collections in the configured tenant and database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()

		collections, err := app.store.ListCollections(cmd.Context())
		if err != nil {
			return err
		}
		if len(collections) == 0 {
			cmd.Println("no collections")
			return nil
		}
		for _, collection := range collections {
			cmd.Printf("%s\t%s\n", collection.Name, collection.ID)
		}
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Fetch a stored document by its identifier",
	Long: `Reassemble a document's text from its stored chunks.

Examples:
  reportd get reports:mri:2024:g287-jane-doe`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()

		id := app.parser.Parse(args[0])
		text, err := app.retriever.Document(cmd.Context(), id.String())
		if err != nil {
			return err
		}
		cmd.Println(text)
		return nil
	},
}

var (
	flagGenerateDocument string
	flagGenerateLanguage string
)

var generateCmd = &cobra.Command{
	Use:   "generate [terms...]",
	Short: "Draft report text from indexed material",
	Long: `Assemble a prompt from the stored template, example reports and the
named document, then run the chat model's tool loop and print the draft.

Examples:
  reportd generate --document reports:mri:2024:g287-jane-doe
  reportd generate --language de kniegelenk erguss`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&flagGenerateDocument, "document", "", "document id the draft is for")
	generateCmd.Flags().StringVar(&flagGenerateLanguage, "language", "", "prompt template language")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	if app.generator == nil {
		return fmt.Errorf("chat.url is not configured")
	}

	text, err := app.generator.Generate(cmd.Context(), generate.Request{
		DocumentID: flagGenerateDocument,
		Terms:      strings.Join(args, " "),
		Language:   flagGenerateLanguage,
	})
	if err != nil {
		return err
	}
	cmd.Println(text)
	return nil
}
