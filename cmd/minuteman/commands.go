package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vasanth/minuteman/internal/ingest"
	"github.com/vasanth/minuteman/internal/pipeline"
	"github.com/vasanth/minuteman/internal/retrieval"
)

// --- query ---

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Ask a question over the meeting corpus",
	Long: `Ask a question over the meeting corpus.

With arguments, answers one query and exits. Without arguments, starts an
interactive session.

Mode prefixes:
  raw:       retrieval-only results, no generation
  detailed:  generated answer plus the retrieved chunks

Filters (anywhere in the query):
  filter:type=action_item   chunk type: minute, action_item, key_insight
  filter:meeting=MTG_...    restrict to one meeting
  filter:speaker=Name       restrict to one speaker

Examples:
  minuteman query "What are the main business concerns?"
  minuteman query "raw: filter:type=action_item high priority tasks"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		sessionID, _ := cmd.Flags().GetString("session")
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if len(args) == 0 {
			return runInteractive(cmd.Context(), a, limit)
		}

		req, err := pipeline.ParseRequest(strings.Join(args, " "))
		if err != nil {
			return err
		}
		req.Limit = limit
		req.SessionID = sessionID

		resp, err := a.pipeline.Ask(cmd.Context(), req)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}

		printResponse(resp)
		return nil
	},
}

func init() {
	queryCmd.Flags().Int("limit", 0, "maximum number of chunks to retrieve (default 5 raw, 10 generate)")
	queryCmd.Flags().String("session", "", "session identifier for conversation tracking")
	queryCmd.Flags().Bool("json", false, "print the structured response as JSON")
}

func runInteractive(ctx context.Context, a *app, limit int) error {
	sessionID := uuid.New().String()

	fmt.Println("Meeting RAG Query Interface")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("Modes:")
	fmt.Println("  Default: AI-generated answers")
	fmt.Println("  'raw:' prefix for retrieval-only results")
	fmt.Println("  'detailed:' prefix to show raw chunks alongside the answer")
	fmt.Println()
	fmt.Println("Filters:")
	fmt.Println("  filter:type=minute|action_item|key_insight")
	fmt.Println("  filter:meeting=<meeting id>")
	fmt.Println("  filter:speaker=<name>")
	fmt.Println()
	fmt.Println("Type 'quit' to exit.")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Session: %s\n", sessionID[:8])

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nEnter your query: ")
		if !scanner.Scan() {
			fmt.Println("\nGoodbye!")
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch strings.ToLower(line) {
		case "quit", "exit", "q":
			fmt.Println("Goodbye!")
			return nil
		}

		req, err := pipeline.ParseRequest(line)
		if err != nil {
			printError("%v", err)
			continue
		}
		req.Limit = limit
		req.SessionID = sessionID

		resp, err := a.pipeline.Ask(ctx, req)
		if err != nil {
			printError("%v", err)
			continue
		}
		printResponse(resp)
	}
}

func printResponse(resp pipeline.Response) {
	if resp.Answer != nil {
		fmt.Printf("\nAI-Generated Answer (in %s):\n", elapsedSeconds(resp.Elapsed))
		fmt.Println(strings.Repeat("=", 60))
		fmt.Println(resp.Answer.Answer)
		fmt.Println()
		printStatus("Confidence", "%.2f", resp.Answer.Confidence)
		printStatus("Sources used", "%d chunks", len(resp.Answer.Sources))
		if len(resp.Answer.Citations) > 0 {
			printStatus("Citations", "%v", resp.Answer.Citations)
		}
	}

	if resp.Degraded {
		printWarning("generation unavailable, showing raw retrieval results")
	}

	if resp.Mode == pipeline.ModeRaw || resp.Mode == pipeline.ModeDetailed || resp.Degraded {
		printResults(resp.Results)
		if resp.Answer == nil {
			printStatus("Confidence", "%.2f", resp.Confidence)
			printStatus("Elapsed", "%s", elapsedSeconds(resp.Elapsed))
		}
	}
}

func printResults(results []retrieval.SearchResult) {
	fmt.Printf("\nRetrieved Chunks (%d results):\n", len(results))
	fmt.Println(strings.Repeat("=", 60))

	for _, r := range results {
		fmt.Printf("\n%d. [%s] Score: %.3f\n", r.Rank, strings.ToUpper(string(r.Chunk.Type)), r.Score)
		fmt.Printf("   Meeting: %s\n", r.Chunk.MeetingID)
		if r.Chunk.Speaker != "" {
			if r.Chunk.Role != "" {
				fmt.Printf("   Speaker: %s (%s)\n", r.Chunk.Speaker, r.Chunk.Role)
			} else {
				fmt.Printf("   Speaker: %s\n", r.Chunk.Speaker)
			}
		}

		text := r.Chunk.Text
		if len(text) > 150 {
			text = text[:150] + "..."
		}
		fmt.Printf("   Content: %s\n", text)

		if r.Chunk.Type == retrieval.TypeActionItem {
			for _, f := range [...]struct{ key, label string }{
				{"assigned_to", "Assigned To"},
				{"due_date", "Due Date"},
				{"priority", "Priority"},
			} {
				if v, ok := r.Chunk.Metadata[f.key]; ok {
					fmt.Printf("   %s: %s\n", f.label, v)
				}
			}
		}
	}
}

// --- load ---

var loadCmd = &cobra.Command{
	Use:   "load <dir>",
	Short: "Load pre-computed embedding files into the corpus",
	Long: `Load pre-computed embedding files into the corpus.

Reads every *.json file in the directory in the offline pipeline's format
(chunk_id, embedding, metadata) and inserts the chunks.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		printStep("Loading embeddings from %s", args[0])
		n, err := ingest.LoadEmbeddings(args[0], a.vectors, a.cfg.LLM.Dimension)
		if err != nil {
			return err
		}
		printSuccess("Loaded %d chunks", n)
		return nil
	},
}

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a meeting transcript into the corpus",
	Long: `Ingest a meeting transcript into the corpus.

Extracts text (.pdf or plain text), splits it into speaker-level chunks,
embeds each chunk, and inserts the result.

Examples:
  minuteman ingest --file board_meeting.txt --meeting MTG_2026_03_14_001
  minuteman ingest --file standup.pdf`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		meetingID, _ := cmd.Flags().GetString("meeting")
		if file == "" {
			return fmt.Errorf("--file is required")
		}

		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		printStep("Ingesting %s", file)
		ingestor := ingest.NewIngestor(a.embedder, a.vectors)
		n, err := ingestor.IngestTranscript(cmd.Context(), file, meetingID)
		if err != nil {
			return err
		}
		printSuccess("Added %d chunks", n)
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("file", "", "transcript file to ingest (.pdf, .txt, .md)")
	ingestCmd.Flags().String("meeting", "", "meeting identifier (defaults to the file name)")
}

// --- sessions ---

var sessionsCmd = &cobra.Command{
	Use:   "sessions [id]",
	Short: "List tracked sessions or show one session's history",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if len(args) == 1 {
			history := a.sessions.History(args[0])
			if history == nil {
				printWarning("session %s not found", args[0])
				return nil
			}
			return enc.Encode(history)
		}
		return enc.Encode(a.sessions.Sessions())
	},
}

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show corpus statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.vectors.Stats()
		if err != nil {
			return err
		}

		printStatus("Total chunks", "%d", stats.TotalChunks)
		printStatus("Dimension", "%d", stats.Dimension)
		for t, n := range stats.ByType {
			printStatus("Type "+t, "%d", n)
		}
		printStatus("Meetings", "%d", len(stats.ByMeeting))
		printStatus("Data dir", "%s", a.cfg.Storage.DataDir)
		return nil
	},
}
