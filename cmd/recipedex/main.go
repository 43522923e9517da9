// recipedex is the CLI client: it sends one question to a running server and
// prints the answer (or the raw retrieval rows with --endpoint data).
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/kailas-cloud/recipedex/internal/domain"
	"github.com/kailas-cloud/recipedex/pkg/client"
)

const defaultServerURL = "http://localhost:8000"

// defaultQuestion keeps the demo usable with zero arguments.
const defaultQuestion = "I love pastries, but I am allergic to eggs. What could I bake?"

const usage = `usage: recipedex [flags] [question words...]

flags:
  --numDocs, -n <int>                          number of documents to retrieve
  --thinking, -t <minimal|low|medium|high>     generation effort hint
  --endpoint, -e <query|data>                  endpoint to call (default query)
`

type cliArgs struct {
	question  string
	nbResults int
	thinking  string
	endpoint  string
}

// parseArgs mirrors the flag loop the server's users already know: flags take
// the next argument as value, everything else joins into the question.
func parseArgs(args []string) (cliArgs, error) {
	parsed := cliArgs{endpoint: "query"}
	var words []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--numDocs", "-n":
			if i+1 >= len(args) {
				return cliArgs{}, fmt.Errorf("%s requires a value", args[i])
			}
			n, err := strconv.Atoi(args[i+1])
			if err != nil || n <= 0 {
				return cliArgs{}, fmt.Errorf("%s must be a positive integer, got %q", args[i], args[i+1])
			}
			parsed.nbResults = n
			i++
		case "--thinking", "-t":
			if i+1 >= len(args) {
				return cliArgs{}, fmt.Errorf("%s requires a value", args[i])
			}
			if _, err := domain.ParseThinkingLevel(args[i+1]); err != nil {
				return cliArgs{}, fmt.Errorf("invalid thinking level %q (want minimal, low, medium or high)", args[i+1])
			}
			parsed.thinking = args[i+1]
			i++
		case "--endpoint", "-e":
			if i+1 >= len(args) {
				return cliArgs{}, fmt.Errorf("%s requires a value", args[i])
			}
			if args[i+1] != "query" && args[i+1] != "data" {
				return cliArgs{}, fmt.Errorf("invalid endpoint %q (want query or data)", args[i+1])
			}
			parsed.endpoint = args[i+1]
			i++
		default:
			words = append(words, args[i])
		}
	}

	parsed.question = strings.Join(words, " ")
	if parsed.question == "" {
		parsed.question = defaultQuestion
	}
	return parsed, nil
}

func main() {
	_ = godotenv.Load()

	args, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n\n%s", err, usage)
		os.Exit(2)
	}

	serverURL := os.Getenv("SERVER_URL")
	if serverURL == "" {
		serverURL = defaultServerURL
	}

	var opts []client.Option
	if key := os.Getenv("API_KEY"); key != "" {
		opts = append(opts, client.WithAPIKey(key))
	}
	c := client.New(serverURL, opts...)

	fmt.Printf("\nQuestion:\n%s\n", args.question)

	ctx := context.Background()

	switch args.endpoint {
	case "data":
		result, err := c.Data(ctx, args.question, args.nbResults)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nMatches (%d):\n", len(result.Data))
		for i, r := range result.Data {
			fmt.Printf("%3d. [%s] score=%.4f\n     %s\n", i+1, r.ID, r.Score, firstLine(r.Text))
		}
		fmt.Printf("\nQuery duration: %dms\n", result.Duration)
	default:
		result, err := c.Query(ctx, args.question, args.nbResults, args.thinking)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("\nAnswer:\n%s\n", result.Answer)
		fmt.Printf("\nQuery duration: %dms\n", result.Duration)
		fmt.Printf("Rows searched: %d\n", result.NbResults)
		fmt.Printf("Thinking level: %s\n", result.Thinking)
		fmt.Printf("Model used: %s\n", result.Model)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const maxLen = 120
	if len(s) > maxLen {
		return s[:maxLen] + "…"
	}
	return s
}
