package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dashlytics/compute/internal/accel"
	"github.com/dashlytics/compute/internal/vector"
)

type SimilarityOptions struct {
	InputFile    string
	Query        string
	TopK         int
	OutputFormat string
}

func NewSimilarityCmd(loadConfig ConfigLoader) *cobra.Command {
	opts := &SimilarityOptions{}

	cmd := &cobra.Command{
		Use:   "similarity",
		Short: "Rank stored vectors by cosine similarity to a query",
		Long: `Load a CSV of equal-dimension vectors (one per row) and rank them by
cosine similarity against a query vector.`,
		Example: `  # Top 5 matches for a query
  computectl similarity --input embeddings.csv --query "0.1,0.4,0.2" --top 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimilarity(cmd, opts, loadConfig)
		},
	}

	cmd.Flags().StringVarP(&opts.InputFile, "input", "i", "", "Input CSV of vectors, - for stdin (required)")
	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "Comma-separated query vector (required)")
	cmd.Flags().IntVar(&opts.TopK, "top", 10, "Number of matches to return")
	cmd.Flags().StringVar(&opts.OutputFormat, "format", "text", "Output format (text, json)")

	cmd.MarkFlagRequired("input")
	cmd.MarkFlagRequired("query")

	return cmd
}

func runSimilarity(cmd *cobra.Command, opts *SimilarityOptions, loadConfig ConfigLoader) error {
	_, logger, err := loadConfig()
	if err != nil {
		return err
	}

	query, err := parseVector(opts.Query)
	if err != nil {
		return fmt.Errorf("failed to parse query vector: %w", err)
	}

	candidates, err := readVectors(opts.InputFile)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return fmt.Errorf("input contains no vectors")
	}

	backend := accel.NewNativeBackend()
	if wasm, err := accel.NewWasmBackend(cmd.Context(), accel.WasmOptions{}, logger); err == nil {
		backend = wasm
		defer wasm.Close(cmd.Context())
	}

	idx := vector.NewIndex(len(query), backend, logger)
	matches, err := idx.TopK(cmd.Context(), query, candidates, opts.TopK)
	if err != nil {
		return err
	}

	w := io.Writer(cmd.OutOrStdout())
	if opts.OutputFormat == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(matches)
	}

	fmt.Fprintf(w, "Top %d matches:\n", len(matches))
	for rank, m := range matches {
		fmt.Fprintf(w, "  %d. row %d (score %.6f)\n", rank+1, m.Index, m.Score)
	}
	return nil
}

func parseVector(s string) ([]float64, error) {
	fields := strings.Split(s, ",")
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func readVectors(path string) ([][]float64, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	var vectors [][]float64
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		v, err := parseVector(line)
		if err != nil {
			if len(vectors) == 0 && i == 0 {
				continue // header
			}
			return nil, fmt.Errorf("failed to parse vector on line %d: %w", i+1, err)
		}
		vectors = append(vectors, v)
	}
	return vectors, nil
}
