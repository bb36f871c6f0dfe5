package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/model"
	"github.com/mrjcleaver/aicompare-for-discord-sub000/internal/orchestrator"
)

var (
	queryModels      []string
	queryTemperature float64
	queryMaxTokens   int
	querySystem      string
	queryJSON        bool
)

var queryCmd = &cobra.Command{
	Use:   "query [prompt]",
	Short: "Run one comparison query and print the results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(queryModels) < 2 {
			return eris.New("at least 2 models are required, use --model twice")
		}

		ctx := cmd.Context()
		eng, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer eng.Close()

		params := model.GenerationParams{
			MaxTokens: queryMaxTokens,
			System:    querySystem,
		}
		if cmd.Flags().Changed("temperature") {
			params.Temperature = &queryTemperature
		}

		now := time.Now().UTC()
		q := &model.Query{
			ID:        uuid.New().String(),
			Prompt:    args[0],
			Models:    queryModels,
			Params:    params,
			Status:    model.QueryStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := eng.Store.CreateQuery(ctx, q); err != nil {
			return err
		}

		// One-shot mode runs the pipeline inline instead of through the
		// scheduler so the process exits when the work is done.
		if err := eng.Orchestrator.Run(ctx, q.ID); err != nil {
			return err
		}
		if err := eng.Orchestrator.ScoreQuery(ctx, q.ID); err != nil {
			if !errors.Is(err, orchestrator.ErrInsufficientResponses) {
				return err
			}
			zap.L().Warn("comparison skipped, not enough valid responses")
		}

		view, err := eng.Orchestrator.GetView(ctx, q.ID)
		if err != nil {
			return err
		}

		if queryJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		}
		printView(view)
		return nil
	},
}

func printView(view *model.QueryView) {
	fmt.Printf("Query %s (%s)\n\n", view.Query.ID, view.Query.Status)
	for _, r := range view.Responses {
		fmt.Printf("--- %s [%s, %dms, $%.6f]\n", r.Model, r.Status, r.LatencyMs, r.CostUSD)
		if r.Valid() {
			fmt.Println(r.Content)
		} else {
			fmt.Printf("error (%s): %s\n", r.ErrorKind, r.Error)
		}
		fmt.Println()
	}
	if view.Metrics != nil {
		m := view.Metrics
		fmt.Printf("Similarity: aggregate %.2f (semantic %d, length %d, sentiment %d, factual %d, timing %d)\n",
			m.Aggregate, m.Semantic, m.Length, m.Sentiment, m.Factual, m.Timing)
	}
	fmt.Printf("Succeeded %d/%d, total cost $%.6f\n",
		view.Stats.SucceededCount,
		view.Stats.SucceededCount+view.Stats.FailedCount,
		view.Stats.TotalCostUSD)
}

func init() {
	queryCmd.Flags().StringArrayVarP(&queryModels, "model", "m", nil, "model to query (repeatable)")
	queryCmd.Flags().Float64Var(&queryTemperature, "temperature", 0.7, "sampling temperature")
	queryCmd.Flags().IntVar(&queryMaxTokens, "max-tokens", 1024, "max completion tokens")
	queryCmd.Flags().StringVar(&querySystem, "system", "", "system prompt")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print the full view as JSON")
	rootCmd.AddCommand(queryCmd)
}
