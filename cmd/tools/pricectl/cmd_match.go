package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mandi-prices/internal/models"
	"mandi-prices/internal/pricing/fuzzy"
)

var matchFlags struct {
	kind      string
	state     string
	threshold float64
	limit     int
}

var matchCmd = &cobra.Command{
	Use:   "match <name>",
	Short: "Score a name against the indexed markets, districts or commodities",
	Args:  cobra.ExactArgs(1),
	RunE:  runMatch,
}

func init() {
	f := matchCmd.Flags()
	f.StringVar(&matchFlags.kind, "kind", "market", "Name kind: market, district or commodity")
	f.StringVar(&matchFlags.state, "state", "", "Restrict markets and districts to a state")
	f.Float64Var(&matchFlags.threshold, "threshold", 0, "Minimum similarity (default: resolution.similarity_floor)")
	f.IntVar(&matchFlags.limit, "limit", 10, "Maximum candidates to print")
}

func runMatch(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer s.close()

	snap := s.index.Current()
	var pool []models.NameEntry
	switch models.NameKind(matchFlags.kind) {
	case models.NameKindMarket:
		pool = snap.Markets(matchFlags.state)
	case models.NameKindDistrict:
		pool = snap.Districts(matchFlags.state)
	case models.NameKindCommodity:
		pool = snap.Commodities()
	default:
		return fmt.Errorf("unknown --kind %q", matchFlags.kind)
	}

	threshold := matchFlags.threshold
	if threshold <= 0 {
		threshold = s.engineCfg.SimilarityFloor
	}
	cands := fuzzy.Match(args[0], pool, threshold)
	if matchFlags.limit > 0 && len(cands) > matchFlags.limit {
		cands = cands[:matchFlags.limit]
	}
	return printJSON(cmd.OutOrStdout(), cands)
}
