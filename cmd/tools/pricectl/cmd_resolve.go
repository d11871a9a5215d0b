package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mandi-prices/internal/common/config"
	"mandi-prices/internal/models"
	"mandi-prices/internal/pricing/intent"
)

var resolveFlags struct {
	commodity string
	market    string
	district  string
	state     string
	date      string
	dateRange bool
	question  string
	noRemote  bool
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve one price question and print the result as JSON",
	Long: `Resolve builds an intent from flags (or from --question through the GenAI
parse-intent endpoint) and runs it through the resolution engine.

Usage:
  pricectl resolve --commodity=corn --market=Rajahmundry
  pricectl resolve --market=Ravulapalem --state="Andhra Pradesh"
  pricectl resolve --question="cotton price in adoni yesterday"`,
	Args: cobra.NoArgs,
	RunE: runResolve,
}

func init() {
	f := resolveCmd.Flags()
	f.StringVar(&resolveFlags.commodity, "commodity", "", "Commodity name")
	f.StringVar(&resolveFlags.market, "market", "", "Market (mandi) name")
	f.StringVar(&resolveFlags.district, "district", "", "District name")
	f.StringVar(&resolveFlags.state, "state", "", "State name")
	f.StringVar(&resolveFlags.date, "date", "", "Date: yyyy-mm-dd, dd/mm/yyyy, today or yesterday (default: latest)")
	f.BoolVar(&resolveFlags.dateRange, "range", false, "Treat --date as the end of a range")
	f.StringVar(&resolveFlags.question, "question", "", "Free-text question, parsed by the GenAI service")
	f.BoolVar(&resolveFlags.noRemote, "no-remote", false, "Answer from the store only")
}

func runResolve(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, !resolveFlags.noRemote)
	if err != nil {
		return err
	}
	defer s.close()

	in, err := resolveIntent(cmd, s)
	if err != nil {
		return err
	}

	res, err := s.engine.Resolve(ctx, in)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), map[string]interface{}{
		"intent": in,
		"kind":   res.Kind(),
		"result": res,
	})
}

func resolveIntent(cmd *cobra.Command, s *session) (models.Intent, error) {
	if resolveFlags.question != "" {
		genai := s.cfg.APIs.GenAI
		if genai.BaseURL == "" {
			return models.Intent{}, fmt.Errorf("--question needs apis.genai.base_url")
		}
		x := intent.NewHTTPExtractor(intent.HTTPConfig{
			BaseURL:    genai.BaseURL,
			APIKey:     genai.APIKey,
			Timeout:    config.GetDuration(genai.Timeout),
			MaxRetries: genai.MaxRetries,
			Location:   s.engineCfg.Location,
		}, s.log)
		return x.ExtractIntent(cmd.Context(), resolveFlags.question)
	}

	raw := map[string]interface{}{
		"commodity":   resolveFlags.commodity,
		"market":      resolveFlags.market,
		"district":    resolveFlags.district,
		"state":       resolveFlags.state,
		"date":        resolveFlags.date,
		"dateIsRange": resolveFlags.dateRange,
	}
	return intent.Decode(raw, models.Day(time.Now().In(s.engineCfg.Location)))
}
