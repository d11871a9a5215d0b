// internal/workers/pricing/resolve-price-query/models.go
package resolvepricequery

import "mandi-prices/internal/models"

// Input carries either a structured intent or the raw question. The intent
// wins when both are present.
type Input struct {
	Question     string                 `json:"question,omitempty"`
	Intent       map[string]interface{} `json:"intent,omitempty"`
	ResolutionID string                 `json:"resolutionId,omitempty"`
}

type Output struct {
	ResolutionID     string               `json:"resolutionId"`
	Kind             models.ResultKind    `json:"kind"`
	Records          []models.PriceRecord `json:"records,omitempty"`
	MatchedExactly   bool                 `json:"matchedExactly"`
	UsedFallbackTier models.Tier          `json:"usedFallbackTier,omitempty"`
	Candidates       []models.Candidate   `json:"candidates,omitempty"`
	Reason           string               `json:"reason,omitempty"`
	Intent           models.Intent        `json:"intent"`
}

func newOutput(id string, in models.Intent, res models.ResolutionResult) *Output {
	out := &Output{ResolutionID: id, Kind: res.Kind(), Intent: in}
	switch v := res.(type) {
	case *models.Resolved:
		out.Records = v.Records
		out.MatchedExactly = v.MatchedExactly
		out.UsedFallbackTier = v.UsedFallbackTier
	case *models.NeedsDisambiguation:
		out.Candidates = v.Candidates
		out.Reason = string(v.Reason)
	case *models.NotFound:
		out.Reason = v.Reason
	}
	return out
}
