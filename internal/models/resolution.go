// internal/models/resolution.go
package models

type Tier string

const (
	TierNone               Tier = "none"
	TierAliasExpansion     Tier = "alias_expansion"
	TierSpellingCorrection Tier = "spelling_correction"
	TierGeographic         Tier = "geographic"
	TierHistorical         Tier = "historical"
)

type CandidateSource string

const (
	SourceSpelling   CandidateSource = "spelling"
	SourceGeographic CandidateSource = "geographic"
)

// Candidate is a proposed name not yet confirmed by the user.
// DistanceRank is the edit distance for spelling candidates and the
// locality rank (1 same district, 2 same state) for geographic ones.
type Candidate struct {
	Entry        NameEntry       `json:"entry"`
	Similarity   float64         `json:"similarity"`
	DistanceRank int             `json:"distanceRank"`
	Source       CandidateSource `json:"source"`
}

type DisambiguationReason string

const (
	ReasonNoExactMatch        DisambiguationReason = "no_exact_match"
	ReasonNoDataForExactMatch DisambiguationReason = "no_data_for_exact_match"
)

type ResultKind string

const (
	KindResolved            ResultKind = "resolved"
	KindNeedsDisambiguation ResultKind = "needs_disambiguation"
	KindNotFound            ResultKind = "not_found"
)

// ResolutionResult is exactly one of Resolved, NeedsDisambiguation or NotFound.
type ResolutionResult interface {
	Kind() ResultKind
	sealed()
}

type Resolved struct {
	Records          []PriceRecord `json:"records"`
	MatchedExactly   bool          `json:"matchedExactly"`
	UsedFallbackTier Tier          `json:"usedFallbackTier"`
}

type NeedsDisambiguation struct {
	Candidates []Candidate          `json:"candidates"`
	Reason     DisambiguationReason `json:"reason"`
}

type NotFound struct {
	Reason string `json:"reason"`
}

func (*Resolved) Kind() ResultKind            { return KindResolved }
func (*NeedsDisambiguation) Kind() ResultKind { return KindNeedsDisambiguation }
func (*NotFound) Kind() ResultKind            { return KindNotFound }

func (*Resolved) sealed()            {}
func (*NeedsDisambiguation) sealed() {}
func (*NotFound) sealed()            {}
