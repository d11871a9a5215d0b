package fuzzy

import "mandi-prices/internal/models"

// Normalize is the form similarity is computed over. It is the same fold
// NameEntry uses to keep aliases distinct from the canonical name.
func Normalize(s string) string {
	return models.NormalizeName(s)
}
