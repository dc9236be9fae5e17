package billing

import "encoding/json"

// CreditPack is one purchasable credits bundle, configured via
// STRIPE_CREDITS_PACKS_JSON (spec §6 `GET /v1/billing/credits/packs`).
type CreditPack struct {
	ID      string `json:"id"`
	PriceID string `json:"priceId"`
	Credits int64  `json:"credits"`
	Label   string `json:"label"`
}

// ParsePacks decodes the STRIPE_CREDITS_PACKS_JSON config value. An empty or
// malformed value yields no packs rather than failing startup, since
// Stripe configuration is optional (spec §7 STRIPE_NOT_CONFIGURED).
func ParsePacks(raw string) []CreditPack {
	var packs []CreditPack
	if err := json.Unmarshal([]byte(raw), &packs); err != nil {
		return nil
	}
	return packs
}

// FindPack looks up a configured pack by id.
func FindPack(packs []CreditPack, id string) (CreditPack, bool) {
	for _, p := range packs {
		if p.ID == id {
			return p, true
		}
	}
	return CreditPack{}, false
}
