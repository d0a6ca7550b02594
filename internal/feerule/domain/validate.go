package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TiersOf decodes the tier block of a rule. Returns nil for rules without one.
func TiersOf(r FeeRule) ([]Tier, error) {
	if len(r.Tiers) == 0 {
		return nil, nil
	}
	var tiers []Tier
	if err := json.Unmarshal(r.Tiers, &tiers); err != nil {
		return nil, fmt.Errorf("decode tiers for rule %s: %w", r.ID, err)
	}
	return tiers, nil
}

// EncodeTiers serializes a tier block for storage.
func EncodeTiers(tiers []Tier) ([]byte, error) {
	return json.Marshal(tiers)
}

// ValidateRule enforces the write-time invariants of a schedule row.
func ValidateRule(r FeeRule) error {
	if !r.ProductLine.Valid() {
		return ErrInvalidProductLine
	}
	if strings.TrimSpace(r.ChargeType) == "" {
		return fmt.Errorf("%w: charge_type is required", ErrInvalidRule)
	}
	if r.EffectiveFrom.IsZero() {
		return fmt.Errorf("%w: effective_from is required", ErrInvalidRule)
	}
	if r.EffectiveTo != nil && !r.EffectiveTo.After(r.EffectiveFrom) {
		return fmt.Errorf("%w: effective_to must be after effective_from", ErrInvalidRule)
	}

	tiers, err := TiersOf(r)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	// A rule must carry at least one of: numeric value, tier block, note
	// reference, or verbatim text.
	hasValue := r.Amount != nil || r.Percent != nil || len(tiers) > 0 ||
		strings.TrimSpace(r.NoteReference) != "" || strings.TrimSpace(r.FeeText) != "" ||
		r.FreeLimit != nil
	if !hasValue {
		return fmt.Errorf("%w: rule carries no fee value", ErrInvalidRule)
	}

	// Tier thresholds ascend and every rate tier names its unit.
	prev := -1.0
	for i, tier := range tiers {
		if tier.Threshold <= prev {
			return fmt.Errorf("%w: tier %d threshold does not ascend", ErrInvalidRule, i)
		}
		prev = tier.Threshold
		if tier.Rate > 0 && strings.TrimSpace(tier.Unit) == "" {
			return fmt.Errorf("%w: tier %d rate has no unit", ErrInvalidRule, i)
		}
	}

	return nil
}

// RangesOverlap reports whether two half-open effective ranges intersect.
// A nil upper bound is open-ended.
func RangesOverlap(aFrom time.Time, aTo *time.Time, bFrom time.Time, bTo *time.Time) bool {
	if aTo != nil && !aTo.After(bFrom) {
		return false
	}
	if bTo != nil && !bTo.After(aFrom) {
		return false
	}
	return true
}
