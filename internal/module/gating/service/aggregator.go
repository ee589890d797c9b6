package service

import (
	"github.com/curia-network/curia-cg-sub000/internal/database/schema"
)

// AggregateResults folds per-requirement booleans under a fulfillment mode.
// "all" over an empty list is vacuously true: an empty category counts as
// satisfied. "any" over an empty list is false. The same rule combines
// category aggregates at the lock level; nesting stops there.
func AggregateResults(mode schema.FulfillmentMode, results []bool) bool {
	if mode == schema.FulfillmentAny {
		for _, ok := range results {
			if ok {
				return true
			}
		}
		return false
	}

	for _, ok := range results {
		if !ok {
			return false
		}
	}
	return true
}
