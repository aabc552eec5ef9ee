package types

import "time"

// CustomerProfile is the durable cross-order aggregate for one customer.
// Created on first successful order, updated additively on every subsequent
// one, never deleted automatically.
type CustomerProfile struct {
	UserID                 string           `json:"user_id"`
	FirstSeenAt            time.Time        `json:"first_seen_at"`
	LastOrderAt            time.Time        `json:"last_order_at"`
	LastOrderTotal         int64            `json:"last_order_total"`
	TotalOrders            int64            `json:"total_orders"`
	TotalSpent             int64            `json:"total_spent"`
	ItemCounts             map[string]int64 `json:"item_counts"`
	OptOut                 bool             `json:"opt_out"`
	LastRetentionTriggerAt time.Time        `json:"last_retention_trigger_at"`
}

// FavoriteItem returns the item with the highest cumulative count. Ties are
// broken by map iteration order, which is fine: no caller depends on a
// deterministic winner.
func (p *CustomerProfile) FavoriteItem() string {
	if p == nil || len(p.ItemCounts) == 0 {
		return ""
	}
	var best string
	var bestCount int64 = -1
	for item, count := range p.ItemCounts {
		if count > bestCount {
			best = item
			bestCount = count
		}
	}
	return best
}
