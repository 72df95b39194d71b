package model

import "time"

// APRPoint is a derived annualized-yield estimate anchored at a
// snapshot timestamp. It is computed on demand and never persisted.
type APRPoint struct {
	Timestamp    time.Time `json:"timestamp"`
	APR          float64   `json:"apr"`
	WindowHours  int       `json:"window_hours"`
	ReserveValue float64   `json:"reserve_value"`
	FeesEarned   float64   `json:"fees_earned"`
	FeeRate      float64   `json:"fee_rate"`
}
