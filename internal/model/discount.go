package model

// DiscountCode is a validated discount as returned by the backend's check
// endpoint. Discount holds a percentage when IsPercent is true, otherwise a
// flat currency amount. UsesLeft of nil means the code is unbounded.
type DiscountCode struct {
	ID        string  `json:"id"`
	IsPercent bool    `json:"is_percent"`
	Discount  float64 `json:"discount"`
	UsesLeft  *int    `json:"uses_left,omitempty"`
}
