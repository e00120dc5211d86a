package domain

// ActivityPoint is one day in the 7-day income/expense series shown on
// the dashboard. Income sums deposit and commission entries, expense
// sums everything else.
type ActivityPoint struct {
	Day     string  `json:"day"`  // short weekday name, e.g. "Mon"
	Date    string  `json:"date"` // YYYY-MM-DD
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
}
