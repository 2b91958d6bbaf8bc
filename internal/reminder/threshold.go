package reminder

import "time"

// Threshold is a time-before-start boundary that triggers a reminder.
type Threshold struct {
	Key      string
	Label    string
	Duration time.Duration
}

// DefaultThresholds is ordered from the largest duration to the smallest.
// Evaluate relies on that order.
var DefaultThresholds = []Threshold{
	{Key: "1d", Label: "1 day", Duration: 24 * time.Hour},
	{Key: "12h", Label: "12 hours", Duration: 12 * time.Hour},
	{Key: "6h", Label: "6 hours", Duration: 6 * time.Hour},
	{Key: "3h", Label: "3 hours", Duration: 3 * time.Hour},
	{Key: "1h", Label: "1 hour", Duration: time.Hour},
	{Key: "30m", Label: "30 minutes", Duration: 30 * time.Minute},
	{Key: "15m", Label: "15 minutes", Duration: 15 * time.Minute},
	{Key: "10m", Label: "10 minutes", Duration: 10 * time.Minute},
	{Key: "5m", Label: "5 minutes", Duration: 5 * time.Minute},
}
