package model

import "time"

const (
	// NotifTitleEventComing is the title of every reminder notification.
	NotifTitleEventComing = "Event is coming"
	// FeedCap is the maximum number of notifications the feed retains.
	FeedCap = 50
)

// Notification is one entry of the reminder feed.
type Notification struct {
	ID         string     `json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	Read       bool       `json:"read"`
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	EventID    string     `json:"event_id"`
	Location   string     `json:"location,omitempty"`
	FireKey    string     `json:"fire_key,omitempty"`
	EventStart *time.Time `json:"event_start,omitempty"`
}

// FiredKey builds the deduplication key for one (event, threshold) pair.
func FiredKey(eventID, thresholdKey string) string {
	return eventID + "_" + thresholdKey
}
