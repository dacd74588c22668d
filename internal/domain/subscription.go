package domain

import "time"

// Subscription is one recurring delivery obligation. A user holds at most one
// subscription per category; changing the frequency replaces it.
type Subscription struct {
	UserID          int64
	Category        Category
	Frequency       Frequency
	LastDeliveredAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Subscriber is a row of the (category, frequency) subscriber listing.
type Subscriber struct {
	UserID   int64
	Language Language
}
