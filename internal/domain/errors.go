package domain

import "errors"

var (
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidLanguage  = errors.New("invalid language")
	ErrNotFound         = errors.New("not found")

	// Delivery failures. ErrMalformedMessage means the request itself was rejected
	// and resending the same text will not help.
	ErrRecipientBlocked = errors.New("recipient blocked the bot")
	ErrMalformedMessage = errors.New("malformed message")
	ErrDeliveryFailed   = errors.New("delivery failed")
)
