package domain

import "errors"

var (
	// ErrProductNotFound is returned when a product id does not resolve to a record.
	ErrProductNotFound = errors.New("product not found")
	// ErrOutOfStock is returned when an express purchase targets a product with no stock.
	ErrOutOfStock = errors.New("product out of stock")
	// ErrInvalidInput marks user input that cannot be parsed for the current step.
	ErrInvalidInput = errors.New("invalid input")
	// ErrSessionNotFound is returned when a session id is unknown.
	ErrSessionNotFound = errors.New("session not found")
	// ErrOrderFinalized is returned when a finalized draft is mutated.
	ErrOrderFinalized = errors.New("order already finalized")
)
