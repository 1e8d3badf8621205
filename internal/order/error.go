package order

import "errors"

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrInvalidState  = errors.New("invalid order state")
)
