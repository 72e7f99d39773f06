package models

import "errors"

var (
	// ErrUnauthorized is returned when a role or ownership check fails
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInsufficientBalance represents insufficient token balance error
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrValueOutOfRange is returned for call values that do not fit a uint256
	ErrValueOutOfRange = errors.New("value out of uint256 range")
)
