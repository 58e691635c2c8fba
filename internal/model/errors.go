package model

import (
	"errors"
	"fmt"
)

// Common errors used across the application
var (
	// Player errors
	ErrPlayerNotFound    = errors.New("player not found")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrValidation is wrapped by every input validation failure
	ErrValidation = errors.New("validation failed")

	ErrEmptyName       = fmt.Errorf("%w: player name is required", ErrValidation)
	ErrNameTooLong     = fmt.Errorf("%w: player name is too long", ErrValidation)
	ErrInvalidAmount   = fmt.Errorf("%w: amount must be positive", ErrValidation)
	ErrNegativeBalance = fmt.Errorf("%w: balance cannot be negative", ErrValidation)
	ErrAmountTooLarge  = fmt.Errorf("%w: amount is too large", ErrValidation)
	ErrInvalidStamp    = fmt.Errorf("%w: timestamp cannot be negative", ErrValidation)
	ErrEmptyUpdate     = fmt.Errorf("%w: nothing to update", ErrValidation)
)
