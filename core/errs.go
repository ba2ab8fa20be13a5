package core

import "errors"

var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrPositionNotFound = errors.New("position not found")
	ErrPositionClosed   = errors.New("position already closed")
	ErrInvalidQuantity  = errors.New("invalid quantity")
	ErrExitFailed       = errors.New("exit failed, flagged for manual review")
)
