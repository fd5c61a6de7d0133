package model

import "errors"

var (
	// ErrNotEnoughData is returned when a series is shorter than an indicator's warm-up.
	ErrNotEnoughData = errors.New("not enough data")

	// ErrNoData is returned when a source has no bars for the request.
	ErrNoData = errors.New("no data")

	// ErrMalformedBars is returned when a source delivers bars that violate series invariants.
	ErrMalformedBars = errors.New("malformed bars")

	ErrUnknownPeriod  = errors.New("unknown period")
	ErrUnknownMarket  = errors.New("unknown market")
	ErrInvalidRange   = errors.New("invalid time range")
	ErrSymbolNotFound = errors.New("symbol not found")
)
