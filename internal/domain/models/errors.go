package models

import (
	"errors"
	"fmt"
)

var (
	ErrDataNotReady      = errors.New("data not ready")
	ErrEmptySeries       = errors.New("empty series")
	ErrInvalidWeights    = errors.New("invalid weights")
	ErrUniverseNotFound  = errors.New("universe not found")
	ErrUniverseAmbiguous = errors.New("universe ambiguous")
)

// DataNotReadyError reports missing exchange-rate or price coverage.
// Batch runs skip the account and retry on the next tick.
type DataNotReadyError struct {
	Resource  string
	AccountID string
	Detail    string
}

func (e *DataNotReadyError) Error() string {
	msg := fmt.Sprintf("%s not ready", e.Resource)
	if e.AccountID != "" {
		msg += " for account " + e.AccountID
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *DataNotReadyError) Unwrap() error { return ErrDataNotReady }

// EmptySeriesError reports an input that is empty after alignment.
type EmptySeriesError struct {
	What string
}

func (e *EmptySeriesError) Error() string {
	return fmt.Sprintf("no time series for %s", e.What)
}

func (e *EmptySeriesError) Unwrap() error { return ErrEmptySeries }

type InvalidWeightsError struct {
	Sum    float64
	Reason string
}

func (e *InvalidWeightsError) Error() string {
	return fmt.Sprintf("invalid weights (sum %.6f): %s", e.Sum, e.Reason)
}

func (e *InvalidWeightsError) Unwrap() error { return ErrInvalidWeights }

type UniverseNotFoundError struct {
	Name string
}

func (e *UniverseNotFoundError) Error() string {
	return fmt.Sprintf("asset universe %q not found", e.Name)
}

func (e *UniverseNotFoundError) Unwrap() error { return ErrUniverseNotFound }

type UniverseAmbiguityError struct {
	Name    string
	Matches int
}

func (e *UniverseAmbiguityError) Error() string {
	return fmt.Sprintf("asset universe %q matched %d universes", e.Name, e.Matches)
}

func (e *UniverseAmbiguityError) Unwrap() error { return ErrUniverseAmbiguous }
