package service

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration: a commerce product and a membership level are not linked.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound: no subscription or order matches the reconciliation target.
	ErrNotFound = errors.New("not found")
	// ErrRemote: a payment gateway call failed.
	ErrRemote = errors.New("remote error")
	// ErrPersistence: a membership or commerce call failed. Processing of the
	// event stops and the error is returned so the host redelivers.
	ErrPersistence = errors.New("persistence error")

	ErrUnknownEvent   = errors.New("unknown event")
	ErrInvalidPayload = errors.New("invalid payload")
)

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
