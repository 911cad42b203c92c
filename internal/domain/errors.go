package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrRateLimited     = errors.New("rate limited")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrUpstream        = errors.New("upstream error")
	ErrInvalidAddress  = errors.New("invalid address")
	ErrAddressNotFound = errors.New("address not found")
	ErrHandleNotFound  = errors.New("handle not found")
	ErrMissingInput    = errors.New("missing input")
	ErrLockHeld        = errors.New("lock already held")
	ErrDisabled        = errors.New("backend disabled")
)
