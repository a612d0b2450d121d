package domain

import "errors"

var (
	// ErrInvalidArgument marks malformed input such as a URL without an http(s) scheme
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrAlreadyExists marks a custom alias that is already taken
	ErrAlreadyExists = errors.New("already exists")
	// ErrExhausted marks a generated-code creation that ran out of attempts
	ErrExhausted = errors.New("short code attempts exhausted")
	// ErrNotFound marks an unknown short code
	ErrNotFound = errors.New("link not found")

	// ErrCodeTaken is returned by stores when an insert hits the unique
	// constraint on the code column.
	ErrCodeTaken = errors.New("short code already taken")
)
