package service

import "errors"

var (
	// ErrInvalidCode is returned for a custom short code that fails validation.
	ErrInvalidCode = errors.New("invalid short code")
	// ErrInvalidURL is returned when the original URL is not an absolute URL with a host.
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidExpiry is returned for an expiration timestamp that is not ISO 8601.
	ErrInvalidExpiry = errors.New("invalid expiration timestamp")
	// ErrExhausted is returned when no free code was found within the attempt budget.
	ErrExhausted = errors.New("failed to generate unique short code")
	// ErrExpired is returned by ResolveURL for a record whose expiration has passed.
	ErrExpired = errors.New("url has expired")
)
