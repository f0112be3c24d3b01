package domain

import "errors"

var (
	// ErrStorage marks a failure to read, write or decode correlation state.
	// Jobs failing with it are eligible for queue-level retry.
	ErrStorage = errors.New("correlation storage failure")

	// ErrNoRoute indicates that an inbound SMS came from a phone number that never
	// received a notification, so no user can be associated with it.
	ErrNoRoute = errors.New("no route for inbound sms")

	// ErrChannelMapNotFound indicates that a user has no stored channel map.
	ErrChannelMapNotFound = errors.New("channel map not found")

	// ErrIdentityResolution wraps failures of the identity resolver.
	ErrIdentityResolution = errors.New("identity resolution failed")

	// ErrIntroduction wraps failures of the introduction-text provider.
	ErrIntroduction = errors.New("conversation introduction failed")

	// ErrDispatch wraps failures of the SMS or platform send boundaries.
	ErrDispatch = errors.New("dispatch failed")

	// ErrUnsupportedVersion is returned when a stored record was written by a newer schema.
	ErrUnsupportedVersion = errors.New("unsupported record version")
)
