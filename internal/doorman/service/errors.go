package service

import "errors"

var (
	// ErrNotVoiceChannel is returned when the target of a knock or a
	// visibility change is not a voice channel.
	ErrNotVoiceChannel = errors.New("target is not a voice channel")

	// ErrNotAuthorized is returned when the acting user fails the
	// channel's approval-policy check.
	ErrNotAuthorized = errors.New("not authorized to act on this request")

	// ErrMissingRoles is returned when role_based mode is requested
	// without any roles.
	ErrMissingRoles = errors.New("role_based mode requires at least one role")
)
