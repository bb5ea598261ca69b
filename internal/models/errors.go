package models

import "errors"

var (
	ErrChannelUnavailable = errors.New("channel unavailable")
	ErrPermissionDenied   = errors.New("missing channel permissions")
	ErrPollClosed         = errors.New("poll is closed")
	ErrPollNotFound       = errors.New("poll not found")
	ErrStorageWrite       = errors.New("storage write failed")
	ErrRemoteUnavailable  = errors.New("remote service unavailable")
)
