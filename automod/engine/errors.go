package engine

import (
	"errors"
)

var (
	ErrEngineClosed     = errors.New("moderation engine is shut down")
	ErrInvalidMessage   = errors.New("invalid message")
	ErrPermissionDenied = errors.New("missing permission")
	ErrTierDisabled     = errors.New("tier disabled")
	ErrRankTooLow       = errors.New("target rank is not below enforcer rank")
)
