package core

import "errors"

// Errors
var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidTickSpacing = errors.New("invalid tick spacing")
	ErrInvalidOrderType   = errors.New("invalid order type")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrTriggerNotMet      = errors.New("trigger not met")
	ErrNotImplemented     = errors.New("hook not implemented")
	ErrHookPermissions    = errors.New("hook permissions mismatch")
	ErrCallbackFailure    = errors.New("settlement callback failed")
	ErrOrderExists        = errors.New("order exists")
	ErrOrderNotFound      = errors.New("nonexistent order")
)
