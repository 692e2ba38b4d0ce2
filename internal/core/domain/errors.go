package domain

import "errors"

var (
	ErrKeyNotFound           = errors.New("key not found")
	ErrProjectionNotFound    = errors.New("projection not found")
	ErrOrderNotFound         = errors.New("order not found")
	ErrStreamClosed          = errors.New("stream closed")
	ErrInvalidKillSwitchMode = errors.New("invalid kill switch mode")
	ErrForbidden             = errors.New("access forbidden")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrCourierNotFound       = errors.New("courier not found")
	ErrCourierExists         = errors.New("courier already exists")
)
