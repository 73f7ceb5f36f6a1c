package domain

import "errors"

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidProfile    = errors.New("invalid output profile")
	ErrNotFound          = errors.New("collection not found")
	ErrExpired           = errors.New("collection expired")
	ErrNotReady          = errors.New("collection not ready")
	ErrDownloadsDisabled = errors.New("downloads disabled")
	ErrPaymentRequired   = errors.New("payment required")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrAssetsNotFound    = errors.New("assets not found")
)
