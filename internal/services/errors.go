package services

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotApproved        = errors.New("account is not approved")
	ErrEmailTaken         = errors.New("email already registered")
	ErrCodeInvalid        = errors.New("verification code is invalid or expired")
	ErrInvalidToken       = errors.New("invalid token")
	ErrForbidden          = errors.New("operation not permitted")
	ErrUnknownTable       = errors.New("unknown table")
	ErrValidation         = errors.New("validation failed")
)
