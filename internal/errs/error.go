package errs

import (
	"errors"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidOwnership  = errors.New("offered book does not belong to the sender")
	ErrNotAvailable      = errors.New("both books must be available")
	ErrSelfExchange      = errors.New("cannot exchange with yourself")
	ErrDuplicateExchange = errors.New("identical exchange is already pending")
	ErrAlreadyResolved   = errors.New("exchange is already resolved")
	ErrInvalidStatus     = errors.New("status must be accepted or declined")
	ErrStaleExchange     = errors.New("offered book changed hands since the proposal")
	ErrInvalidBookStatus = errors.New("status must be available or unavailable")
	ErrEmptyField        = errors.New("title and author are required")
	ErrUserExists        = errors.New("username or email is already taken")
	ErrBadCredentials    = errors.New("invalid username or password")
)
