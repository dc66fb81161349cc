package domain

import "errors"

var (
	ErrInvalidTicketID       = errors.New("invalid ticket id")
	ErrInvalidUserID         = errors.New("invalid user id")
	ErrInvalidStatus         = errors.New("invalid ticket status")
	ErrEmptyMessage          = errors.New("message is empty")
	ErrTicketNotFound        = errors.New("ticket not found")
	ErrTenantNotFound        = errors.New("tenant not found")
	ErrUserNotFound          = errors.New("user not found")
	ErrSettingsNotFound      = errors.New("settings not found")
	ErrKeyAlreadyExists      = errors.New("assist key already exists")
	ErrFilesNotFound         = errors.New("files not found")
	ErrMessageCreationFailed = errors.New("message creation failed")
)
