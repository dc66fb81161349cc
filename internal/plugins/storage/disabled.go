package storage

import (
	"context"
	"errors"

	"assist/internal/core/contracts"
)

var ErrStorageDisabled = errors.New("object storage is not configured")

// DisabledUploader rejects every file. Image messages then fail with
// MessageCreationFailed instead of panicking on a missing client.
type DisabledUploader struct{}

func (DisabledUploader) Upload(context.Context, contracts.File) (string, error) {
	return "", ErrStorageDisabled
}
