package contracts

import (
	"context"
	"io"
)

// File is an attachment received with an image message.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// Uploader stores a file and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, f File) (string, error)
}
