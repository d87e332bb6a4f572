// Package blob stores uploaded media and hands back durable public URLs.
package blob

import (
	"context"
	"errors"
	"strings"
)

// Store persists named objects. Put returns the public URL of the stored
// object; Delete accepts a URL previously returned by Put.
type Store interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, url string) error
}

// ErrInvalidName is returned for object names that could escape the store.
var ErrInvalidName = errors.New("blob: invalid object name")

func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.Contains(name, "..")
}
