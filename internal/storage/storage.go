// Package storage persists uploaded images and turns storage keys into URLs.
//
// Request bodies carry images as data URIs. DecodeDataURI validates and
// decodes them, NewKey names the object, and a Store (local disk or an S3
// compatible bucket) keeps the bytes. Only keys are stored in the database.
package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/sakif/recipe-share/internal/apperror"
)

// Key prefixes for the two kinds of uploads.
const (
	RecipeImages = "recipes/images"
	UserAvatars  = "users/avatars"
)

// Store is implemented by LocalStore and S3Store.
type Store interface {
	Save(ctx context.Context, key string, img *Image) error
	Delete(ctx context.Context, key string) error
	// URL returns the public URL of key, or "" for an empty key.
	URL(key string) string
}

// Image is a decoded upload.
type Image struct {
	Data        []byte
	Ext         string
	ContentType string
}

var dataURIPattern = regexp.MustCompile(`^data:image/([a-zA-Z0-9.+-]+);base64,(.+)$`)

// imageType is the stored form of an accepted data-URI subtype.
type imageType struct {
	ext         string
	contentType string
}

// allowedTypes maps data-URI subtypes to a file extension and a registered
// MIME type. "jpg" is accepted but stored as image/jpeg.
var allowedTypes = map[string]imageType{
	"png":  {"png", "image/png"},
	"jpeg": {"jpg", "image/jpeg"},
	"jpg":  {"jpg", "image/jpeg"},
	"gif":  {"gif", "image/gif"},
	"webp": {"webp", "image/webp"},
}

// DecodeDataURI parses "data:image/<ext>;base64,<payload>". Failures are
// validation errors on field.
func DecodeDataURI(field, uri string) (*Image, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, apperror.ValidationFailed(field, "image must not be empty")
	}

	m := dataURIPattern.FindStringSubmatch(uri)
	if m == nil {
		return nil, apperror.ValidationFailed(field, "image must be a base64 data URI")
	}

	subtype := strings.ToLower(m[1])
	typ, ok := allowedTypes[subtype]
	if !ok {
		return nil, apperror.ValidationFailed(field, fmt.Sprintf("unsupported image type %q", subtype))
	}

	data, err := base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return nil, apperror.ValidationFailed(field, "image payload is not valid base64")
	}
	if len(data) == 0 {
		return nil, apperror.ValidationFailed(field, "image must not be empty")
	}

	return &Image{
		Data:        data,
		Ext:         typ.ext,
		ContentType: typ.contentType,
	}, nil
}

// NewKey returns a fresh object key such as "recipes/images/<uuid>.png".
func NewKey(prefix, ext string) string {
	return path.Join(prefix, uuid.NewString()+"."+ext)
}

// joinURL joins a base URL and a key with exactly one slash.
func joinURL(base, key string) string {
	if key == "" {
		return ""
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
