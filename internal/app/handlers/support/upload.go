package support

import (
	"bytes"
	"context"
	"path"
	"strings"

	"github.com/google/uuid"

	"rentalcore/internal/app/policies"
	"rentalcore/internal/pkg/errs"
)

// MaxUploadBytes bounds a single slip or return photo.
const MaxUploadBytes = 10 << 20

var (
	ErrEmptyUpload     = errs.Mark(errs.New("upload: file is empty"), errs.ErrValidation)
	ErrUploadTooLarge  = errs.Mark(errs.New("upload: file is too large"), errs.ErrValidation)
	ErrUnsupportedType = errs.Mark(errs.New("upload: only jpeg, png and webp images are accepted"), errs.ErrValidation)
	ErrStoreMissing    = errs.Mark(errs.New("upload: object store not configured"), errs.ErrUpstreamUnavailable)
)

var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Upload is an image received with a command.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (u Upload) Validate() error {
	if len(u.Data) == 0 {
		return ErrEmptyUpload
	}
	if len(u.Data) > MaxUploadBytes {
		return ErrUploadTooLarge
	}
	if _, ok := imageTypes[strings.ToLower(u.ContentType)]; !ok {
		return ErrUnsupportedType
	}
	return nil
}

// Store validates and uploads u under prefix and returns its URL.
func Store(ctx context.Context, store policies.ObjectStore, prefix string, u Upload) (string, error) {
	if err := u.Validate(); err != nil {
		return "", err
	}
	if store == nil {
		return "", ErrStoreMissing
	}
	key := path.Join(prefix, uuid.NewString()+imageTypes[strings.ToLower(u.ContentType)])
	url, err := store.Upload(ctx, key, bytes.NewReader(u.Data), u.ContentType)
	if err != nil {
		return "", errs.Mark(errs.Wrap(err, "upload image"), errs.ErrUpstreamUnavailable)
	}
	return url, nil
}
