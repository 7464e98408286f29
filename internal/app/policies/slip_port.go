package policies

import (
	"context"
	"io"

	domainpayment "rentalcore/internal/domain/payment"
)

// SlipReader extracts the transfer details printed on a bank slip image.
type SlipReader interface {
	ReadSlip(ctx context.Context, imageURL string) (domainpayment.SlipRecord, error)
}

// ObjectStore keeps uploaded images and returns their public URL.
type ObjectStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error)
}
