package ginserver

import (
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"rentalcore/internal/app/handlers/support"
	"rentalcore/internal/domain/shared/money"
	"rentalcore/internal/pkg/errs"
)

var errUploadTooLarge = errs.Mark(errs.New("upload: file is too large"), errs.ErrValidation)

// readUpload reads a multipart file and sniffs its content type.
func readUpload(fileHeader *multipart.FileHeader) (support.Upload, error) {
	if fileHeader.Size > support.MaxUploadBytes {
		return support.Upload{}, errUploadTooLarge
	}
	file, err := fileHeader.Open()
	if err != nil {
		return support.Upload{}, errs.Mark(errs.Wrap(err, "open upload"), errs.ErrValidation)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, support.MaxUploadBytes+1))
	if err != nil {
		return support.Upload{}, errs.Mark(errs.Wrap(err, "read upload"), errs.ErrValidation)
	}
	if len(data) > support.MaxUploadBytes {
		return support.Upload{}, errUploadTooLarge
	}
	contentType := http.DetectContentType(data)
	if idx := strings.Index(contentType, ";"); idx > 0 {
		contentType = contentType[:idx]
	}
	if contentType == "application/octet-stream" {
		contentType = fileHeader.Header.Get("Content-Type")
	}
	return support.Upload{
		Filename:    filepath.Base(fileHeader.Filename),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// parseAmount reads a minor-unit amount from a form field.
func parseAmount(raw, currency string) (money.Money, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return money.Money{}, errs.Mark(errs.New("amount required"), errs.ErrValidation)
	}
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return money.Money{}, errs.Mark(errs.Wrapf(err, "parse amount %q", raw), errs.ErrValidation)
	}
	if strings.TrimSpace(currency) == "" {
		currency = money.DefaultCurrency
	}
	return money.Money{Amount: amount, Currency: strings.ToUpper(strings.TrimSpace(currency))}, nil
}
