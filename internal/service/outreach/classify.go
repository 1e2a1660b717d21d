package outreach

import (
	"context"
	"errors"
	"strings"

	domainerrors "github.com/devsync/outreach-backend/internal/domain/errors"
)

// permanentIndicators mark provider errors that no amount of retrying will
// fix. Matching is substring, case insensitive.
var permanentIndicators = []string{
	"invalid recipient",
	"invalid email",
	"invalid phone",
	"blocked",
	"blacklisted",
	"unsubscribed",
	"does not exist",
	"401",
	"403",
	"404",
}

// transientIndicators mark errors worth retrying.
var transientIndicators = []string{
	"429",
	"too many requests",
	"rate exceeded",
	"throttl",
	"timeout",
	"timed out",
	"500",
	"502",
	"503",
	"504",
	"connection reset",
	"connection refused",
	"temporarily",
}

// classifyProviderError maps a raw provider error onto the retryable or
// permanent provider error types. Errors already classified pass through.
// Anything unrecognized is treated as transient so one odd response does not
// permanently burn a verified contact.
func classifyProviderError(provider string, err error) *domainerrors.AppError {
	var appErr *domainerrors.AppError
	if errors.As(err, &appErr) && appErr.Type == domainerrors.ErrorTypeProvider {
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domainerrors.NewTransientProviderError(provider, err.Error())
	}

	msg := strings.ToLower(err.Error())
	for _, indicator := range permanentIndicators {
		if strings.Contains(msg, indicator) {
			return domainerrors.NewPermanentProviderError(provider, err.Error())
		}
	}
	for _, indicator := range transientIndicators {
		if strings.Contains(msg, indicator) {
			return domainerrors.NewTransientProviderError(provider, err.Error())
		}
	}
	return domainerrors.NewTransientProviderError(provider, err.Error())
}
