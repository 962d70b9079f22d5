// Package email renders the intake notifications and hands them to the
// configured mail provider.
package email

import (
	"errors"

	"mentorship/internal/types"
)

// IsBlocklistError reports whether the provider refused the recipient or
// the message itself. Resending the same message will not help.
func IsBlocklistError(err error) bool {
	var appErr *types.AppError
	return errors.As(err, &appErr) && appErr.Code == types.ErrCodeEmailBlocked
}

func asAppError(err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return types.NewAppError(types.ErrCodeUpstreamEmailProvider, "email provider failed", err)
}
