package vk

import (
	"errors"

	"github.com/SevereCloud/vksdk/v2/api"
	"github.com/example/matchbot/internal/apperr"
)

// classify wraps err with the shared error kind its VK error code maps to.
// Anything that is not an API error is a transport failure
func classify(method string, err error) error {
	var vkErr *api.Error
	if !errors.As(err, &vkErr) {
		return apperr.Wrap(apperr.ErrTransport, method, err)
	}
	switch vkErr.Code {
	case api.ErrAuth:
		return apperr.Wrap(apperr.ErrAuth, method, err)
	case api.ErrTooMany, api.ErrFlood, api.ErrRateLimit:
		return apperr.Wrap(apperr.ErrRateLimit, method, err)
	case api.ErrUserDeleted, api.ErrPrivateProfile, api.ErrParamUserID:
		return apperr.Wrap(apperr.ErrNotFound, method, err)
	default:
		return apperr.Wrap(apperr.ErrTransport, method, err)
	}
}
