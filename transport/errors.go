package transport

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-orderfeed/core"
)

// invalidRequestError reports a request that could not be built, so it
// never reached the remote side.
func invalidRequestError(source error, message string, metadata map[string]any) error {
	var err *goerrors.Error
	if source == nil {
		err = goerrors.New(message, goerrors.CategoryBadInput)
	} else {
		err = goerrors.Wrap(source, goerrors.CategoryBadInput, message)
	}
	err = err.WithCode(http.StatusBadRequest).WithTextCode(core.ErrorBadInput)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// unreachableError reports a call without a usable response. statusCode is
// the received status when the body was the problem, zero otherwise.
func unreachableError(source error, message string, statusCode int, metadata map[string]any) error {
	return core.TransientRemoteError(source, message, statusCode, metadata)
}
