package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorConfigInvalid     = "ORDERFEED_CONFIG_INVALID"
	ErrorAuthFailed        = "ORDERFEED_AUTH_FAILED"
	ErrorSignatureInvalid  = "ORDERFEED_SIGNATURE_INVALID"
	ErrorRemoteUnavailable = "ORDERFEED_REMOTE_UNAVAILABLE"
	ErrorMalformedPayload  = "ORDERFEED_MALFORMED_PAYLOAD"
	ErrorBadInput          = "ORDERFEED_BAD_INPUT"
	ErrorNotFound          = "ORDERFEED_NOT_FOUND"
	ErrorInternal          = "ORDERFEED_INTERNAL_ERROR"
)

// MetadataStatusCode is the error metadata key holding a remote HTTP status.
const MetadataStatusCode = "status_code"

func newError(message string, category goerrors.Category, code int, textCode string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func wrapError(source error, message string, category goerrors.Category, code int, textCode string, metadata map[string]any) *goerrors.Error {
	if source == nil {
		return newError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// ConfigError reports a required setting that is missing or invalid. It is
// fatal to the operation that needed it.
func ConfigError(message string, metadata map[string]any) error {
	return newError(message, goerrors.CategoryInternal, http.StatusInternalServerError, ErrorConfigInvalid, metadata)
}

// AuthError reports a failed credential exchange or a credential the remote
// side kept rejecting.
func AuthError(source error, message string, metadata map[string]any) error {
	return wrapError(source, message, goerrors.CategoryAuth, http.StatusUnauthorized, ErrorAuthFailed, metadata)
}

func SignatureError() error {
	return newError("invalid signature", goerrors.CategoryAuth, http.StatusUnauthorized, ErrorSignatureInvalid, nil)
}

// TransientRemoteError reports a remote timeout, connection failure or
// non-success status. statusCode is zero when no response was received.
func TransientRemoteError(source error, message string, statusCode int, metadata map[string]any) error {
	meta := CloneFields(metadata)
	if statusCode > 0 {
		meta[MetadataStatusCode] = statusCode
	}
	return wrapError(source, message, goerrors.CategoryExternal, http.StatusBadGateway, ErrorRemoteUnavailable, meta)
}

func MalformedPayloadError(message string, metadata map[string]any) error {
	return newError(message, goerrors.CategoryBadInput, http.StatusBadRequest, ErrorMalformedPayload, metadata)
}

func BadInputError(field string, message string) error {
	return goerrors.NewValidation(message, goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

func NotFoundError(message string, metadata map[string]any) error {
	return newError(message, goerrors.CategoryNotFound, http.StatusNotFound, ErrorNotFound, metadata)
}

func InternalError(source error, message string) error {
	return wrapError(source, message, goerrors.CategoryInternal, http.StatusInternalServerError, ErrorInternal, nil)
}

func IsConfigError(err error) bool {
	return hasTextCode(err, ErrorConfigInvalid)
}

func IsAuthError(err error) bool {
	return hasTextCode(err, ErrorAuthFailed)
}

func IsSignatureError(err error) bool {
	return hasTextCode(err, ErrorSignatureInvalid)
}

func IsTransient(err error) bool {
	return hasTextCode(err, ErrorRemoteUnavailable)
}

func IsMalformed(err error) bool {
	return hasTextCode(err, ErrorMalformedPayload)
}

func IsNotFound(err error) bool {
	return hasTextCode(err, ErrorNotFound)
}

// RemoteStatusCode returns the remote HTTP status recorded on err, or zero.
func RemoteStatusCode(err error) int {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Metadata == nil {
		return 0
	}
	if code, ok := richErr.Metadata[MetadataStatusCode].(int); ok {
		return code
	}
	return 0
}

// HTTPStatus resolves the response status for err.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return http.StatusInternalServerError
	}
	if richErr.Code > 0 {
		return richErr.Code
	}
	switch richErr.Category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ToErrorEnvelope maps any error into a go-errors envelope with a text code.
func ToErrorEnvelope(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	}
	if richErr.Code == 0 {
		richErr.Code = HTTPStatus(richErr)
	}
	if strings.TrimSpace(richErr.TextCode) == "" {
		richErr.TextCode = ErrorInternal
	}
	if richErr.Category == goerrors.CategoryInternal && strings.TrimSpace(richErr.Message) == "" {
		richErr.Message = "An unexpected error occurred"
	}
	return richErr
}

// ErrorTextCode returns the text code of err without changing it. Plain
// errors report ErrorInternal and nil reports "".
func ErrorTextCode(err error) string {
	if err == nil {
		return ""
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || strings.TrimSpace(richErr.TextCode) == "" {
		return ErrorInternal
	}
	return richErr.TextCode
}

func hasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == textCode
}
