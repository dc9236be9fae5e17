// Package apperr is the typed-failure carrier described in spec §7:
// handlers raise a (status, code, message, details?) tuple and the
// dispatcher formats it as {code, message, details?}.
package apperr

import "net/http"

// Error is a typed failure a handler or coordinator can return. It
// satisfies the standard error interface so it flows through normal Go
// error-handling, but httpapi recognizes it by type and uses its Status
// field instead of defaulting to 500.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string { return e.Message }

func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

func WithDetails(status int, code, message string, details map[string]any) *Error {
	return &Error{Status: status, Code: code, Message: message, Details: details}
}

// Well-known codes from spec §7 / §4.x.
var (
	ErrValidation                     = func(msg string) *Error { return New(http.StatusBadRequest, "VALIDATION_ERROR", msg) }
	ErrUnauthorized                   = func(msg string) *Error { return New(http.StatusUnauthorized, "UNAUTHORIZED", msg) }
	ErrOrgContextRequired             = New(http.StatusBadRequest, "ORG_CONTEXT_REQUIRED", "X-Org-Id header is required")
	ErrInvalidOrgContext              = New(http.StatusBadRequest, "INVALID_ORG_CONTEXT", "X-Org-Id is invalid or does not match the route")
	ErrOrgAccessDenied                = New(http.StatusForbidden, "ORG_ACCESS_DENIED", "caller is not a member of this organization")
	ErrForbidden                      = func(msg string) *Error { return New(http.StatusForbidden, "FORBIDDEN", msg) }
	ErrNotFound                       = func(msg string) *Error { return New(http.StatusNotFound, "NOT_FOUND", msg) }
	ErrConflict                       = func(msg string) *Error { return New(http.StatusConflict, "CONFLICT", msg) }
	ErrPairingTokenInvalid            = New(http.StatusUnauthorized, "PAIRING_TOKEN_INVALID", "pairing token is invalid, expired, or already redeemed")
	ErrOAuthInvalidNonce              = New(http.StatusUnauthorized, "OAUTH_INVALID_NONCE", "oauth state or nonce cookie is missing or does not match")
	ErrSecretNotFound                 = New(http.StatusNotFound, "SECRET_NOT_FOUND", "connector secret not found")
	ErrSecretAlreadyExists            = New(http.StatusConflict, "SECRET_ALREADY_EXISTS", "a secret with this connectorId and name already exists")
	ErrToolsetNotFound                = New(http.StatusNotFound, "TOOLSET_NOT_FOUND", "toolset not found")
	ErrPublicSlugConflict             = New(http.StatusConflict, "PUBLIC_SLUG_CONFLICT", "could not allocate a unique public slug")
	ErrToolsetBuilderSessionNotFound  = New(http.StatusNotFound, "TOOLSET_BUILDER_SESSION_NOT_FOUND", "toolset builder session not found")
	ErrToolsetBuilderSessionFinalized = New(http.StatusConflict, "TOOLSET_BUILDER_SESSION_FINALIZED", "toolset builder session has already been finalized")
	ErrAgentNotFound                  = New(http.StatusNotFound, "AGENT_NOT_FOUND", "agent not found")
	ErrLLMSecretRequired              = New(http.StatusUnprocessableEntity, "LLM_SECRET_REQUIRED", "this LLM provider requires a configured secret")
	ErrQueueUnavailable               = New(http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "the job queue is unavailable")
	ErrLLMUnavailable                 = New(http.StatusServiceUnavailable, "LLM_UNAVAILABLE", "the LLM provider is unavailable")
	ErrChannelDeliveryFailed          = New(http.StatusBadGateway, "CHANNEL_DELIVERY_FAILED", "channel delivery failed")
	ErrChannelDeliveryUnavailable     = New(http.StatusServiceUnavailable, "CHANNEL_DELIVERY_UNAVAILABLE", "the channel delivery service is unavailable")
	ErrSecretsNotConfigured           = New(http.StatusServiceUnavailable, "SECRETS_NOT_CONFIGURED", "required secrets are not configured")
	ErrVertexOAuthNotConfigured       = New(http.StatusServiceUnavailable, "VERTEX_OAUTH_NOT_CONFIGURED", "vertex oauth is not configured")
	ErrStripeNotConfigured            = New(http.StatusServiceUnavailable, "STRIPE_NOT_CONFIGURED", "stripe is not configured")
	ErrOAuthProviderError             = New(http.StatusBadGateway, "OAUTH_PROVIDER_ERROR", "the identity provider returned an error")
	ErrOrgDefaultLLMRequired          = New(http.StatusBadRequest, "ORG_DEFAULT_LLM_REQUIRED", "organization has no default LLM configured for this member's role")
	ErrInternal                       = New(http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
)
