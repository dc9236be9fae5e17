package tokencodec

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/crypto"
)

// ErrInvalidInviteToken is returned for a malformed invitation/pairing
// token.
var ErrInvalidInviteToken = errors.New("tokencodec: invalid invitation token")

// InviteToken is the parsed form of an invitation token, spec §3:
// `"<organizationId>.<uuid>"`, where the first segment must equal the
// invitation's own organizationId.
type InviteToken struct {
	OrganizationID uuid.UUID
	Nonce          string
}

// NewInviteToken mints a fresh invitation token for organizationId.
func NewInviteToken(organizationID uuid.UUID) (string, error) {
	nonce := uuid.New().String()
	return organizationID.String() + "." + nonce, nil
}

// ParseInviteToken splits and validates an invitation token's shape. It does
// not check the token against the store; callers must additionally verify
// the organizationId segment matches the looked-up Invitation row's
// organizationId (spec §3 invariant).
func ParseInviteToken(token string) (InviteToken, error) {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return InviteToken{}, ErrInvalidInviteToken
	}
	orgID, err := uuid.Parse(parts[0])
	if err != nil {
		return InviteToken{}, ErrInvalidInviteToken
	}
	if parts[1] == "" {
		return InviteToken{}, ErrInvalidInviteToken
	}
	return InviteToken{OrganizationID: orgID, Nonce: parts[1]}, nil
}

// PairingToken is a one-shot opaque token issued to an executor worker,
// glossary: "<uuid>.<random>".
type PairingToken struct {
	ID     uuid.UUID
	Secret string
}

// NewPairingToken mints a fresh executor pairing token.
func NewPairingToken() (string, PairingToken, error) {
	secret, err := crypto.RandomToken(24)
	if err != nil {
		return "", PairingToken{}, err
	}
	id := uuid.New()
	pt := PairingToken{ID: id, Secret: secret}
	return id.String() + "." + secret, pt, nil
}

// ParsePairingToken splits a pairing token into its id and secret segments.
func ParsePairingToken(token string) (PairingToken, error) {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 || parts[1] == "" {
		return PairingToken{}, ErrInvalidInviteToken
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		return PairingToken{}, ErrInvalidInviteToken
	}
	return PairingToken{ID: id, Secret: parts[1]}, nil
}
