// Package secretvault implements the envelope-encryption secret store
// (spec §4.7): every ConnectorSecret's plaintext is wrapped in a per-secret
// AES-GCM DEK, itself wrapped under the process-wide KEK. Grounded on
// internal/crypto/envelope.go's Seal/Open/DeriveKey primitives, which this
// package is the sole caller of.
package secretvault

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vespid-ai/control-plane/internal/apperr"
	"github.com/vespid-ai/control-plane/internal/crypto"
	"github.com/vespid-ai/control-plane/internal/store"
)

// Catalog reports whether a connectorId is recognized, spec §4.7: "must be
// in the recognized catalog (connectors + LLM connector ids)". Static
// connector/channel catalogs are an out-of-scope external collaborator
// (spec §1), so this is an injected dependency rather than a hardcoded list
// here; cmd/server wires the default set.
type Catalog interface {
	Recognized(connectorID string) bool
}

// StaticCatalog is the simplest Catalog: a fixed set of ids known at
// process start, the connector/channel and LLM-provider ids this system
// ships with.
type StaticCatalog struct {
	ids map[string]struct{}
}

func NewStaticCatalog(ids ...string) StaticCatalog {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return StaticCatalog{ids: m}
}

func (c StaticCatalog) Recognized(connectorID string) bool {
	_, ok := c.ids[connectorID]
	return ok
}

// DefaultCatalog is the built-in connector/LLM-connector id set; cmd/server
// may replace this with a richer catalog without changing the vault. The
// "llm.<provider>.oauth" ids must stay in agreement with
// internal/toolsetbuilder's own catalog (ProviderConnectorID for "google"
// and "vertex") and with oauthcoord's persisted connectorIds
// (coordinator.go's Vertex-callback and device-flow paths) — all three
// name the same OAuth-backed LLM connector secrets.
func DefaultCatalog() StaticCatalog {
	return NewStaticCatalog(
		"llm.openai", "llm.anthropic", "llm.google", "llm.vertex",
		"llm.google.oauth", "llm.vertex.oauth",
		"slack", "github", "linear", "jira", "notion",
	)
}

// Vault is the §4.7 coordinator.
type Vault struct {
	Store   store.Store
	KEK     *KEK
	Catalog Catalog
}

func New(st store.Store, kek *KEK, catalog Catalog) *Vault {
	return &Vault{Store: st, KEK: kek, Catalog: catalog}
}

// Create seals plaintext under a fresh DEK and persists the ConnectorSecret
// row.
func (v *Vault) Create(ctx context.Context, tc store.TenantCtx, connectorID, name, plaintext string, actorID uuid.UUID) (store.ConnectorSecret, error) {
	if !v.Catalog.Recognized(connectorID) {
		return store.ConnectorSecret{}, apperr.ErrValidation("unrecognized connectorId: " + connectorID)
	}

	sealedSecret, sealedDEK, err := v.seal(connectorID, name, []byte(plaintext))
	if err != nil {
		return store.ConnectorSecret{}, apperr.ErrInternal
	}

	now := time.Now()
	row := store.ConnectorSecret{
		ID:               uuid.New(),
		OrganizationID:   tc.OrganizationID,
		ConnectorID:      connectorID,
		Name:             name,
		KekID:            v.KEK.ID,
		DekCiphertext:    sealedDEK.Ciphertext,
		DekIV:            sealedDEK.IV,
		DekTag:           sealedDEK.Tag,
		SecretCiphertext: sealedSecret.Ciphertext,
		SecretIV:         sealedSecret.IV,
		SecretTag:        sealedSecret.Tag,
		CreatedBy:        actorID,
		UpdatedBy:        actorID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	created, err := v.Store.CreateConnectorSecret(ctx, tc, row)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return store.ConnectorSecret{}, apperr.ErrSecretAlreadyExists
		}
		return store.ConnectorSecret{}, apperr.ErrInternal
	}
	return created, nil
}

// Reveal unwraps the DEK and decrypts the payload, returning plaintext to
// the calling request only — callers must never persist or log the result.
func (v *Vault) Reveal(ctx context.Context, tc store.TenantCtx, id uuid.UUID) (string, error) {
	row, err := v.Store.GetConnectorSecret(ctx, tc, id)
	if err != nil {
		return "", apperr.ErrSecretNotFound
	}
	return v.unseal(row)
}

// RevealByName is the lookup path LLM/connector dispatch uses: by
// (connectorId, name) rather than id.
func (v *Vault) RevealByName(ctx context.Context, tc store.TenantCtx, connectorID, name string) (string, error) {
	row, err := v.Store.GetConnectorSecretByName(ctx, tc, connectorID, name)
	if err != nil {
		return "", apperr.ErrSecretNotFound
	}
	return v.unseal(row)
}

// Rotate replaces all six ciphertext fields under a freshly-generated DEK.
// connectorId and name are invariant across rotation.
func (v *Vault) Rotate(ctx context.Context, tc store.TenantCtx, id uuid.UUID, plaintext string, actorID uuid.UUID) (store.ConnectorSecret, error) {
	existing, err := v.Store.GetConnectorSecret(ctx, tc, id)
	if err != nil {
		return store.ConnectorSecret{}, apperr.ErrSecretNotFound
	}

	sealedSecret, sealedDEK, err := v.seal(existing.ConnectorID, existing.Name, []byte(plaintext))
	if err != nil {
		return store.ConnectorSecret{}, apperr.ErrInternal
	}

	updated := existing
	updated.KekID = v.KEK.ID
	updated.DekCiphertext = sealedDEK.Ciphertext
	updated.DekIV = sealedDEK.IV
	updated.DekTag = sealedDEK.Tag
	updated.SecretCiphertext = sealedSecret.Ciphertext
	updated.SecretIV = sealedSecret.IV
	updated.SecretTag = sealedSecret.Tag
	updated.UpdatedBy = actorID
	updated.UpdatedAt = time.Now()
	return v.Store.RotateConnectorSecret(ctx, tc, id, updated)
}

func (v *Vault) Delete(ctx context.Context, tc store.TenantCtx, id uuid.UUID) error {
	return v.Store.DeleteConnectorSecret(ctx, tc, id)
}

func (v *Vault) List(ctx context.Context, tc store.TenantCtx) ([]store.ConnectorSecret, error) {
	return v.Store.ListConnectorSecrets(ctx, tc)
}

// seal wraps plaintext under a fresh DEK, itself wrapped under the KEK. The
// AAD binds both ciphertexts to the (connectorId, name) pair they belong to
// so a swapped-column attack can't graft one secret's ciphertext onto
// another's row.
func (v *Vault) seal(connectorID, name string, plaintext []byte) (crypto.Sealed, crypto.Sealed, error) {
	aad := []byte(connectorID + "|" + name)

	dek, err := crypto.GenerateDEK()
	if err != nil {
		return crypto.Sealed{}, crypto.Sealed{}, err
	}
	sealedSecret, err := crypto.Seal(dek, plaintext, aad)
	if err != nil {
		return crypto.Sealed{}, crypto.Sealed{}, err
	}
	sealedDEK, err := crypto.Seal(v.KEK.Bytes, dek, aad)
	if err != nil {
		return crypto.Sealed{}, crypto.Sealed{}, err
	}
	return sealedSecret, sealedDEK, nil
}

func (v *Vault) unseal(row store.ConnectorSecret) (string, error) {
	aad := []byte(row.ConnectorID + "|" + row.Name)
	dek, err := crypto.Open(v.KEK.Bytes, crypto.Sealed{
		Ciphertext: row.DekCiphertext, IV: row.DekIV, Tag: row.DekTag,
	}, aad)
	if err != nil {
		return "", apperr.ErrInternal
	}
	plaintext, err := crypto.Open(dek, crypto.Sealed{
		Ciphertext: row.SecretCiphertext, IV: row.SecretIV, Tag: row.SecretTag,
	}, aad)
	if err != nil {
		return "", apperr.ErrInternal
	}
	return string(plaintext), nil
}
