package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned by any lookup that finds no matching row.
var ErrNotFound = errors.New("store: not found")

// ErrConflict is returned for unique-constraint-style violations (duplicate
// slug/email, stripeEventId reuse, etc). Editing a non-draft workflow is
// rejected with ErrPreconditionFailed instead.
var ErrConflict = errors.New("store: conflict")

// ErrPreconditionFailed is returned when a state-machine guard rejects a
// transition (e.g. deleting a run that already left status=queued).
var ErrPreconditionFailed = errors.New("store: precondition failed")

// Store is the tenant-scoped persistence interface, spec §9: "explicit
// interface with in-memory and durable implementations." Org-scoped methods
// take a TenantCtx and filter rows by its OrganizationID (durable: an explicit
// organization_id predicate in each query; in-memory: a plain filter). Users,
// AuthSessions and a few cross-tenant lookups (GetOrganization,
// GetMembership, invitation-by-token, ApplyCredit, executor pairing/token
// lookups) take no TenantCtx. The durable store does not install a
// per-transaction tenant context on every call: only SetMemberRole runs in a
// transaction that sets the session-local app.user_id/app.org_id settings.
type Store interface {
	Users
	Organizations
	Invitations
	ConnectorSecrets
	Workflows
	WorkflowRuns
	AgentSessions
	AgentBindings
	ToolsetBuilderSessions
	Toolsets
	Billing
	Executors
	AuthSessions
}

// Users covers signup/login/profile lookups. UserID resolution for these
// calls is mostly unauthenticated (signup, login), so TenantCtx is often the
// zero value here.
type Users interface {
	CreateUser(ctx context.Context, emailLower, passwordHash, displayName string) (User, error)
	GetUserByEmail(ctx context.Context, emailLower string) (User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (User, error)
	EnsurePersonalOrganization(ctx context.Context, userID uuid.UUID, suggestedName string) (Organization, error)
}

// AuthSessions covers the Session(auth)/RefreshToken lifecycle of §4.1/§4.2.
type AuthSessions interface {
	CreateAuthSession(ctx context.Context, s AuthSession) (AuthSession, error)
	GetAuthSession(ctx context.Context, id uuid.UUID) (AuthSession, error)
	TouchAuthSession(ctx context.Context, id uuid.UUID) error
	RotateAuthSession(ctx context.Context, id uuid.UUID, newHash string, newExpiresAt int64) error
	RevokeAuthSession(ctx context.Context, id uuid.UUID) error
	RevokeAllAuthSessions(ctx context.Context, userID uuid.UUID) error
}

// Organizations covers org creation, membership, and settings (§3, §4.3).
type Organizations interface {
	CreateOrganization(ctx context.Context, tc TenantCtx, slug, name string) (Organization, error)
	GetOrganization(ctx context.Context, id uuid.UUID) (Organization, error)
	GetOrgSettings(ctx context.Context, tc TenantCtx) (map[string]any, error)
	PutOrgSettings(ctx context.Context, tc TenantCtx, settings map[string]any) error
	GetMembership(ctx context.Context, organizationID, userID uuid.UUID) (Membership, error)
	SetMemberRole(ctx context.Context, tc TenantCtx, memberUserID uuid.UUID, role RoleKey) error
	AddMembership(ctx context.Context, tc TenantCtx, userID uuid.UUID, role RoleKey) (Membership, error)
}

// Invitations covers §4's invitation create/accept lifecycle.
type Invitations interface {
	CreateInvitation(ctx context.Context, tc TenantCtx, emailLower string, role RoleKey) (Invitation, error)
	GetInvitationByToken(ctx context.Context, token string) (Invitation, error)
	AcceptInvitation(ctx context.Context, token string, acceptingUserID uuid.UUID) (Membership, error)
}

// ConnectorSecrets is the wrapped-form persistence behind the secret vault
// (§4.7). Plaintext never crosses this interface.
type ConnectorSecrets interface {
	CreateConnectorSecret(ctx context.Context, tc TenantCtx, s ConnectorSecret) (ConnectorSecret, error)
	GetConnectorSecret(ctx context.Context, tc TenantCtx, id uuid.UUID) (ConnectorSecret, error)
	GetConnectorSecretByName(ctx context.Context, tc TenantCtx, connectorID, name string) (ConnectorSecret, error)
	RotateConnectorSecret(ctx context.Context, tc TenantCtx, id uuid.UUID, updated ConnectorSecret) (ConnectorSecret, error)
	DeleteConnectorSecret(ctx context.Context, tc TenantCtx, id uuid.UUID) error
	ListConnectorSecrets(ctx context.Context, tc TenantCtx) ([]ConnectorSecret, error)
}

// Workflows covers workflow definitions, drafts, revisions, and publishing
// (§3, §4.5, §8).
type Workflows interface {
	CreateWorkflow(ctx context.Context, tc TenantCtx, w Workflow) (Workflow, error)
	GetWorkflow(ctx context.Context, tc TenantCtx, id uuid.UUID) (Workflow, error)
	ListWorkflows(ctx context.Context, tc TenantCtx, cursor Cursor, limit int) ([]Workflow, Cursor, bool, error)
	UpdateDraftWorkflow(ctx context.Context, tc TenantCtx, id uuid.UUID, dsl, editorState map[string]any) (Workflow, error)
	PublishWorkflow(ctx context.Context, tc TenantCtx, id uuid.UUID) (Workflow, error)
	ListRevisions(ctx context.Context, tc TenantCtx, familyID uuid.UUID) ([]Workflow, error)
	CreateDraftRevision(ctx context.Context, tc TenantCtx, sourceWorkflowID uuid.UUID) (Workflow, error)
}

// WorkflowRuns covers the run lifecycle of §4.5.
type WorkflowRuns interface {
	CreateWorkflowRun(ctx context.Context, tc TenantCtx, r WorkflowRun) (WorkflowRun, error)
	// DeleteQueuedRun deletes a run row, but only when status=queued and
	// attemptCount=0 (spec §4.5 step 4); returns ErrPreconditionFailed
	// otherwise.
	DeleteQueuedRun(ctx context.Context, tc TenantCtx, id uuid.UUID) error
	GetWorkflowRun(ctx context.Context, tc TenantCtx, id uuid.UUID) (WorkflowRun, error)
	ListWorkflowRuns(ctx context.Context, tc TenantCtx, workflowID uuid.UUID, cursor Cursor, limit int) ([]WorkflowRun, Cursor, bool, error)
	TransitionRun(ctx context.Context, tc TenantCtx, id uuid.UUID, status WorkflowRunStatus, output map[string]any, errMsg string) (WorkflowRun, error)
}

// AgentSessions covers session routing, messaging, and events (§4.6).
type AgentSessions interface {
	CreateAgentSession(ctx context.Context, tc TenantCtx, s AgentSession) (AgentSession, error)
	GetAgentSessionByKey(ctx context.Context, tc TenantCtx, sessionKey string) (AgentSession, bool, error)
	GetAgentSession(ctx context.Context, tc TenantCtx, id uuid.UUID) (AgentSession, error)
	UpdateAgentSessionPinning(ctx context.Context, tc TenantCtx, id uuid.UUID, pinnedAgentID *uuid.UUID) error
	TouchAgentSessionActivity(ctx context.Context, tc TenantCtx, id uuid.UUID) error
	// AppendSessionEvent is idempotent by (sessionId, idempotencyKey): a
	// second call with the same key returns the first event unchanged
	// (spec §8). The store is responsible for serializing appends per
	// session so seq stays strictly monotone (spec §5).
	AppendSessionEvent(ctx context.Context, tc TenantCtx, sessionID uuid.UUID, eventType string, level AgentSessionEventLevel, idempotencyKey string, payload map[string]any) (AgentSessionEvent, bool, error)
	ListSessionEvents(ctx context.Context, tc TenantCtx, sessionID uuid.UUID, afterSeq int, limit int) ([]AgentSessionEvent, error)
}

// AgentBindings covers binding CRUD used by session routing (§4.6).
type AgentBindings interface {
	ListAgentBindings(ctx context.Context, tc TenantCtx) ([]AgentBinding, error)
	CreateAgentBinding(ctx context.Context, tc TenantCtx, b AgentBinding) (AgentBinding, error)
}

// ToolsetBuilderSessions covers the §4.8 state machine's persistence.
type ToolsetBuilderSessions interface {
	CreateToolsetBuilderSession(ctx context.Context, tc TenantCtx, s ToolsetBuilderSession) (ToolsetBuilderSession, error)
	GetToolsetBuilderSession(ctx context.Context, tc TenantCtx, id uuid.UUID) (ToolsetBuilderSession, error)
	AppendToolsetBuilderTurn(ctx context.Context, tc TenantCtx, sessionID uuid.UUID, role ToolsetBuilderTurnRole, text string) (ToolsetBuilderTurn, error)
	ListToolsetBuilderTurns(ctx context.Context, tc TenantCtx, sessionID uuid.UUID, limit int) ([]ToolsetBuilderTurn, error)
	UpdateToolsetBuilderSelection(ctx context.Context, tc TenantCtx, id uuid.UUID, latestIntent string, selected []string) error
	FinalizeToolsetBuilderSession(ctx context.Context, tc TenantCtx, id uuid.UUID, draft ToolsetDraft) (ToolsetBuilderSession, error)
}

// Toolsets covers the supplemented publish/unpublish round-trip (spec §8).
type Toolsets interface {
	CreateToolset(ctx context.Context, tc TenantCtx, t Toolset) (Toolset, error)
	GetToolset(ctx context.Context, tc TenantCtx, id uuid.UUID) (Toolset, error)
	PublishToolset(ctx context.Context, tc TenantCtx, id uuid.UUID, visibility ToolsetVisibility, slug string) (Toolset, error)
	UnpublishToolset(ctx context.Context, tc TenantCtx, id uuid.UUID, restoreVisibility ToolsetVisibility) (Toolset, error)
}

// Billing covers credits/ledger application (§4.9).
type Billing interface {
	GetCredits(ctx context.Context, tc TenantCtx) (OrganizationCredits, error)
	ListLedger(ctx context.Context, tc TenantCtx, cursor Cursor, limit int) ([]LedgerEntry, Cursor, bool, error)
	// ApplyCredit inserts one ledger row and updates the balance atomically,
	// keyed by stripeEventID for at-most-once application (spec §4.9, §8).
	// Returns applied=false without error on a duplicate stripeEventID.
	ApplyCredit(ctx context.Context, organizationID uuid.UUID, delta int64, reason string, stripeEventID *string, workflowRunID *uuid.UUID, createdBy *uuid.UUID, metadata map[string]any) (applied bool, entry LedgerEntry, err error)
}

// Executors covers the supplemented pairing-token issue/redeem/revoke flow.
type Executors interface {
	CreateExecutorPairing(ctx context.Context, tc TenantCtx, name, secretHash string) (ExecutorPairing, error)
	RedeemExecutorPairing(ctx context.Context, pairingID uuid.UUID, secretHash, newTokenHash string) (ExecutorPairing, ExecutorToken, error)
	RevokeExecutorToken(ctx context.Context, tc TenantCtx, id uuid.UUID) error
	GetExecutorToken(ctx context.Context, id uuid.UUID) (ExecutorToken, error)
}
