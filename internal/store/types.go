// Package store defines the tenant-scoped persistence interface (spec §2.3,
// §9) and the entity types from spec §3. Every mutating or reading call
// carries a TenantCtx so the underlying implementation can enforce
// row-level tenant isolation.
package store

import (
	"time"

	"github.com/google/uuid"
)

// TenantCtx is the (userId, organizationId?) pair passed to org-scoped Store
// methods, which filter rows by OrganizationID. It is not installed as a
// per-transaction database context on every call; see the Store interface.
type TenantCtx struct {
	ActorUserID    uuid.UUID
	OrganizationID uuid.UUID // uuid.Nil for calls made before an org is resolved
}

// RoleKey is a membership role, spec §3: member < admin < owner.
type RoleKey string

const (
	RoleMember RoleKey = "member"
	RoleAdmin  RoleKey = "admin"
	RoleOwner  RoleKey = "owner"
)

// RoleRank returns the ordering used by role gates (higher is more
// privileged).
func RoleRank(r RoleKey) int {
	switch r {
	case RoleOwner:
		return 2
	case RoleAdmin:
		return 1
	default:
		return 0
	}
}

// User is spec §3's User entity.
type User struct {
	ID           uuid.UUID
	EmailLower   string
	PasswordHash string
	DisplayName  string
	CreatedAt    time.Time
}

// Organization is spec §3's Organization entity.
type Organization struct {
	ID        uuid.UUID
	Slug      string
	Name      string
	Settings  map[string]any
	CreatedAt time.Time
}

// Membership is spec §3's Membership entity.
type Membership struct {
	OrganizationID uuid.UUID
	UserID         uuid.UUID
	RoleKey        RoleKey
}

// AuthSession is spec §3's "Session (auth)" entity, named AuthSession here
// to avoid colliding with AgentSession.
type AuthSession struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	RefreshTokenHash string
	ExpiresAt        time.Time
	RevokedAt        *time.Time
	UserAgent        string
	IP               string
	LastUsedAt       time.Time
}

// Active reports whether the session is usable, spec §3: "revokedAt = null
// ∧ now < expiresAt".
func (s AuthSession) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// InvitationStatus enumerates spec §3's Invitation.status values.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationExpired  InvitationStatus = "expired"
	InvitationRevoked  InvitationStatus = "revoked"
)

// Invitation is spec §3's Invitation entity.
type Invitation struct {
	ID              uuid.UUID
	OrganizationID  uuid.UUID
	EmailLower      string
	RoleKey         RoleKey
	InvitedByUserID uuid.UUID
	Token           string
	Status          InvitationStatus
	ExpiresAt       time.Time
}

// ConnectorSecret is spec §3's ConnectorSecret entity. Plaintext is never
// stored here — only the wrapped DEK and the wrapped payload.
type ConnectorSecret struct {
	ID               uuid.UUID
	OrganizationID   uuid.UUID
	ConnectorID      string
	Name             string
	KekID            string
	DekCiphertext    []byte
	DekIV            []byte
	DekTag           []byte
	SecretCiphertext []byte
	SecretIV         []byte
	SecretTag        []byte
	CreatedBy        uuid.UUID
	UpdatedBy        uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// WorkflowStatus enumerates spec §3's Workflow.status values.
type WorkflowStatus string

const (
	WorkflowDraft     WorkflowStatus = "draft"
	WorkflowPublished WorkflowStatus = "published"
)

// Workflow is spec §3's Workflow entity.
type Workflow struct {
	ID               uuid.UUID
	OrganizationID   uuid.UUID
	FamilyID         uuid.UUID
	Revision         int
	SourceWorkflowID *uuid.UUID
	Name             string
	Status           WorkflowStatus
	Version          int
	DSL              map[string]any
	EditorState      map[string]any
	CreatedBy        uuid.UUID
	PublishedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// WorkflowRunTriggerType enumerates spec §3's WorkflowRun.triggerType.
type WorkflowRunTriggerType string

const (
	TriggerManual  WorkflowRunTriggerType = "manual"
	TriggerChannel WorkflowRunTriggerType = "channel"
)

// WorkflowRunStatus enumerates spec §3's WorkflowRun.status.
type WorkflowRunStatus string

const (
	RunQueued    WorkflowRunStatus = "queued"
	RunRunning   WorkflowRunStatus = "running"
	RunSucceeded WorkflowRunStatus = "succeeded"
	RunFailed    WorkflowRunStatus = "failed"
)

// WorkflowRun is spec §3's WorkflowRun entity.
type WorkflowRun struct {
	ID                uuid.UUID
	OrganizationID    uuid.UUID
	WorkflowID        uuid.UUID
	TriggerType       WorkflowRunTriggerType
	Status            WorkflowRunStatus
	AttemptCount      int
	MaxAttempts       int
	Input             map[string]any
	Output            map[string]any
	Error             string
	RequestedByUserID uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AgentSessionStatus enumerates spec §3's AgentSession.status.
type AgentSessionStatus string

const (
	AgentSessionActive   AgentSessionStatus = "active"
	AgentSessionArchived AgentSessionStatus = "archived"
)

// LLMConfig is the embedded llm{provider, model, secretId?} shape from spec
// §3's AgentSession and the toolset-builder session.
type LLMConfig struct {
	Provider string
	Model    string
	SecretID *uuid.UUID
}

// PromptConfig is the embedded prompt{system?, instructions} shape.
type PromptConfig struct {
	System       string
	Instructions string
}

// AgentSession is spec §3's AgentSession entity.
type AgentSession struct {
	ID                uuid.UUID
	OrganizationID    uuid.UUID
	SessionKey        string
	Scope             string
	RoutedAgentID     *uuid.UUID
	BindingID         *uuid.UUID
	PinnedAgentID     *uuid.UUID
	EngineID          string
	ToolsetID         *uuid.UUID
	LLM               LLMConfig
	Prompt            PromptConfig
	ToolsAllow        []string
	Limits            map[string]any
	ExecutorSelector  map[string]any
	Status            AgentSessionStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
	LastActivityAt    time.Time
}

// AgentSessionEventLevel mirrors the level field on AgentSessionEvent.
type AgentSessionEventLevel string

const (
	EventLevelInfo  AgentSessionEventLevel = "info"
	EventLevelWarn  AgentSessionEventLevel = "warn"
	EventLevelError AgentSessionEventLevel = "error"
)

// AgentSessionEvent is spec §3's AgentSessionEvent entity. Events are
// append-only; (sessionId, idempotencyKey) is unique.
type AgentSessionEvent struct {
	ID             uuid.UUID
	SessionID      uuid.UUID
	Seq            int
	EventType      string
	Level          AgentSessionEventLevel
	IdempotencyKey string
	Payload        map[string]any
	CreatedAt      time.Time
}

// BindingDimension enumerates spec §3/§4.6's AgentBinding.dimension values.
type BindingDimension string

const (
	DimensionPeer           BindingDimension = "peer"
	DimensionParentPeer     BindingDimension = "parent_peer"
	DimensionOrgRoles       BindingDimension = "org_roles"
	DimensionOrganization   BindingDimension = "organization"
	DimensionTeam           BindingDimension = "team"
	DimensionAccount        BindingDimension = "account"
	DimensionChannel        BindingDimension = "channel"
	DimensionDefault        BindingDimension = "default"
)

// DimensionPriorityOrder is the ranking order from spec §4.6 step 3, lowest
// index wins.
var DimensionPriorityOrder = []BindingDimension{
	DimensionPeer, DimensionParentPeer, DimensionOrgRoles, DimensionOrganization,
	DimensionTeam, DimensionAccount, DimensionChannel, DimensionDefault,
}

// AgentBinding is spec §3's AgentBinding entity.
type AgentBinding struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	AgentID        uuid.UUID
	Priority       int
	Dimension      BindingDimension
	Match          map[string]any
	Metadata       map[string]any
}

// ToolsetBuilderStatus enumerates the builder session state machine, spec
// §4.8: ACTIVE → FINALIZED (terminal).
type ToolsetBuilderStatus string

const (
	BuilderActive    ToolsetBuilderStatus = "ACTIVE"
	BuilderFinalized ToolsetBuilderStatus = "FINALIZED"
)

// ToolsetBuilderTurnRole enumerates spec §3's turn.role.
type ToolsetBuilderTurnRole string

const (
	TurnUser      ToolsetBuilderTurnRole = "USER"
	TurnAssistant ToolsetBuilderTurnRole = "ASSISTANT"
)

// ToolsetBuilderTurn is one append-only turn in a builder session.
type ToolsetBuilderTurn struct {
	ID          uuid.UUID
	SessionID   uuid.UUID
	Role        ToolsetBuilderTurnRole
	MessageText string
	CreatedAt   time.Time
}

// ToolsetDraft is the validated artifact produced by ToolsetBuilder.finalize,
// spec §4.8.
type ToolsetDraft struct {
	MCPServers   []MCPServerSpec
	AgentSkills  []AgentSkillSpec
}

// MCPServerSpec is one MCP server entry in a finalized toolset draft.
type MCPServerSpec struct {
	Name    string
	Env     map[string]string
	Headers map[string]string
}

// AgentSkillSpec is one agent-skill bundle entry in a finalized toolset
// draft.
type AgentSkillSpec struct {
	Format string
	Files  []string // relative paths within the bundle, including SKILL.md
}

// ToolsetBuilderSession is spec §3's ToolsetBuilderSession entity.
type ToolsetBuilderSession struct {
	ID                    uuid.UUID
	OrganizationID        uuid.UUID
	CreatedBy             uuid.UUID
	Status                ToolsetBuilderStatus
	LLM                   LLMConfig
	LatestIntent          string
	SelectedComponentKeys []string
	FinalDraft            *ToolsetDraft
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// ToolsetVisibility enumerates a published toolset's visibility (supplemented
// feature, see SPEC_FULL.md "Toolset publish/unpublish").
type ToolsetVisibility string

const (
	ToolsetPrivate ToolsetVisibility = "private"
	ToolsetOrg     ToolsetVisibility = "org"
	ToolsetPublic  ToolsetVisibility = "public"
)

// Toolset is the supplemented Toolset entity (publish/unpublish round-trip,
// spec §8).
type Toolset struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	Draft          ToolsetDraft
	Visibility     ToolsetVisibility
	PublicSlug     *string
	PublishedAt    *time.Time
	CreatedBy      uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OrganizationCredits is spec §3's OrganizationCredits entity.
type OrganizationCredits struct {
	OrganizationID uuid.UUID
	BalanceCredits int64
	UpdatedAt      time.Time
}

// LedgerEntry is one append-only row in spec §3's credits ledger.
type LedgerEntry struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	DeltaCredits   int64
	Reason         string
	StripeEventID  *string
	WorkflowRunID  *uuid.UUID
	CreatedBy      *uuid.UUID
	Metadata       map[string]any
	CreatedAt      time.Time
}

// ExecutorPairing is the supplemented pairing-token entity (glossary
// "Pairing token"): a one-shot token a worker exchanges for a long-lived
// executor token.
type ExecutorPairing struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	SecretHash     string
	Name           string
	IssuedAt       time.Time
	RedeemedAt     *time.Time
	ExecutorID     *uuid.UUID
}

// ExecutorToken is the long-lived credential an executor worker holds after
// redeeming a pairing token.
type ExecutorToken struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	TokenHash      string
	IssuedAt       time.Time
	RevokedAt      *time.Time
}

// Cursor is the decoded form of an opaque pagination cursor, spec §6:
// "{createdAt, id}" for descending lists, "{seq}" for session events.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
	Seq       int
	HasSeq    bool
}
