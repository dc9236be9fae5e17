package sessionrouter

import (
	"regexp"
	"strings"
)

var nonKeyChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// norm implements spec §4.6's sessionKey normalization: lowercase, collapse
// runs of anything outside [a-z0-9._-] to a single "-", empty → fallback.
func norm(x, fallback string) string {
	lowered := strings.ToLower(x)
	collapsed := nonKeyChars.ReplaceAllString(lowered, "-")
	collapsed = strings.Trim(collapsed, "-")
	if collapsed == "" {
		return fallback
	}
	return collapsed
}

// KeyRequest carries the fields sessionKey derivation needs, spec §4.6.
type KeyRequest struct {
	RoutedAgentID  string
	OrganizationID string
	Scope          string
	Peer           string
	ActorUserID    string
	ChannelID      string
	AccountID      string
}

// DeriveSessionKey implements spec §4.6's sessionKey derivation.
func DeriveSessionKey(req KeyRequest) string {
	agent := req.RoutedAgentID
	if agent == "" {
		agent = "main"
	}
	base := "agent:" + norm(agent, "main") +
		":org:" + norm(req.OrganizationID, "org") +
		":scope:" + norm(req.Scope, "main")

	peer := req.Peer
	if peer == "" {
		peer = req.ActorUserID
	}

	switch req.Scope {
	case "per-peer":
		return base + ":peer:" + norm(peer, "anon")
	case "per-channel-peer":
		return base + ":channel:" + norm(req.ChannelID, "unknown") + ":peer:" + norm(peer, "anon")
	case "per-account-channel-peer":
		return base + ":account:" + norm(req.AccountID, "unknown") +
			":channel:" + norm(req.ChannelID, "unknown") +
			":peer:" + norm(peer, "anon")
	default:
		return base
	}
}
