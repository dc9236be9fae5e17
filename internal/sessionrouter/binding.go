package sessionrouter

import (
	"context"
	"sort"

	"github.com/vespid-ai/control-plane/internal/store"
)

// MatchRequest carries the request-context fields spec §4.6 step 2's
// per-dimension match rules compare against a binding's match JSON.
type MatchRequest struct {
	Peer    string
	Team    string
	Account string
	Channel string
}

// dimensionRank maps each dimension to its index in DimensionPriorityOrder;
// lower wins.
func dimensionRank(d store.BindingDimension) int {
	for i, cand := range store.DimensionPriorityOrder {
		if cand == d {
			return i
		}
	}
	return len(store.DimensionPriorityOrder)
}

// matches implements spec §4.6 step 2's per-dimension rules.
func matches(b store.AgentBinding, req MatchRequest, membershipRole store.RoleKey, organizationID string) bool {
	switch b.Dimension {
	case store.DimensionPeer:
		return stringField(b.Match, "peer") == req.Peer && req.Peer != ""
	case store.DimensionOrgRoles:
		roles := stringSliceField(b.Match, "orgRoles")
		for _, role := range roles {
			if store.RoleKey(role) == membershipRole {
				return true
			}
		}
		return false
	case store.DimensionOrganization:
		matchOrg := stringField(b.Match, "organizationId")
		return matchOrg == "" || matchOrg == organizationID
	case store.DimensionTeam:
		return stringField(b.Match, "team") == req.Team && req.Team != ""
	case store.DimensionAccount:
		return stringField(b.Match, "account") == req.Account && req.Account != ""
	case store.DimensionChannel:
		return stringField(b.Match, "channel") == req.Channel && req.Channel != ""
	case store.DimensionDefault:
		return true
	case store.DimensionParentPeer:
		// Reserved, spec §4.6: "never matches in the current design."
		return false
	default:
		return false
	}
}

func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func stringSliceField(m map[string]any, key string) []string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Resolve implements spec §4.6 steps 1-3: fetch all org bindings, filter to
// matches, rank by dimension priority then priority DESC then id ASC, and
// return the winner. ok is false when no binding matches (the caller falls
// back to an unrouted session).
func Resolve(ctx context.Context, st store.Store, tc store.TenantCtx, req MatchRequest, membershipRole store.RoleKey) (store.AgentBinding, bool, error) {
	bindings, err := st.ListAgentBindings(ctx, tc)
	if err != nil {
		return store.AgentBinding{}, false, err
	}

	var candidates []store.AgentBinding
	for _, b := range bindings {
		if matches(b, req, membershipRole, tc.OrganizationID.String()) {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return store.AgentBinding{}, false, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		ri, rj := dimensionRank(candidates[i].Dimension), dimensionRank(candidates[j].Dimension)
		if ri != rj {
			return ri < rj
		}
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].ID.String() < candidates[j].ID.String()
	})
	return candidates[0], true, nil
}
