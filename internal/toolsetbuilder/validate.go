package toolsetbuilder

import (
	"regexp"
	"strings"

	"github.com/vespid-ai/control-plane/internal/apperr"
	"github.com/vespid-ai/control-plane/internal/store"
)

const reservedMCPServerName = "vespid-tools"

var envPlaceholder = regexp.MustCompile(`^\$\{ENV:[A-Za-z_][A-Za-z0-9_]*\}$`)

// ValidateDraft implements spec §4.8's finalize validation: MCP env/header
// values restricted to ${ENV:VAR} placeholders, reserved/duplicate server
// names rejected, and agent-skill bundles checked for format, SKILL.md
// presence, and path safety.
func ValidateDraft(draft store.ToolsetDraft) error {
	seen := make(map[string]bool, len(draft.MCPServers))
	for _, srv := range draft.MCPServers {
		if srv.Name == reservedMCPServerName {
			return apperr.ErrValidation("mcp server name \"" + reservedMCPServerName + "\" is reserved")
		}
		if seen[srv.Name] {
			return apperr.ErrValidation("duplicate mcp server name: " + srv.Name)
		}
		seen[srv.Name] = true

		for key, value := range srv.Env {
			if !envPlaceholder.MatchString(value) {
				return apperr.WithDetails(400, "INVALID_MCP_PLACEHOLDER", "mcp server env values must be ${ENV:VAR} placeholders", map[string]any{"server": srv.Name, "key": key})
			}
		}
		for key, value := range srv.Headers {
			if !envPlaceholder.MatchString(value) {
				return apperr.WithDetails(400, "INVALID_MCP_PLACEHOLDER", "mcp server header values must be ${ENV:VAR} placeholders", map[string]any{"server": srv.Name, "key": key})
			}
		}
	}

	for _, skill := range draft.AgentSkills {
		if skill.Format != "agentskills-v1" {
			return apperr.WithDetails(400, "INVALID_SKILL_BUNDLE", "agent skill bundle must declare format=agentskills-v1", map[string]any{"format": skill.Format})
		}
		if err := validateSkillFiles(skill.Files); err != nil {
			return err
		}
	}

	return nil
}

func validateSkillFiles(files []string) error {
	hasManifest := false
	for _, f := range files {
		if f == "SKILL.md" {
			hasManifest = true
		}
		if err := validatePath(f); err != nil {
			return err
		}
	}
	if !hasManifest {
		return apperr.WithDetails(400, "INVALID_SKILL_BUNDLE", "agent skill bundle must contain a SKILL.md file", nil)
	}
	return nil
}

// validatePath implements the path-safety rules: no "..", no absolute or
// Windows-drive paths, no symlinks (files are plain paths here, so
// "no symlinks" is enforced by callers never resolving these through the
// filesystem as anything but regular-file writes).
func validatePath(p string) error {
	if p == "" {
		return apperr.WithDetails(400, "INVALID_SKILL_BUNDLE", "agent skill bundle file path must not be empty", nil)
	}
	if strings.Contains(p, "..") {
		return apperr.WithDetails(400, "INVALID_SKILL_BUNDLE", "agent skill bundle file path must not contain \"..\"", map[string]any{"path": p})
	}
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\") {
		return apperr.WithDetails(400, "INVALID_SKILL_BUNDLE", "agent skill bundle file path must not be absolute", map[string]any{"path": p})
	}
	if len(p) >= 2 && p[1] == ':' {
		return apperr.WithDetails(400, "INVALID_SKILL_BUNDLE", "agent skill bundle file path must not use a drive letter", map[string]any{"path": p})
	}
	return nil
}
