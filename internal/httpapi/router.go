package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes builds the full chi route tree: a bootstrap group with stricter
// rate limiting, a general authenticated group, and an internal group
// gated on the shared service token instead of a user session.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(CorrelationMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	tokens := serviceTokens{
		InternalAPIServiceToken: s.Cfg.InternalAPIServiceToken,
		GatewayServiceToken:     s.Cfg.GatewayServiceToken,
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(s.Authn))

		// Bootstrap: signup/login/refresh/oauth start, brute-force
		// resistant rather than burst tolerant.
		r.Group(func(r chi.Router) {
			r.Use(RateLimitMiddleware(DefaultAuthRateLimitConfig))

			r.Post("/auth/signup", s.handleSignup)
			r.Post("/auth/login", s.handleLogin)
			r.Post("/auth/refresh", s.handleRefresh)
			r.Get("/auth/oauth/{provider}/start", s.handleOAuthStart)
			r.Get("/auth/oauth/{provider}/callback", s.handleOAuthCallback)
			r.Get("/auth/oauth/vertex/start", s.handleVertexOAuthStart)
			r.Get("/auth/oauth/device/{deviceCode}/supply", s.handleOAuthDeviceSupply)
			r.Post("/auth/oauth/device/{deviceCode}/supply", s.handleOAuthDeviceSupply)
			r.Get("/auth/oauth/device/{deviceCode}/poll", s.handleOAuthDevicePoll)
			r.Post("/executors/redeem", s.handleRedeemExecutorPairing)
			r.Get("/billing/credits/packs", s.handleListCreditPacks)
		})

		// General authenticated surface.
		r.Group(func(r chi.Router) {
			r.Use(RateLimitMiddleware(DefaultRateLimitConfig))

			r.Post("/auth/logout", s.handleLogout)
			r.Post("/auth/logout-all", s.handleLogoutAll)
			r.Get("/me", s.handleMe)
			r.Post("/invitations/{token}/accept", s.handleAcceptInvitation)
			r.Post("/auth/oauth/device/start", s.handleOAuthDeviceStart)

			r.Get("/meta/capabilities", s.handleCapabilities)
			r.Get("/meta/connectors", s.handleConnectors)
			r.Get("/meta/channels", s.handleChannels)
			r.Get("/llm/providers", s.handleLLMProviders)

			r.Post("/orgs", s.handleCreateOrg)

			r.Route("/orgs/{orgId}", func(r chi.Router) {
				r.Post("/invitations", s.handleCreateInvitation)
				r.Post("/members/{memberId}/role", s.handleSetMemberRole)
				r.Get("/settings", s.handleGetOrgSettings)
				r.Put("/settings", s.handlePutOrgSettings)

				r.Post("/secrets", s.handleCreateSecret)
				r.Get("/secrets", s.handleListSecrets)
				r.Post("/secrets/{secretId}/reveal", s.handleRevealSecret)
				r.Post("/secrets/{secretId}/rotate", s.handleRotateSecret)
				r.Delete("/secrets/{secretId}", s.handleDeleteSecret)

				r.Post("/workflows", s.handleCreateWorkflow)
				r.Get("/workflows", s.handleListWorkflows)
				r.Get("/workflows/{workflowId}", s.handleGetWorkflow)
				r.Put("/workflows/{workflowId}/draft", s.handleUpdateDraftWorkflow)
				r.Post("/workflows/{workflowId}/publish", s.handlePublishWorkflow)
				r.Get("/workflows/{workflowId}/revisions", s.handleListRevisions)
				r.Post("/workflows/{workflowId}/revisions", s.handleCreateDraftRevision)
				r.Post("/workflows/{workflowId}/runs", s.handleCreateWorkflowRun)
				r.Get("/workflows/{workflowId}/runs", s.handleListWorkflowRuns)
				r.Get("/workflows/{workflowId}/runs/{runId}", s.handleGetWorkflowRun)

				r.Post("/sessions", s.handleCreateSession)
				r.Get("/sessions/{sessionId}", s.handleGetSession)
				r.Post("/sessions/{sessionId}/messages", s.handleAppendSessionMessage)
				r.Post("/sessions/{sessionId}/reset", s.handleResetSession)
				r.Get("/sessions/{sessionId}/events", s.handleListSessionEvents)

				r.Get("/bindings", s.handleListAgentBindings)
				r.Post("/bindings", s.handleCreateAgentBinding)

				r.Post("/toolset-builder/sessions", s.handleCreateToolsetBuilderSession)
				r.Post("/toolset-builder/sessions/{sessionId}/chat", s.handleToolsetBuilderChat)
				r.Post("/toolset-builder/sessions/{sessionId}/finalize", s.handleFinalizeToolsetBuilderSession)

				r.Post("/toolsets", s.handleCreateToolset)
				r.Get("/toolsets/{toolsetId}", s.handleGetToolset)
				r.Post("/toolsets/{toolsetId}/publish", s.handlePublishToolset)
				r.Post("/toolsets/{toolsetId}/unpublish", s.handleUnpublishToolset)

				r.Get("/billing/credits", s.handleGetCredits)
				r.Get("/billing/credits/ledger", s.handleListLedger)
				r.Post("/billing/credits/checkout", s.handleCreateCheckoutSession)

				r.Post("/executors/pairings", s.handleIssueExecutorPairing)
				r.Post("/executors/{executorTokenId}/revoke", s.handleRevokeExecutorToken)
			})
		})
	})

	// Stripe's webhook carries its own signature as authentication and
	// must never go through JSON-assuming AuthMiddleware/decodeJSON.
	r.Post("/v1/billing/stripe/webhook", s.handleStripeWebhook)

	r.Route("/internal/v1", func(r chi.Router) {
		r.Use(ServiceTokenMiddleware(tokens))
		r.Post("/channels/trigger-run", s.handleChannelTriggerRun)
	})

	return r
}
