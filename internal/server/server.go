package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"leadline/internal/domain"
	"leadline/internal/engine"
	"leadline/internal/engine/auth"
	"leadline/internal/feed"
	"leadline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	Feed     *feed.Feed
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"unauthorized"`
	Message string         `json:"message" example:"actor is not authorized"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Leadline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Leadline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerLeads(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerFeed(router, basePath, cfg.Feed)
	registerOpenAPI(router, api, basePath)

	startWebhookDispatcher(cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ue auth.UnauthorizedError
	if errors.As(err, &ue) {
		return newAPIError(http.StatusForbidden, "unauthorized", err.Error(), nil)
	}
	var ite domain.InvalidTransitionError
	if errors.As(err, &ite) {
		return newAPIError(http.StatusUnprocessableEntity, "invalid_transition", err.Error(), map[string]any{
			"from": ite.From,
			"to":   ite.To,
		})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "ideation backend") || strings.Contains(lowered, "generate ideation"):
		return newAPIError(http.StatusInternalServerError, "internal_error", "agent failed to process ideation", map[string]any{"error": msg})
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerLeads(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "ingest-lead",
		Method:        http.MethodPost,
		Path:          "/leads",
		Summary:       "Ingest an inbound lead",
		Description:   "Public intake for webhooks and forms. Missing fields are defaulted, never rejected.",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body IngestLeadRequest `json:"body"`
	}) (*struct {
		Body IngestLeadResponse `json:"body"`
	}, error) {
		l, err := e.IngestLead(ctx, engine.IngestOptions{
			Name:   input.Body.Name,
			Email:  input.Body.Email,
			Notes:  input.Body.Notes,
			Source: input.Body.Source,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IngestLeadResponse `json:"body"`
		}{Body: IngestLeadResponse{Success: true, Lead: l}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-leads",
		Method:      http.MethodGet,
		Path:        "/leads",
		Summary:     "List leads, newest first",
	}, func(ctx context.Context, input *struct {
		Status domain.Status `query:"status" enum:"needs_follow_up,in_review,success" required:"false"`
	}) (*struct {
		Body LeadListResponse `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		orgID := ""
		if e.Config.Org.Scoped {
			orgID = e.Config.Org.ID
		}
		leads, err := e.Repo.ListLeads(ctx, repo.LeadFilters{
			OwnerID: e.Config.Owner.ID,
			OrgID:   orgID,
			Status:  input.Status,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LeadListResponse `json:"body"`
		}{Body: LeadListResponse{Leads: leads}}, nil
	})

	type LeadPath struct {
		LeadID string `path:"lead_id"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "get-lead",
		Method:      http.MethodGet,
		Path:        "/leads/{lead_id}",
		Summary:     "Fetch one lead",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *LeadPath) (*struct {
		Body domain.Lead `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		l, err := e.Repo.GetLead(ctx, input.LeadID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Lead `json:"body"`
		}{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-lead-status",
		Method:      http.MethodPatch,
		Path:        "/leads/{lead_id}/status",
		Summary:     "Transition a lead's workflow status",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		LeadPath
		Body UpdateLeadStatusRequest `json:"body"`
	}) (*struct {
		Body domain.Lead `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		l, err := e.UpdateLeadStatus(ctx, engine.UpdateStatusOptions{
			ID:      input.LeadID,
			Status:  input.Body.Status,
			ActorID: actorID,
			Force:   input.Body.Force,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Lead `json:"body"`
		}{Body: l}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "ideate-lead",
		Method:      http.MethodPost,
		Path:        "/leads/{lead_id}/ideate",
		Summary:     "Run the ideation agent on a lead",
		Description: "Restricted to the configured owner identity. Overwrites any previous ideation.",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *LeadPath) (*struct {
		Body IdeateResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := e.GenerateIdeation(ctx, engine.IdeateOptions{ID: input.LeadID, ActorID: actorID}); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body IdeateResponse `json:"body"`
		}{Body: IdeateResponse{Success: true}}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Tail the event log",
	}, func(ctx context.Context, input *struct {
		N      int    `query:"n" required:"false"`
		Type   string `query:"type" required:"false"`
		LeadID string `query:"lead_id" required:"false"`
		After  int64  `query:"after" required:"false" doc:"Return events with id greater than this cursor, oldest first"`
	}) (*struct {
		Body EventListResponse `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		var evts []domain.Event
		var err error
		if input.After > 0 {
			evts, err = e.Repo.EventsAfter(ctx, input.N, input.After)
		} else {
			evts, err = e.Repo.LatestEvents(ctx, input.N, input.Type, input.LeadID)
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EventListResponse `json:"body"`
		}{Body: EventListResponse{Events: evts}}, nil
	})
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
	}
	oas.Security = security
	openPaths := map[string]struct{}{
		joinPath(basePath, "health"): {},
		joinPath(basePath, "leads"):  {}, // POST only; reads still need auth
	}
	for route, item := range oas.Paths {
		for method, op := range map[string]*huma.Operation{
			http.MethodGet: item.Get, http.MethodPost: item.Post,
			http.MethodPatch: item.Patch, http.MethodDelete: item.Delete,
		} {
			if op == nil {
				continue
			}
			if _, open := openPaths[route]; open && (route == joinPath(basePath, "health") || method == http.MethodPost) {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func joinPath(basePath, p string) string {
	joined := path.Join(basePath, p)
	if !strings.HasPrefix(joined, "/") {
		joined = "/" + joined
	}
	return joined
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Leadline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt;.
    </p>
  </body>
</html>`, specURL)
}
