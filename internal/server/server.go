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
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"callsheet/internal/actionitems"
	"callsheet/internal/engine"
	"callsheet/internal/phase"
	"callsheet/internal/repo"
	"callsheet/internal/settings"
	"callsheet/internal/sweep"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	Settings settings.Service
	Sweep    sweep.Evaluator
	Actions  actionitems.Service
	BasePath string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"transition_not_allowed"`
	Message string         `json:"message" example:"transition from prep to staffing not allowed"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope every endpoint returns.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// ActorHeader identifies the acting operator; absent means "unknown".
type ActorHeader struct {
	ActorID string `header:"X-Actor-Id"`
}

// New returns an HTTP handler exposing the Callsheet API.
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
	hcfg := huma.DefaultConfig("Callsheet API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerProjects(group, cfg.Engine)
	registerPhases(group, cfg.Engine)
	registerChecklist(group, cfg.Engine)
	registerStaffing(group, cfg.Engine)
	registerTimecards(group, cfg.Engine)
	registerConfiguration(group, cfg.Settings)
	registerActionItems(group, cfg.Actions)
	registerSweep(group, cfg.Sweep)
	registerAudit(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

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
	var tna *engine.TransitionNotAllowedError
	if errors.As(err, &tna) {
		return newAPIError(http.StatusConflict, "transition_not_allowed", err.Error(), map[string]any{
			"current_phase":   tna.Current,
			"requested_phase": tna.Requested,
			"blockers":        tna.Blockers,
		})
	}
	var ve *settings.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"field": ve.Field})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
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
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
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
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Callsheet API Docs</title>
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
  </body>
</html>`, specURL)
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

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ActorHeader
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		if input.Body.ID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "id is required", nil)
		}
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		opts := engine.ProjectCreateOptions{
			ID:      input.Body.ID,
			Name:    input.Body.Name,
			ActorID: input.ActorID,
		}
		if input.Body.Description != nil {
			opts.Description = *input.Body.Description
		}
		if input.Body.Timezone != nil {
			opts.Timezone = *input.Body.Timezone
		}
		if input.Body.RehearsalStartDate != nil {
			opts.RehearsalStartDate = *input.Body.RehearsalStartDate
		}
		if input.Body.ShowEndDate != nil {
			opts.ShowEndDate = *input.Body.ShowEndDate
		}
		p, err := e.CreateProject(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []ProjectResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListProjects(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ProjectResponse `json:"body"`
		}{Body: mapProjects(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		p, err := e.Repo.GetProject(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})
}

func registerPhases(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-phase",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/phase",
		Summary:     "Current phase",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		current, err := e.GetCurrentPhase(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"project_id": input.ProjectID, "phase": string(current)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "evaluate-transition",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/phase/evaluation",
		Summary:     "Evaluate next transition",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body EvaluationResponse `json:"body"`
	}, error) {
		ev, err := e.EvaluateTransition(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EvaluationResponse `json:"body"`
		}{Body: evaluationResponse(ev)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "execute-transition",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/phase/transitions",
		Summary:     "Execute transition",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ActorHeader
		ProjectID string                   `path:"project_id"`
		Body      ExecuteTransitionRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		target, err := phase.Parse(input.Body.TargetPhase)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		p, err := e.ExecuteTransition(ctx, input.ProjectID, target, phase.TriggerManual, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})
}

func registerChecklist(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-checklist",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/checklist",
		Summary:     "Setup checklist",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body ChecklistResponse `json:"body"`
	}, error) {
		c, err := e.Repo.GetSetupChecklist(ctx, input.ProjectID)
		if errors.Is(err, repo.ErrNotFound) {
			c.ProjectID = input.ProjectID
			err = nil
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ChecklistResponse `json:"body"`
		}{Body: checklistResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-checklist",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}/checklist",
		Summary:     "Update setup checklist",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ActorHeader
		ProjectID string                 `path:"project_id"`
		Body      UpdateChecklistRequest `json:"body"`
	}) (*struct {
		Body ChecklistResponse `json:"body"`
	}, error) {
		c, err := e.UpdateChecklist(ctx, input.ProjectID, engine.ChecklistUpdate{
			RolesFinalized:           input.Body.RolesFinalized,
			LocationsFinalized:       input.Body.LocationsFinalized,
			TeamAssignmentsFinalized: input.Body.TeamAssignmentsFinalized,
			TalentRosterFinalized:    input.Body.TalentRosterFinalized,
		}, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ChecklistResponse `json:"body"`
		}{Body: checklistResponse(c)}, nil
	})
}

func registerStaffing(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-location",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/locations",
		Summary:       "Add location",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ActorHeader
		ProjectID string             `path:"project_id"`
		Body      AddLocationRequest `json:"body"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		loc, err := e.AddLocation(ctx, input.ProjectID, input.Body.Name, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"id": loc.ID, "name": loc.Name}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-role-template",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/role-templates",
		Summary:       "Add role template",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ActorHeader
		ProjectID string                 `path:"project_id"`
		Body      AddRoleTemplateRequest `json:"body"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		if input.Body.Role == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "role is required", nil)
		}
		rt, err := e.AddRoleTemplate(ctx, input.ProjectID, input.Body.Role, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"id": rt.ID, "role": rt.Role}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-team-assignment",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/team",
		Summary:       "Assign team member",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ActorHeader
		ProjectID string                   `path:"project_id"`
		Body      AddTeamAssignmentRequest `json:"body"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		if input.Body.MemberName == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "member_name is required", nil)
		}
		ta, err := e.AddTeamAssignment(ctx, input.ProjectID, input.Body.MemberName, input.Body.Role, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"id": ta.ID, "member_name": ta.MemberName, "role": ta.Role}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-talent-assignment",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/talent",
		Summary:       "Assign talent",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ActorHeader
		ProjectID string                     `path:"project_id"`
		Body      AddTalentAssignmentRequest `json:"body"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		if input.Body.TalentName == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "talent_name is required", nil)
		}
		ta, err := e.AddTalentAssignment(ctx, input.ProjectID, input.Body.TalentName, input.Body.EscortName, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		body := map[string]string{"id": ta.ID, "talent_name": ta.TalentName}
		if ta.EscortName != nil {
			body["escort_name"] = *ta.EscortName
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: body}, nil
	})
}

func registerTimecards(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "add-timecard",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/timecards",
		Summary:       "Submit timecard",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ActorHeader
		ProjectID string             `path:"project_id"`
		Body      AddTimecardRequest `json:"body"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		if input.Body.TeamAssignmentID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "team_assignment_id is required", nil)
		}
		tc, err := e.AddTimecard(ctx, input.ProjectID, input.Body.TeamAssignmentID, input.Body.WorkDate, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"id": tc.ID, "status": tc.Status}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-timecard-status",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}/timecards/{timecard_id}",
		Summary:     "Set timecard status",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ActorHeader
		ProjectID  string                   `path:"project_id"`
		TimecardID string                   `path:"timecard_id"`
		Body       SetTimecardStatusRequest `json:"body"`
	}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		if err := e.SetTimecardStatus(ctx, input.ProjectID, input.TimecardID, input.Body.Status, input.ActorID); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"id": input.TimecardID, "status": input.Body.Status}}, nil
	})
}

func registerConfiguration(api huma.API, svc settings.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "get-configuration",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/configuration",
		Summary:     "Scheduling configuration",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body ConfigurationResponse `json:"body"`
	}, error) {
		cfg, err := svc.Get(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ConfigurationResponse `json:"body"`
		}{Body: configurationResponse(cfg)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-configuration",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}/configuration",
		Summary:     "Update scheduling configuration",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ActorHeader
		ProjectID string                     `path:"project_id"`
		Body      UpdateConfigurationRequest `json:"body"`
	}) (*struct {
		Body ConfigurationResponse `json:"body"`
	}, error) {
		cfg, err := svc.Update(ctx, input.ProjectID, settings.ConfigurationUpdate{
			Timezone:               input.Body.Timezone,
			RehearsalStartDate:     input.Body.RehearsalStartDate,
			ShowEndDate:            input.Body.ShowEndDate,
			AutoTransitionsEnabled: input.Body.AutoTransitionsEnabled,
			ArchiveMonth:           input.Body.ArchiveMonth,
			ArchiveDay:             input.Body.ArchiveDay,
			PostShowTransitionHour: input.Body.PostShowTransitionHour,
		}, input.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ConfigurationResponse `json:"body"`
		}{Body: configurationResponse(cfg)}, nil
	})
}

func registerActionItems(api huma.API, svc actionitems.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "list-action-items",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/action-items",
		Summary:     "Phase action items",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID    string `path:"project_id"`
		Phase        string `query:"phase" enum:"prep,staffing,pre_show,active,post_show,complete,archived,"`
		Category     string `query:"category"`
		Priority     string `query:"priority" enum:"high,medium,low,"`
		RequiredOnly bool   `query:"required_only"`
		Readiness    bool   `query:"include_readiness"`
	}) (*struct {
		Body actionitems.List `json:"body"`
	}, error) {
		list, err := svc.List(ctx, input.ProjectID, actionitems.Filters{
			Phase:                 input.Phase,
			Category:              input.Category,
			Priority:              input.Priority,
			RequiredOnly:          input.RequiredOnly,
			IncludeReadinessItems: input.Readiness,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body actionitems.List `json:"body"`
		}{Body: list}, nil
	})
}

func registerSweep(api huma.API, ev sweep.Evaluator) {
	huma.Register(api, huma.Operation{
		OperationID: "run-sweep",
		Method:      http.MethodPost,
		Path:        "/sweep",
		Summary:     "Run automatic transition sweep",
		Errors:      []int{http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		DryRun bool `query:"dry_run"`
	}) (*struct {
		Body sweep.SweepResult `json:"body"`
	}, error) {
		result, err := ev.EvaluateAllProjects(ctx, input.DryRun)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body sweep.SweepResult `json:"body"`
		}{Body: result}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-scheduled-transitions",
		Method:      http.MethodGet,
		Path:        "/scheduled-transitions",
		Summary:     "Upcoming scheduled transitions",
	}, func(ctx context.Context, input *struct {
		WindowHours int `query:"window_hours" minimum:"1" maximum:"8760"`
	}) (*struct {
		Body []ScheduledTransitionResponse `json:"body"`
	}, error) {
		window := input.WindowHours
		if window == 0 {
			window = 72
		}
		items, err := ev.ScheduledTransitions(ctx, hoursToDuration(window))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ScheduledTransitionResponse `json:"body"`
		}{Body: mapScheduled(items)}, nil
	})
}

func hoursToDuration(h int) time.Duration {
	return time.Duration(h) * time.Hour
}

func registerAudit(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-audit-log",
		Method:      http.MethodGet,
		Path:        "/audit-log",
		Summary:     "Audit log",
	}, func(ctx context.Context, input *struct {
		ProjectID  string `query:"project_id"`
		ActionType string `query:"action_type"`
		Limit      int    `query:"limit" minimum:"1" maximum:"500"`
		Cursor     int64  `query:"cursor"`
	}) (*struct {
		Body []AuditEntryResponse `json:"body"`
	}, error) {
		entries, err := e.Repo.LatestAuditEntries(ctx, repo.AuditFilters{
			ProjectID:  input.ProjectID,
			ActionType: input.ActionType,
			Limit:      input.Limit,
			Cursor:     input.Cursor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []AuditEntryResponse `json:"body"`
		}{Body: mapAuditEntries(entries)}, nil
	})
}
