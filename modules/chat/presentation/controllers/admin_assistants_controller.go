package controllers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/lucerna-ai/lucerna/modules/chat/presentation/dtos"
	"github.com/lucerna-ai/lucerna/modules/chat/services"
	"github.com/lucerna-ai/lucerna/pkg/application"
	"github.com/lucerna-ai/lucerna/pkg/di"
	"github.com/lucerna-ai/lucerna/pkg/httpapi"
)

const adminTokenHeader = "X-Admin-Token"

// requireAdminToken guards the admin surface with a shared token. An empty
// configured token disables the surface entirely.
func requireAdminToken(token string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				http.NotFound(w, r)
				return
			}
			provided := r.Header.Get(adminTokenHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				_ = httpapi.WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid admin token", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminController manages assistant configurations and usage reporting.
type AdminController struct {
	basePath   string
	adminToken string
}

func NewAdminController(adminToken string) application.Controller {
	return &AdminController{
		basePath:   "/api/admin",
		adminToken: adminToken,
	}
}

func (c *AdminController) Key() string {
	return c.basePath
}

func (c *AdminController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.Use(requireAdminToken(c.adminToken))

	router.Handle("/assistants", di.H(c.listAssistants)).Methods(http.MethodGet)
	router.Handle("/assistants", di.H(c.createAssistant)).Methods(http.MethodPost)
	router.Handle("/assistants/{id}", di.H(c.getAssistant)).Methods(http.MethodGet)
	router.Handle("/assistants/{id}", di.H(c.updateAssistant)).Methods(http.MethodPut)
	router.Handle("/assistants/{id}", di.H(c.deleteAssistant)).Methods(http.MethodDelete)
	router.Handle("/models", di.H(c.listModels)).Methods(http.MethodGet)
	router.Handle("/usage/{subjectID}", di.H(c.usageReport)).Methods(http.MethodGet)
}

func (c *AdminController) listAssistants(w http.ResponseWriter, r *http.Request, svc *services.AssistantService) {
	assistants, err := svc.List(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	out := make([]*dtos.AssistantResponse, 0, len(assistants))
	for _, a := range assistants {
		out = append(out, dtos.NewAssistantResponse(a))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, out)
}

func (c *AdminController) createAssistant(w http.ResponseWriter, r *http.Request, svc *services.AssistantService) {
	var req dtos.AssistantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	a, err := req.ToEntity(uuid.Nil)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	saved, err := svc.Save(r.Context(), a)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, dtos.NewAssistantResponse(saved))
}

func (c *AdminController) getAssistant(w http.ResponseWriter, r *http.Request, svc *services.AssistantService) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid assistant id", nil)
		return
	}
	a, err := svc.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.NewAssistantResponse(a))
}

func (c *AdminController) updateAssistant(w http.ResponseWriter, r *http.Request, svc *services.AssistantService) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid assistant id", nil)
		return
	}
	if _, err := svc.GetByID(r.Context(), id); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	var req dtos.AssistantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	a, err := req.ToEntity(id)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	saved, err := svc.Save(r.Context(), a)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.NewAssistantResponse(saved))
}

func (c *AdminController) deleteAssistant(w http.ResponseWriter, r *http.Request, svc *services.AssistantService) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid assistant id", nil)
		return
	}
	if err := svc.Delete(r.Context(), id); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *AdminController) listModels(w http.ResponseWriter, r *http.Request, svc *services.AssistantService) {
	models, err := svc.Models(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	if models == nil {
		models = []string{}
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string][]string{"models": models})
}

// usageReport aggregates a subject's ledger. Defaults to the current month.
func (c *AdminController) usageReport(w http.ResponseWriter, r *http.Request, svc *services.QuotaService) {
	subjectID, err := uuid.Parse(mux.Vars(r)["subjectID"])
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid subject id", nil)
		return
	}

	now := time.Now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := now
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "from must be RFC3339", nil)
			return
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "to must be RFC3339", nil)
			return
		}
	}

	report, err := svc.Report(r.Context(), subjectID, from, to)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.NewUsageReportResponse(report))
}
