package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/lucerna-ai/lucerna/modules/billing/services"
	"github.com/lucerna-ai/lucerna/pkg/application"
	"github.com/lucerna-ai/lucerna/pkg/composables"
	"github.com/lucerna-ai/lucerna/pkg/di"
	"github.com/lucerna-ai/lucerna/pkg/httpapi"
	"github.com/lucerna-ai/lucerna/pkg/webhooks"
)

const signatureHeader = "X-Billing-Signature"

type topUpRequest struct {
	SubjectID uuid.UUID `json:"subject_id"`
	Tokens    int64     `json:"tokens"`
	Reference string    `json:"reference"`
}

type topUpResponse struct {
	SubjectID uuid.UUID `json:"subject_id"`
	Balance   int64     `json:"balance"`
}

// TopUpController receives signed top-up notifications from the payment
// provider and credits the subject's token account.
type TopUpController struct {
	basePath      string
	webhookSecret string
}

func NewTopUpController(webhookSecret string) application.Controller {
	return &TopUpController{
		basePath:      "/webhooks/billing",
		webhookSecret: webhookSecret,
	}
}

func (c *TopUpController) Key() string {
	return c.basePath
}

func (c *TopUpController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.Use(webhooks.Middleware(webhooks.NewHMACVerifier(c.webhookSecret, signatureHeader), 0))
	router.Handle("/topup", di.H(c.topUp)).Methods(http.MethodPost)
}

func (c *TopUpController) topUp(w http.ResponseWriter, r *http.Request, billingSvc *services.BillingService) {
	var req topUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SubjectID == uuid.Nil || req.Tokens <= 0 {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "subject_id and a positive tokens amount are required", nil)
		return
	}

	balance, err := billingSvc.Credit(r.Context(), req.SubjectID, req.Tokens)
	if err != nil {
		composables.UseLogger(r.Context()).WithError(err).Error("failed to credit token account")
		_ = httpapi.WriteError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to apply top-up", nil)
		return
	}

	composables.UseLogger(r.Context()).
		WithField("subject_id", req.SubjectID).
		WithField("tokens", req.Tokens).
		WithField("reference", req.Reference).
		Info("token top-up applied")
	_ = httpapi.WriteJSON(w, http.StatusOK, &topUpResponse{SubjectID: req.SubjectID, Balance: balance})
}
