package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/lucerna-ai/lucerna/modules/chat/presentation/dtos"
	"github.com/lucerna-ai/lucerna/modules/chat/services"
	"github.com/lucerna-ai/lucerna/pkg/application"
	"github.com/lucerna-ai/lucerna/pkg/composables"
	"github.com/lucerna-ai/lucerna/pkg/di"
	"github.com/lucerna-ai/lucerna/pkg/httpapi"
	"github.com/lucerna-ai/lucerna/pkg/intl"
	"github.com/lucerna-ai/lucerna/pkg/middleware"
	"github.com/lucerna-ai/lucerna/pkg/serrors"
)

var statusByCode = map[string]int{
	"QUOTA_EXCEEDED":         http.StatusPaymentRequired,
	"PROVIDER_TIMEOUT":       http.StatusGatewayTimeout,
	"PROVIDER_REJECTED":      http.StatusBadGateway,
	"STALE_THREAD":           http.StatusConflict,
	"CONFIGURATION_ERROR":    http.StatusInternalServerError,
	"TURN_IN_PROGRESS":       http.StatusConflict,
	"CONVERSATION_NOT_FOUND": http.StatusNotFound,
	"CONVERSATION_ARCHIVED":  http.StatusConflict,
	"ASSISTANT_NOT_FOUND":    http.StatusNotFound,
	"ASSISTANT_DISABLED":     http.StatusUnprocessableEntity,
	"INVALID_MESSAGE":        http.StatusUnprocessableEntity,
}

// writeServiceError renders a coded error as JSON. Unknown errors become an
// opaque 500; raw provider details never reach the client.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	if base, ok := serrors.AsBase(err); ok {
		status, found := statusByCode[base.Code]
		if !found {
			status = http.StatusInternalServerError
		}
		msg := base.Message
		if localizer, lErr := intl.UseLocalizer(ctx); lErr == nil {
			msg = base.Localize(localizer)
		}
		_ = httpapi.WriteError(w, status, base.Code, msg, nil)
		return
	}
	composables.UseLogger(ctx).WithError(err).Error("unhandled chat API error")
	_ = httpapi.WriteError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "internal server error", nil)
}

func conversationID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	return id, err == nil
}

// ChatAPIController is the user-facing REST and SSE surface of the chat
// relay.
type ChatAPIController struct {
	basePath string
}

func NewChatAPIController() application.Controller {
	return &ChatAPIController{basePath: "/api/chat"}
}

func (c *ChatAPIController) Key() string {
	return c.basePath
}

func (c *ChatAPIController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.Use(middleware.ProvideSubject())

	router.Handle("/conversations", di.H(c.createConversation)).Methods(http.MethodPost)
	router.Handle("/conversations", di.H(c.listConversations)).Methods(http.MethodGet)
	router.Handle("/conversations/{id}", di.H(c.getConversation)).Methods(http.MethodGet)
	router.Handle("/conversations/{id}", di.H(c.deleteConversation)).Methods(http.MethodDelete)
	router.Handle("/conversations/{id}/archive", di.H(c.archiveConversation)).Methods(http.MethodPost)
	router.Handle("/conversations/{id}/messages", di.H(c.listMessages)).Methods(http.MethodGet)
	router.Handle("/conversations/{id}/messages", di.H(c.sendMessage)).Methods(http.MethodPost)
	router.Handle("/conversations/{id}/messages/stream", di.H(c.streamMessage)).Methods(http.MethodPost)
	router.Handle("/balance", di.H(c.balance)).Methods(http.MethodGet)
}

func (c *ChatAPIController) createConversation(w http.ResponseWriter, r *http.Request, chatSvc *services.ChatService) {
	var req dtos.CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AssistantID == uuid.Nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "assistant_id is required", nil)
		return
	}
	conv, err := chatSvc.CreateConversation(r.Context(), req.AssistantID)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, dtos.NewConversationResponse(conv))
}

func (c *ChatAPIController) listConversations(w http.ResponseWriter, r *http.Request, chatSvc *services.ChatService) {
	convs, err := chatSvc.ListConversations(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.NewConversationListResponse(convs))
}

func (c *ChatAPIController) getConversation(w http.ResponseWriter, r *http.Request, chatSvc *services.ChatService) {
	id, ok := conversationID(r)
	if !ok {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid conversation id", nil)
		return
	}
	conv, err := chatSvc.GetConversation(r.Context(), id)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.NewConversationResponse(conv))
}

func (c *ChatAPIController) deleteConversation(w http.ResponseWriter, r *http.Request, chatSvc *services.ChatService) {
	id, ok := conversationID(r)
	if !ok {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid conversation id", nil)
		return
	}
	var err error
	if r.URL.Query().Get("purge") == "true" {
		err = chatSvc.PurgeConversation(r.Context(), id)
	} else {
		err = chatSvc.DeleteConversation(r.Context(), id)
	}
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *ChatAPIController) archiveConversation(w http.ResponseWriter, r *http.Request, chatSvc *services.ChatService) {
	id, ok := conversationID(r)
	if !ok {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid conversation id", nil)
		return
	}
	var req dtos.ArchiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := chatSvc.ArchiveConversation(r.Context(), id, req.Archived); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *ChatAPIController) listMessages(w http.ResponseWriter, r *http.Request, chatSvc *services.ChatService) {
	id, ok := conversationID(r)
	if !ok {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid conversation id", nil)
		return
	}
	msgs, err := chatSvc.GetMessages(r.Context(), id, 0)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.NewMessageListResponse(msgs))
}

// sendMessage runs a buffered turn and returns the whole reply at once.
func (c *ChatAPIController) sendMessage(w http.ResponseWriter, r *http.Request, chatSvc *services.ChatService) {
	id, ok := conversationID(r)
	if !ok {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid conversation id", nil)
		return
	}
	var req dtos.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	result, err := chatSvc.SendMessage(r.Context(), id, req.Content)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, dtos.NewTurnResponse(result, true))
}

// streamMessage runs a streamed turn over SSE. Once the stream is committed
// the status is always 200; failures surface as error events.
func (c *ChatAPIController) streamMessage(w http.ResponseWriter, r *http.Request, chatSvc *services.ChatService) {
	id, ok := conversationID(r)
	if !ok {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid conversation id", nil)
		return
	}
	var req dtos.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "streaming unsupported", nil)
		return
	}
	_ = sse.Send("start", map[string]any{
		"conversation_id": id,
		"state":           string(services.RelayPending),
	})

	result, err := chatSvc.StreamMessage(r.Context(), id, req.Content, func(delta string) error {
		return sse.Send("content", map[string]string{"text": delta})
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// no one is listening
			return
		}
		msg := "internal server error"
		code := "INTERNAL_SERVER_ERROR"
		if base, ok := serrors.AsBase(err); ok {
			code = base.Code
			msg = base.Message
			if localizer, lErr := intl.UseLocalizer(r.Context()); lErr == nil {
				msg = base.Localize(localizer)
			}
		} else {
			composables.UseLogger(r.Context()).WithError(err).Error("streamed turn failed")
		}
		_ = sse.Send("error", map[string]string{"code": code, "message": msg})
		return
	}
	_ = sse.Send("done", dtos.NewTurnResponse(result, false))
}

func (c *ChatAPIController) balance(w http.ResponseWriter, r *http.Request, quotaSvc *services.QuotaService) {
	subject, err := composables.UseSubject(r.Context())
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing subject identity", nil)
		return
	}
	balance, err := quotaSvc.Balance(r.Context(), subject.ID)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, &dtos.BalanceResponse{Balance: balance})
}
