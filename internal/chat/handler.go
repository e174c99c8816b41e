package chat

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/budgetdesk/budgetdesk/internal/platform/httpx"
	"github.com/budgetdesk/budgetdesk/internal/shared"
)

// Handler exposes the conversation over HTTP. Conversation state lives in the
// request session.
type Handler struct {
	logger       *slog.Logger
	conversation *Conversation
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, conversation *Conversation) *Handler {
	return &Handler{logger: logger, conversation: conversation}
}

// MountRoutes registers chat routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/api/chat", h.chat)
}

type chatRequest struct {
	Message string `json:"message" validate:"required"`
}

type chatResponse struct {
	Response any `json:"response"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || strings.TrimSpace(req.Message) == "" {
		httpx.JSON(w, http.StatusBadRequest, errorResponse{Error: "No message provided"})
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("chat request without session")
		httpx.JSON(w, http.StatusInternalServerError, errorResponse{Error: http.StatusText(http.StatusInternalServerError)})
		return
	}

	state := State{Authenticated: sess.Authenticated(), LDAP: sess.Identity()}
	reply, next := h.conversation.Handle(r.Context(), state, req.Message)
	sess.SetAuthenticated(next.Authenticated)
	sess.BindIdentity(next.LDAP)

	httpx.JSON(w, http.StatusOK, chatResponse{Response: reply.Payload()})
}
