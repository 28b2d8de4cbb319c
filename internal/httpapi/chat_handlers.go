package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"kavosh.dev/internal/auth"
	"kavosh.dev/internal/chat"
)

type createSessionRequest struct {
	Title string `json:"title"`
}

type renameSessionRequest struct {
	Title string `json:"title"`
}

type appendMessageRequest struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

func (a *API) handleSessionsCollection(w http.ResponseWriter, r *http.Request) {
	subject, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		unauthenticated(w, r)
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req createSessionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		session, err := a.chat.CreateSession(r.Context(), subject, strings.TrimSpace(req.Title))
		if err != nil {
			handleChatError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, session)
	case http.MethodGet:
		sessions, err := a.chat.ListSessions(r.Context(), subject)
		if err != nil {
			handleChatError(w, r, err)
			return
		}
		if sessions == nil {
			sessions = []*chat.Session{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": sessions})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleSessionResource(w http.ResponseWriter, r *http.Request) {
	subject, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		unauthenticated(w, r)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if strings.HasSuffix(path, "/messages") {
		id := strings.TrimSuffix(strings.TrimSuffix(path, "/messages"), "/")
		id = strings.TrimSuffix(id, "/")
		if id == "" || strings.Contains(id, "/") {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		a.handleMessages(w, r, subject, id)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req renameSessionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.chat.RenameSession(r.Context(), subject, path, strings.TrimSpace(req.Title)); err != nil {
			handleChatError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	case http.MethodDelete:
		if err := a.chat.DeleteSession(r.Context(), subject, path); err != nil {
			handleChatError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) handleMessages(w http.ResponseWriter, r *http.Request, subject, sessionID string) {
	switch r.Method {
	case http.MethodPost:
		var req appendMessageRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role := chat.Role(req.Role)
		if req.Role == "" {
			role = chat.RoleUser
		}
		msg, err := a.chat.AppendMessage(r.Context(), subject, sessionID, role, req.Content)
		if err != nil {
			handleChatError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	case http.MethodGet:
		msgs, err := a.chat.ListMessages(r.Context(), subject, sessionID)
		if err != nil {
			handleChatError(w, r, err)
			return
		}
		if msgs == nil {
			msgs = []*chat.Message{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": msgs})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func handleChatError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, chat.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "session not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
