package api

import (
	"net/http"

	"pharmapos/m/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	sess, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	token, _ := r.Context().Value(ctxToken).(string)
	if err := h.auth.Logout(r.Context(), token); err != nil {
		h.fail(w, r, err)
		return
	}
	h.carts.Drop(principal(r).ID)
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, principal(r))
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.auth.ListUsers(r.Context(), principal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, auth.ActionManageUsers) {
		return
	}
	var req auth.NewUser
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.auth.CreateUser(r.Context(), principal(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, u)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	if !h.allow(w, r, auth.ActionManageUsers) {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req auth.UserUpdate
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.auth.UpdateUser(r.Context(), principal(r), id, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.auth.DeleteUser(r.Context(), principal(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
