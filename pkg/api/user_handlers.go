package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/orgbase/orgbase/pkg/httputil"
	"github.com/orgbase/orgbase/pkg/orgs"
	"github.com/orgbase/orgbase/pkg/users"
)

// UserHandlers handles user profile requests.
type UserHandlers struct {
	users users.Service
	orgs  orgs.Service
	log   *logrus.Logger
}

// NewUserHandlers creates a UserHandlers.
func NewUserHandlers(userService users.Service, orgService orgs.Service, log *logrus.Logger) *UserHandlers {
	return &UserHandlers{users: userService, orgs: orgService, log: log}
}

// RegisterRoutes registers user routes.
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users/me", h.Me).Methods(http.MethodGet)
	router.HandleFunc("/users/me", h.UpdateMe).Methods(http.MethodPatch)
	router.HandleFunc("/users/{id}", h.GetUser).Methods(http.MethodGet)
	router.HandleFunc("/users/{id}", h.UpdateUser).Methods(http.MethodPatch)
	router.HandleFunc("/users/{id}", h.DeleteUser).Methods(http.MethodDelete)
	router.HandleFunc("/users/{id}/members", h.ListUserMembers).Methods(http.MethodGet)
}

// Me returns the caller's own profile.
func (h *UserHandlers) Me(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	user, err := h.users.UserByID(r.Context(), a.ID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	_ = httputil.WriteSuccess(w, user)
}

// UpdateMe applies a partial update to the caller's own profile.
func (h *UserHandlers) UpdateMe(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	h.update(w, r, a.ID)
}

// GetUser retrieves a user by ID.
func (h *UserHandlers) GetUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	id, ok := httputil.PathVarOrError(w, r, "id")
	if !ok {
		return
	}
	user, err := h.users.UserByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	_ = httputil.WriteSuccess(w, user)
}

// UpdateUser applies a partial update to a user.
func (h *UserHandlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	id, ok := httputil.PathVarOrError(w, r, "id")
	if !ok {
		return
	}
	h.update(w, r, id)
}

func (h *UserHandlers) update(w http.ResponseWriter, r *http.Request, id string) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req users.UpdateUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := h.users.UpdateUser(r.Context(), a, id, req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	_ = httputil.WriteSuccess(w, user)
}

// DeleteUser removes a user account.
func (h *UserHandlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.PathVarOrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.users.DeleteUser(r.Context(), a, id); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	httputil.WriteNoContent(w)
}

// ListUserMembers returns the manage edges held by a user.
func (h *UserHandlers) ListUserMembers(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.PathVarOrError(w, r, "id")
	if !ok {
		return
	}
	edges, err := h.orgs.ListUserEdges(r.Context(), a, id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	_ = httputil.WriteSuccess(w, edges)
}
