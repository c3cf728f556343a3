package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/orgbase/orgbase/pkg/auth"
	"github.com/orgbase/orgbase/pkg/httputil"
	"github.com/orgbase/orgbase/pkg/orgs"
)

// OrgHandlers handles organization and membership requests.
type OrgHandlers struct {
	orgs orgs.Service
	log  *logrus.Logger
}

// NewOrgHandlers creates an OrgHandlers.
func NewOrgHandlers(orgService orgs.Service, log *logrus.Logger) *OrgHandlers {
	return &OrgHandlers{orgs: orgService, log: log}
}

// RegisterRoutes registers organization routes. All of them require an
// authenticated actor.
func (h *OrgHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/orgs", h.CreateOrganization).Methods(http.MethodPost)
	router.HandleFunc("/orgs/{id}", h.GetOrganization).Methods(http.MethodGet)
	router.HandleFunc("/orgs/slug/{slug}", h.GetOrganizationBySlug).Methods(http.MethodGet)
	router.HandleFunc("/orgs/{id}", h.UpdateOrganization).Methods(http.MethodPut)
	router.HandleFunc("/orgs/{id}", h.DeleteOrganization).Methods(http.MethodDelete)
	router.HandleFunc("/orgs/{id}/managers", h.EffectiveManagers).Methods(http.MethodGet)

	router.HandleFunc("/orgs/{id}/members", h.ListMembers).Methods(http.MethodGet)
	router.HandleFunc("/orgs/{id}/members", h.Invite).Methods(http.MethodPost)
	router.HandleFunc("/members/{id}/accept", h.Accept).Methods(http.MethodPost)
	router.HandleFunc("/members/{id}/deny", h.Deny).Methods(http.MethodPost)
	router.HandleFunc("/members/{id}", h.Revoke).Methods(http.MethodDelete)
	router.HandleFunc("/members/{id}/role", h.UpdateRole).Methods(http.MethodPut)
	router.HandleFunc("/members/{id}/visibility", h.SetVisibility).Methods(http.MethodPut)
}

func actor(w http.ResponseWriter, r *http.Request) (auth.Actor, bool) {
	a, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
	}
	return a, ok
}

// CreateOrganization creates an organization owned by the caller.
func (h *OrgHandlers) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req orgs.CreateOrgRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	org, err := h.orgs.CreateOrganization(r.Context(), a, req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	_ = httputil.WriteCreated(w, org)
}

// GetOrganization retrieves an organization by ID.
func (h *OrgHandlers) GetOrganization(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	id, ok := httputil.PathVarOrError(w, r, "id")
	if !ok {
		return
	}
	org, err := h.orgs.GetOrganization(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	_ = httputil.WriteSuccess(w, org)
}

// GetOrganizationBySlug retrieves an organization by slug.
func (h *OrgHandlers) GetOrganizationBySlug(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	slug, ok := httputil.PathVarOrError(w, r, "slug")
	if !ok {
		return
	}
	org, err := h.orgs.GetOrganizationBySlug(r.Context(), slug)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	_ = httputil.WriteSuccess(w, org)
}

// UpdateOrganization applies a partial update.
func (h *OrgHandlers) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.PathVarOrError(w, r, "id")
	if !ok {
		return
	}
	var req orgs.UpdateOrgRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	org, err := h.orgs.UpdateOrganization(r.Context(), a, id, req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	_ = httputil.WriteSuccess(w, org)
}

// DeleteOrganization deletes an organization.
func (h *OrgHandlers) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.PathVarOrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.orgs.DeleteOrganization(r.Context(), a, id); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	httputil.WriteNoContent(w)
}

// EffectiveManagers returns the derived managers view.
func (h *OrgHandlers) EffectiveManagers(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.PathVarOrError(w, r, "id")
	if !ok {
		return
	}
	managers, err := h.orgs.EffectiveManagers(r.Context(), a, id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	_ = httputil.WriteSuccess(w, managers)
}

// ListMembers returns the manage edges of an organization.
func (h *OrgHandlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.PathVarOrError(w, r, "id")
	if !ok {
		return
	}
	edges, err := h.orgs.ListEdges(r.Context(), a, id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	_ = httputil.WriteSuccess(w, edges)
}

type inviteRequest struct {
	UserID string    `json:"user"`
	Role   auth.Role `json:"role"`
}

// Invite creates a pending manage edge.
func (h *OrgHandlers) Invite(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.PathVarOrError(w, r, "id")
	if !ok {
		return
	}
	var req inviteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	edge, err := h.orgs.Invite(r.Context(), a, id, req.UserID, req.Role)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	_ = httputil.WriteCreated(w, edge)
}

// Accept confirms a pending invite.
func (h *OrgHandlers) Accept(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.PathVarOrError(w, r, "id")
	if !ok {
		return
	}
	edge, err := h.orgs.Accept(r.Context(), a, id)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	_ = httputil.WriteSuccess(w, edge)
}

// Deny removes a pending invite.
func (h *OrgHandlers) Deny(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.PathVarOrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.orgs.Deny(r.Context(), a, id); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	httputil.WriteNoContent(w)
}

// Revoke removes a manage edge.
func (h *OrgHandlers) Revoke(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.PathVarOrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.orgs.Revoke(r.Context(), a, id); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	httputil.WriteNoContent(w)
}

type roleRequest struct {
	Role auth.Role `json:"role"`
}

// UpdateRole changes the role on a manage edge.
func (h *OrgHandlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.PathVarOrError(w, r, "id")
	if !ok {
		return
	}
	var req roleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	edge, err := h.orgs.UpdateEdgeRole(r.Context(), a, id, req.Role)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	_ = httputil.WriteSuccess(w, edge)
}

type visibilityRequest struct {
	Public bool `json:"public"`
}

// SetVisibility toggles the public flag on the caller's own edge.
func (h *OrgHandlers) SetVisibility(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.PathVarOrError(w, r, "id")
	if !ok {
		return
	}
	var req visibilityRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	edge, err := h.orgs.SetEdgeVisibility(r.Context(), a, id, req.Public)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	_ = httputil.WriteSuccess(w, edge)
}
