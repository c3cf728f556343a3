package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"

	"github.com/orgbase/orgbase/pkg/auth"
	"github.com/orgbase/orgbase/pkg/email"
	"github.com/orgbase/orgbase/pkg/orgs"
	"github.com/orgbase/orgbase/pkg/perm"
	"github.com/orgbase/orgbase/pkg/users"
)

// fakeUsers is an in-memory users.Service for handler tests.
type fakeUsers struct {
	users     map[string]*users.User
	admins    map[string]*users.Admin
	createErr error
	created   []string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		users:  make(map[string]*users.User),
		admins: make(map[string]*users.Admin),
	}
}

func (f *fakeUsers) addUser(id, name, address string) *users.User {
	u := &users.User{ID: id, Name: name, Email: address}
	f.users[id] = u
	return u
}

func (f *fakeUsers) addAdmin(id, address string) *users.Admin {
	a := &users.Admin{ID: id, Email: address}
	f.admins[id] = a
	return a
}

func (f *fakeUsers) UserByID(_ context.Context, id string) (*users.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, users.ErrNotFound
}

func (f *fakeUsers) UserByEmail(_ context.Context, address string) (*users.User, error) {
	for _, u := range f.users {
		if u.Email == address {
			return u, nil
		}
	}
	return nil, users.ErrNotFound
}

func (f *fakeUsers) AdminByID(_ context.Context, id string) (*users.Admin, error) {
	if a, ok := f.admins[id]; ok {
		return a, nil
	}
	return nil, users.ErrNotFound
}

func (f *fakeUsers) AdminByEmail(_ context.Context, address string) (*users.Admin, error) {
	for _, a := range f.admins {
		if a.Email == address {
			return a, nil
		}
	}
	return nil, users.ErrNotFound
}

func (f *fakeUsers) CreateUser(_ context.Context, name, address string) (*users.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, address)
	u := &users.User{ID: "u-" + address, Name: name, Email: address}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeUsers) UpdateUser(_ context.Context, _ auth.Actor, id string, req users.UpdateUserRequest) (*users.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	if req.Name != nil {
		u.Name = *req.Name
	}
	return u, nil
}

func (f *fakeUsers) DeleteUser(_ context.Context, _ auth.Actor, id string) error {
	if _, ok := f.users[id]; !ok {
		return users.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

// fakeOrgs returns canned values and records the last call so tests can
// assert on what the handler passed through.
type fakeOrgs struct {
	org      *orgs.Organization
	edge     *orgs.ManageEdge
	edges    []*orgs.ManageEdge
	managers []perm.EffectiveManager
	err      error

	lastActor auth.Actor
	lastID    string
}

func (f *fakeOrgs) CreateOrganization(_ context.Context, actor auth.Actor, _ orgs.CreateOrgRequest) (*orgs.Organization, error) {
	f.lastActor = actor
	return f.org, f.err
}

func (f *fakeOrgs) GetOrganization(_ context.Context, id string) (*orgs.Organization, error) {
	f.lastID = id
	return f.org, f.err
}

func (f *fakeOrgs) GetOrganizationBySlug(_ context.Context, slug string) (*orgs.Organization, error) {
	f.lastID = slug
	return f.org, f.err
}

func (f *fakeOrgs) UpdateOrganization(_ context.Context, actor auth.Actor, id string, _ orgs.UpdateOrgRequest) (*orgs.Organization, error) {
	f.lastActor, f.lastID = actor, id
	return f.org, f.err
}

func (f *fakeOrgs) DeleteOrganization(_ context.Context, actor auth.Actor, id string) error {
	f.lastActor, f.lastID = actor, id
	return f.err
}

func (f *fakeOrgs) EffectiveManagers(_ context.Context, actor auth.Actor, orgID string) ([]perm.EffectiveManager, error) {
	f.lastActor, f.lastID = actor, orgID
	return f.managers, f.err
}

func (f *fakeOrgs) ListEdges(_ context.Context, actor auth.Actor, orgID string) ([]*orgs.ManageEdge, error) {
	f.lastActor, f.lastID = actor, orgID
	return f.edges, f.err
}

func (f *fakeOrgs) ListUserEdges(_ context.Context, actor auth.Actor, userID string) ([]*orgs.ManageEdge, error) {
	f.lastActor, f.lastID = actor, userID
	return f.edges, f.err
}

func (f *fakeOrgs) Invite(_ context.Context, actor auth.Actor, orgID, _ string, _ auth.Role) (*orgs.ManageEdge, error) {
	f.lastActor, f.lastID = actor, orgID
	return f.edge, f.err
}

func (f *fakeOrgs) Accept(_ context.Context, actor auth.Actor, edgeID string) (*orgs.ManageEdge, error) {
	f.lastActor, f.lastID = actor, edgeID
	return f.edge, f.err
}

func (f *fakeOrgs) Deny(_ context.Context, actor auth.Actor, edgeID string) error {
	f.lastActor, f.lastID = actor, edgeID
	return f.err
}

func (f *fakeOrgs) Revoke(_ context.Context, actor auth.Actor, edgeID string) error {
	f.lastActor, f.lastID = actor, edgeID
	return f.err
}

func (f *fakeOrgs) UpdateEdgeRole(_ context.Context, actor auth.Actor, edgeID string, _ auth.Role) (*orgs.ManageEdge, error) {
	f.lastActor, f.lastID = actor, edgeID
	return f.edge, f.err
}

func (f *fakeOrgs) SetEdgeVisibility(_ context.Context, actor auth.Actor, edgeID string, _ bool) (*orgs.ManageEdge, error) {
	f.lastActor, f.lastID = actor, edgeID
	return f.edge, f.err
}

// fakeSender captures outgoing mail.
type fakeSender struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg email.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) messages() []email.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]email.Message(nil), f.sent...)
}

func nullLogger() *logrus.Logger {
	log, _ := logrustest.NewNullLogger()
	return log
}

// withActor injects a fixed actor the way the session middleware would.
func withActor(a auth.Actor) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithActor(r.Context(), a)))
		})
	}
}
