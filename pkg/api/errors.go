package api

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/orgbase/orgbase/pkg/auth"
	"github.com/orgbase/orgbase/pkg/httputil"
	"github.com/orgbase/orgbase/pkg/orgs"
	"github.com/orgbase/orgbase/pkg/users"
)

// writeServiceError maps domain errors onto HTTP statuses. Anything
// unrecognized is a 500 with the detail kept in the log.
func writeServiceError(w http.ResponseWriter, log *logrus.Logger, err error) {
	var orgValidation *orgs.ValidationError
	var userValidation *users.ValidationError
	switch {
	case errors.As(err, &orgValidation), errors.As(err, &userValidation):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, auth.ErrPermissionDenied):
		httputil.WriteForbidden(w, "permission denied")
	case errors.Is(err, orgs.ErrNotFound), errors.Is(err, orgs.ErrEdgeNotFound),
		errors.Is(err, users.ErrNotFound):
		httputil.WriteNotFound(w, "not found")
	case errors.Is(err, orgs.ErrConflict):
		httputil.WriteConflict(w, "already exists")
	case errors.Is(err, users.ErrCreationFailed):
		httputil.WriteConflict(w, "account already exists")
	default:
		log.WithError(err).Error("request failed")
		httputil.WriteInternalError(w)
	}
}
