package controllers

import (
	"net/http"

	"github.com/angelmondragon/carrental-backend/api/middleware"
	"github.com/angelmondragon/carrental-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/carrental-backend/pkg/errors"
)

func actorFromRequest(r *http.Request) (auth.Actor, error) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		return auth.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity missing")
	}
	return actor, nil
}
