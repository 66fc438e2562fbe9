package http

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/ommp-plugins/shorturl/internal/database"
	"github.com/ommp-plugins/shorturl/internal/module"
	"github.com/ommp-plugins/shorturl/internal/service"
	"github.com/ommp-plugins/shorturl/pkg/response"
)

func handleAPIAction(mod ShortURLModule) http.HandlerFunc {
	const op = "api.http.handleAPIAction"

	return func(w http.ResponseWriter, r *http.Request) {
		action := chi.URLParam(r, "action")

		data := make(map[string]string)
		if err := render.DecodeJSON(r.Body, &data); err != nil && !errors.Is(err, io.EOF) {
			renderError(w, r, mod, http.StatusBadRequest, "missing_parameter")
			return
		}

		result, err := mod.HandleAPIAction(r.Context(), callerFromContext(r.Context()), action, data)
		if err != nil {
			if errors.Is(err, module.ErrNotHandled) {
				renderError(w, r, mod, http.StatusNotFound, "unknown_action")
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "action": action, "err": err})
			renderActionError(w, r, mod, err)
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, result)
	}
}

func handleShortURL(mod ShortURLModule) http.HandlerFunc {
	const op = "api.http.handleShortURL"

	return func(w http.ResponseWriter, r *http.Request) {
		caller := callerFromContext(r.Context())

		visit := module.VisitContext{
			RemoteAddress: remoteAddress(r),
			UserAgent:     r.UserAgent(),
			Referrer:      r.Referer(),
		}

		outcome, err := mod.HandleURL(r.Context(), caller, r.URL.Path, visit)
		if err != nil {
			if errors.Is(err, service.ErrForbidden) {
				renderError(w, r, mod, http.StatusForbidden, "permission_denied")
				return
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})
			renderError(w, r, mod, http.StatusInternalServerError, "server_error")
			return
		}

		switch {
		case !outcome.Handled:
			// The host would fall through to its other modules here; standalone
			// there is nothing left to try.
			renderError(w, r, mod, http.StatusNotFound, "link_not_found")

		case outcome.Export != nil:
			w.Header().Set("Content-Type", "text/csv")
			w.Header().Set("Content-Disposition",
				fmt.Sprintf("attachment; filename=%s.csv", outcome.Export.Identifier))

			if err := mod.ExportCSV(r.Context(), caller, outcome.Export.ID, w); err != nil {
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})
			}

		default:
			http.Redirect(w, r, outcome.Redirect, http.StatusFound)
		}
	}
}

// remoteAddress returns the client address without the ephemeral port.
// RealIP already replaced RemoteAddr with the forwarded address when the host
// proxy set one; a direct connection still carries an ip:port pair.
func remoteAddress(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// renderActionError maps a module error onto a status code and the matching
// catalog key.
func renderActionError(w http.ResponseWriter, r *http.Request, mod ShortURLModule, err error) {
	switch {
	case errors.Is(err, service.ErrMissingParameter):
		renderError(w, r, mod, http.StatusBadRequest, "missing_parameter")
	case errors.Is(err, service.ErrInvalidTarget):
		renderError(w, r, mod, http.StatusBadRequest, "invalid_url")
	case errors.Is(err, service.ErrGenerationExhausted):
		renderError(w, r, mod, http.StatusServiceUnavailable, "failed_to_generate_id")
	case errors.Is(err, service.ErrForbidden):
		renderError(w, r, mod, http.StatusForbidden, "permission_denied")
	case errors.Is(err, database.ErrLinkNotFound):
		renderError(w, r, mod, http.StatusNotFound, "link_not_found")
	default:
		renderError(w, r, mod, http.StatusInternalServerError, "server_error")
	}
}

func renderError(w http.ResponseWriter, r *http.Request, mod ShortURLModule, statusCode int, key string) {
	render.Status(r, statusCode)
	render.JSON(w, r, response.ErrorResponse(statusCode, key, mod.Localize(key)))
}
