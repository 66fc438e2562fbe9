package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/ommp-plugins/shorturl/internal/models"
)

type ctxKey int

const callerKey ctxKey = 0

// Host identity headers. The host platform terminates authentication and
// forwards the caller identity on every proxied request; the values are
// trusted as-is.
const (
	headerUserID     = "X-User-Id"
	headerUserName   = "X-User-Name"
	headerUserRights = "X-User-Rights"
)

// CallerExtractor reads the host identity headers into a models.Caller and
// stores it in the request context. Requests without an identity proceed as
// an anonymous caller holding no rights.
func CallerExtractor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := &models.Caller{
			Username: r.Header.Get(headerUserName),
			Rights:   make(map[string]bool),
		}

		if raw := r.Header.Get(headerUserID); raw != "" {
			if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
				caller.ID = id
			}
		}

		for _, right := range strings.Split(r.Header.Get(headerUserRights), ",") {
			if right = strings.TrimSpace(right); right != "" {
				caller.Rights[right] = true
			}
		}

		ctx := context.WithValue(r.Context(), callerKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerFromContext(ctx context.Context) *models.Caller {
	if caller, ok := ctx.Value(callerKey).(*models.Caller); ok {
		return caller
	}
	return &models.Caller{Rights: make(map[string]bool)}
}
