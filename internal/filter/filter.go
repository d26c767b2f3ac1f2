package filter

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"review-auth/internal/audit"
	"review-auth/internal/models"
	"review-auth/internal/session"
	"review-auth/internal/util"
)

// Decision is an inspector's verdict on a request. A non-allowing decision
// short-circuits the chain: the driver records the audit event, destroys the
// flagged session, and answers minimally.
type Decision struct {
	Allow bool

	// Rejection details. Status answers API requests; Redirect answers
	// interactive ones (empty Redirect falls back to Status for both).
	Status   int
	Redirect string
	Reason   string

	// DestroySession names a session the driver must invalidate.
	DestroySession string

	// EventType, when set, emits a security event with this request's
	// context attached.
	EventType    string
	EventUser    string
	EventDetails string
}

// Allowed is the pass-through decision.
func Allowed() Decision {
	return Decision{Allow: true}
}

// Inspector is one request-defense capability. Inspect must not write the
// response; it only decides.
type Inspector interface {
	Name() string
	Inspect(r *http.Request) Decision
}

// Chain evaluates inspectors in their fixed registration order and stops at
// the first rejection. The order is load-bearing: path traversal runs before
// everything, ban enforcement before business logic, hijack detection before
// any state-mutating action.
type Chain struct {
	inspectors []Inspector
	sessions   *session.Manager
	recorder   *audit.Recorder
}

func NewChain(sessions *session.Manager, recorder *audit.Recorder, inspectors ...Inspector) *Chain {
	return &Chain{
		inspectors: inspectors,
		sessions:   sessions,
		recorder:   recorder,
	}
}

// Middleware adapts the chain to the router.
func (c *Chain) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, insp := range c.inspectors {
			decision := insp.Inspect(r)
			if decision.Allow {
				continue
			}
			c.reject(w, r, insp.Name(), decision)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (c *Chain) reject(w http.ResponseWriter, r *http.Request, filterName string, d Decision) {
	if d.EventType != "" && c.recorder != nil {
		c.recorder.Record(models.SecurityEvent{
			EventType: d.EventType,
			Username:  d.EventUser,
			SessionID: d.DestroySession,
			IPAddress: session.ClientIP(r),
			UserAgent: r.UserAgent(),
			Path:      r.URL.Path,
			Details:   d.EventDetails,
		})
	}

	if d.DestroySession != "" {
		c.sessions.Destroy(r.Context(), w, d.DestroySession)
	}

	util.Warn("Request rejected by defense filter",
		zap.String("filter", filterName),
		zap.String("reason", d.Reason),
		zap.Int("status", d.Status),
		zap.String("path", r.URL.Path),
		zap.String("ip", session.ClientIP(r)))

	if IsAPIPath(r.URL.Path) || d.Redirect == "" {
		writeJSONError(w, d.Status, d.Reason)
		return
	}
	http.Redirect(w, r, d.Redirect, http.StatusFound)
}

// IsAPIPath reports whether a request belongs to the REST surface, which
// gets JSON errors instead of login redirects.
func IsAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

func writeJSONError(w http.ResponseWriter, status int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": reason})
}
