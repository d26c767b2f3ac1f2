package filter

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathTraversalDetection(t *testing.T) {
	inspector := NewPathTraversalInspector()

	blocked := []string{
		"/files/../../etc/passwd",
		"/files/..%2f..%2fetc/passwd",
		"/files/%2e%2e%2f%2e%2e%2fetc/passwd",
		"/files/%252e%252e%252fetc/passwd",
		"/files/%c0%ae%c0%ae%c0%afetc/passwd",
		"/download?file=../../secret.txt",
		"/download?file=%2e%2e%2fsecret.txt",
		`/files/..\..\windows\system32`,
	}
	for _, target := range blocked {
		r := httptest.NewRequest(http.MethodGet, target, nil)
		d := inspector.Inspect(r)
		assert.False(t, d.Allow, "expected rejection for %s", target)
		assert.Equal(t, http.StatusBadRequest, d.Status, target)
	}

	allowed := []string{
		"/",
		"/reviews/42",
		"/api/auth/login",
		"/albums/ok..fine",
		"/search?q=best.albums.2026",
		"/files/report.v1.2.pdf",
	}
	for _, target := range allowed {
		r := httptest.NewRequest(http.MethodGet, target, nil)
		assert.True(t, inspector.Inspect(r).Allow, "expected pass for %s", target)
	}
}

func TestPathTraversalEmitsSecurityEvent(t *testing.T) {
	inspector := NewPathTraversalInspector()
	r := httptest.NewRequest(http.MethodGet, "/files/../../etc/passwd", nil)

	d := inspector.Inspect(r)
	assert.False(t, d.Allow)
	assert.NotEmpty(t, d.EventType)
	assert.Contains(t, d.EventDetails, "../")
}
