package filter

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"review-auth/internal/models"
	"review-auth/internal/util"
)

// Curated SQL-control and auth-bypass shapes. The inspector only blocks;
// it never rewrites input. The parameterized query layer is the real
// defense — this is depth.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)'\s*(or|and|insert|update|delete|drop|alter|select|union)\s+`),
	regexp.MustCompile(`--\s*`),
	regexp.MustCompile(`(?i)\bdrop\s+table\b`),
	regexp.MustCompile(`(?i)\bdelete\s+from\b`),
	regexp.MustCompile(`(?i)\binsert\s+into\b.*\bvalues\b`),
	regexp.MustCompile(`(?i)\bupdate\s+\w+\s+set\b`),
	regexp.MustCompile(`(?i)\bunion\s+select\b`),
	regexp.MustCompile(`(?i)\bexec\s+\w+\b`),
	regexp.MustCompile(`(?i)\bor\s+1\s*=\s*1\b`),
	regexp.MustCompile(`(?i)\bor\s+'\s*'\s*=\s*'\s*'`),
}

// Standard headers carry complex legitimate content and are exempt.
var standardHeaders = map[string]struct{}{
	"host": {}, "user-agent": {}, "accept": {}, "accept-language": {},
	"accept-encoding": {}, "connection": {}, "referer": {}, "cookie": {},
	"content-length": {}, "content-type": {}, "origin": {}, "cache-control": {},
	"pragma": {}, "if-modified-since": {}, "if-none-match": {},
	"x-requested-with": {}, "x-forwarded-for": {}, "x-forwarded-proto": {},
	"x-csrf-token": {}, "authorization": {}, "sec-fetch-dest": {},
	"sec-fetch-mode": {}, "sec-fetch-site": {}, "sec-fetch-user": {},
	"upgrade-insecure-requests": {}, "x-real-ip": {}, "sec-ch-ua": {},
	"sec-ch-ua-mobile": {}, "sec-ch-ua-platform": {},
	"access-control-request-method": {}, "access-control-request-headers": {},
	"dnt": {}, "date": {}, "via": {}, "x-xss-protection": {},
	"x-content-type-options": {}, "x-request-id": {},
}

var staticSuffixes = []string{
	".css", ".js", ".jpg", ".jpeg", ".png", ".gif", ".ico",
	".woff", ".woff2", ".ttf", ".svg",
}

var staticPrefixSegments = []string{"/css/", "/js/", "/images/", "/fonts/", "/webjars/"}

const maxInspectedBody = 1 << 20 // 1 MiB

// InjectionInspector scans query/form parameters and non-standard headers
// for suspicious textual patterns. Disabling it (config flag) removes depth
// but never correctness.
type InjectionInspector struct{}

func NewInjectionInspector() *InjectionInspector {
	return &InjectionInspector{}
}

func (i *InjectionInspector) Name() string { return "injection_pattern" }

func (i *InjectionInspector) Inspect(r *http.Request) Decision {
	if isStaticAsset(r.URL.Path) {
		return Allowed()
	}

	if match, where := i.scan(r); match != "" {
		util.Warn("Possible injection attempt detected",
			zap.String("location", where),
			zap.String("value", match),
			zap.String("path", r.URL.Path))

		return Decision{
			Status:       http.StatusBadRequest,
			Reason:       "bad request",
			EventType:    models.EventInjectionAttempt,
			EventDetails: where,
		}
	}
	return Allowed()
}

func (i *InjectionInspector) scan(r *http.Request) (match, where string) {
	for param, values := range r.URL.Query() {
		for _, v := range values {
			if isSuspicious(v) {
				return v, "query:" + param
			}
		}
	}

	if v, param := scanFormBody(r); v != "" {
		return v, "form:" + param
	}

	for name, values := range r.Header {
		if _, standard := standardHeaders[strings.ToLower(name)]; standard {
			continue
		}
		for _, v := range values {
			if isSuspicious(v) {
				return v, "header:" + name
			}
		}
	}
	return "", ""
}

// scanFormBody inspects urlencoded bodies, then restores the body so the
// handler can still read it. Bodies over the inspection limit pass through
// byte-for-byte unscanned: matching a truncated prefix could split a value
// at the boundary, and this filter must never alter input, only block.
func scanFormBody(r *http.Request) (match, param string) {
	ct := r.Header.Get("Content-Type")
	if r.Body == nil || !strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		return "", ""
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxInspectedBody+1))
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), r.Body))
	if err != nil || len(body) > maxInspectedBody {
		return "", ""
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return "", ""
	}
	for name, vs := range values {
		for _, v := range vs {
			if isSuspicious(v) {
				return v, name
			}
		}
	}
	return "", ""
}

func isSuspicious(value string) bool {
	if value == "" {
		return false
	}
	for _, p := range injectionPatterns {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}

func isStaticAsset(path string) bool {
	for _, seg := range staticPrefixSegments {
		if strings.Contains(path, seg) {
			return true
		}
	}
	for _, suffix := range staticSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}
