package twilio

import (
	"net/http"
	"strings"

	"github.com/twilio/twilio-go/client"
	"go.uber.org/zap"
)

// SignatureHeader carries Twilio's HMAC signature of a webhook request.
const SignatureHeader = "X-Twilio-Signature"

type signatureValidator interface {
	Validate(url string, params map[string]string, expectedSignature string) bool
}

// RequireSignature rejects webhook requests that were not signed with
// authToken. Twilio signs the public URL it called, so publicBaseURL must be
// set when the service runs behind a proxy that rewrites scheme or host.
func RequireSignature(authToken, publicBaseURL string, logger *zap.Logger) func(http.Handler) http.Handler {
	v := client.NewRequestValidator(authToken)
	return requireSignature(&v, publicBaseURL, logger.Named("twilio"))
}

func requireSignature(v signatureValidator, publicBaseURL string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			signature := r.Header.Get(SignatureHeader)
			if signature == "" {
				logger.Warn("webhook without signature", zap.String("remote", r.RemoteAddr))
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			if err := r.ParseForm(); err != nil {
				http.Error(w, "invalid form", http.StatusBadRequest)
				return
			}
			params := make(map[string]string, len(r.PostForm))
			for key, values := range r.PostForm {
				if len(values) > 0 {
					params[key] = values[0]
				}
			}
			if !v.Validate(requestURL(r, publicBaseURL), params, signature) {
				logger.Warn("webhook signature mismatch", zap.String("remote", r.RemoteAddr))
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestURL rebuilds the URL Twilio requested.
func requestURL(r *http.Request, publicBaseURL string) string {
	if publicBaseURL != "" {
		return strings.TrimRight(publicBaseURL, "/") + r.URL.RequestURI()
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
