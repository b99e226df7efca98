package voice

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/twilio/twilio-go/client"
)

// SignatureHeader carries the platform's HMAC of the request.
const SignatureHeader = "X-Twilio-Signature"

// SignatureValidator checks that webhook requests were signed with the
// account's auth token.
type SignatureValidator struct {
	validator client.RequestValidator
	baseURL   string
}

// NewSignatureValidator creates a validator. baseURL is the public scheme
// and host the platform calls (for example https://intake.example.com);
// the request path and query are appended to it.
func NewSignatureValidator(authToken, baseURL string) *SignatureValidator {
	return &SignatureValidator{
		validator: client.NewRequestValidator(authToken),
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// Validate reports whether r carries a valid signature. The form must
// already be parsed.
func (v *SignatureValidator) Validate(r *http.Request) bool {
	sig := r.Header.Get(SignatureHeader)
	if sig == "" {
		slog.Warn("SignatureValidator.Validate: missing signature", "path", r.URL.Path)
		return false
	}
	fullURL := v.baseURL + r.URL.RequestURI()
	params := make(map[string]string, len(r.PostForm))
	for k, vals := range r.PostForm {
		if len(vals) > 0 {
			params[k] = vals[0]
		}
	}
	ok := v.validator.Validate(fullURL, params, sig)
	if !ok {
		slog.Warn("SignatureValidator.Validate: signature mismatch", "path", r.URL.Path)
	}
	return ok
}
