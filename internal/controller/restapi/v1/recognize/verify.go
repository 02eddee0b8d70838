package recognize

import (
	"crypto/subtle"
	"strings"

	"github.com/moisesblank/people-flow-desk-sub004/pkg/types/errs"
)

// Header carrying the shared-secret token for sources without a provider
// signature scheme.
const HeaderToken = "X-Webhook-Token"

// VerifyOpen reports whether verification was skipped because no secret is
// configured for the source. Callers log it; requests still pass.
type VerifyOpen bool

// Verifier checks inbound credentials per source. An empty secret for a
// source means verification is open for it: misconfiguration must not drop
// paid-purchase events on the floor.
type Verifier struct {
	secrets map[string]string
}

// NewVerifier builds a verifier from a source->secret map. Keys are
// lowercased to match chain classification output.
func NewVerifier(secrets map[string]string) *Verifier {
	normalized := make(map[string]string, len(secrets))
	for source, secret := range secrets {
		normalized[strings.ToLower(source)] = secret
	}

	return &Verifier{secrets: normalized}
}

// Verify validates the request credential for the classified source. Hotmart
// presents its token in the hottok header, everything else in the generic
// token header. Comparison is constant-time.
func (v *Verifier) Verify(source string, in Input) (VerifyOpen, error) {
	secret, configured := v.secrets[source]
	if !configured || secret == "" {
		return VerifyOpen(true), nil
	}

	presented := in.Header(HeaderToken)
	if source == "hotmart" {
		presented = in.Header(HeaderHotmartHottok)
	}

	if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
		return VerifyOpen(false), errs.ErrInvalidSignature
	}

	return VerifyOpen(false), nil
}
