// Package auth verifies the static bearer tokens that guard the query
// API. Tokens are configured as Argon2id digests, never plaintext, and
// verification is constant-time.
package auth

// Role is the access level a verified credential grants.
type Role string

const (
	// RoleExternal sees the redacted view only.
	RoleExternal Role = "external"
	// RoleOperator sees the full internal view and the operator routes.
	RoleOperator Role = "operator"
)

// Verifier checks bearer and reveal tokens against configured digests.
type Verifier struct {
	operatorDigests []string
	externalDigests []string
	revealDigest    string
}

// NewVerifier creates a verifier. Empty digest lists disable the
// corresponding role; an empty reveal digest disables reveal mode.
func NewVerifier(operatorDigests, externalDigests []string, revealDigest string) *Verifier {
	return &Verifier{
		operatorDigests: operatorDigests,
		externalDigests: externalDigests,
		revealDigest:    revealDigest,
	}
}

// Authenticate resolves a bearer token to its role. Operator digests are
// checked first so a token present in both lists gets the wider role.
// On failure a dummy hash runs to keep timing uniform.
func (v *Verifier) Authenticate(token string) (Role, bool) {
	if token != "" {
		for _, d := range v.operatorDigests {
			if ok, _ := VerifyToken(token, d); ok {
				return RoleOperator, true
			}
		}
		for _, d := range v.externalDigests {
			if ok, _ := VerifyToken(token, d); ok {
				return RoleExternal, true
			}
		}
	}
	DummyVerify()
	return "", false
}

// VerifyReveal checks the X-Reveal-Token value. Reveal is a second factor
// on top of an authenticated credential, never a credential itself.
func (v *Verifier) VerifyReveal(token string) bool {
	if token == "" || v.revealDigest == "" {
		return false
	}
	ok, _ := VerifyToken(token, v.revealDigest)
	return ok
}
