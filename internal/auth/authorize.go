// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Shopkeep Contributors

package auth

import (
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID  ulid.ULID
	IsAdmin bool
}

// Authenticator turns a raw credential header value into an Identity.
type Authenticator struct {
	tokens *TokenIssuer
}

// NewAuthenticator creates a new Authenticator.
func NewAuthenticator(tokens *TokenIssuer) (*Authenticator, error) {
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("token issuer is required")
	}
	return &Authenticator{tokens: tokens}, nil
}

// Authenticate reads a "<scheme> <token>" header value.
// An empty value wraps ErrUnauthenticated. A present value without a second
// segment, blank ones included, or whose token fails verification, wraps ErrInvalidToken.
func (a *Authenticator) Authenticate(headerValue string) (Identity, error) {
	if headerValue == "" {
		return Identity{}, oops.Code("AUTH_UNAUTHENTICATED").Wrap(ErrUnauthenticated)
	}

	fields := strings.Fields(headerValue)
	if len(fields) < 2 {
		return Identity{}, oops.Code("TOKEN_INVALID").
			With("reason", "missing token segment").
			Wrap(ErrInvalidToken)
	}

	claims, err := a.tokens.Verify(fields[1])
	if err != nil {
		return Identity{}, err
	}

	// Verify already rejected malformed ids.
	id := ulid.MustParse(claims.UserID)
	return Identity{UserID: id, IsAdmin: claims.IsAdmin}, nil
}

// Policy is an authorization rule evaluated against an Identity.
type Policy int

// Policies.
const (
	// PolicyAuthenticated admits any authenticated identity.
	PolicyAuthenticated Policy = iota
	// PolicySelfOrAdmin admits the identity owning the target id, or any admin.
	PolicySelfOrAdmin
	// PolicyAdminOnly admits admins only.
	PolicyAdminOnly
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case PolicyAuthenticated:
		return "authenticated"
	case PolicySelfOrAdmin:
		return "self_or_admin"
	case PolicyAdminOnly:
		return "admin_only"
	default:
		return "unknown"
	}
}

// Decision is the outcome of Authorize.
type Decision struct {
	Allowed bool
	Policy  Policy
}

// Err returns nil when allowed, otherwise an error wrapping ErrForbidden.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return oops.Code("AUTH_FORBIDDEN").With("policy", d.Policy.String()).Wrap(ErrForbidden)
}

// Authorize evaluates policy for identity against targetID.
// targetID is only consulted by PolicySelfOrAdmin. Unknown policies deny.
func Authorize(identity Identity, policy Policy, targetID string) Decision {
	d := Decision{Policy: policy}
	switch policy {
	case PolicyAuthenticated:
		d.Allowed = true
	case PolicySelfOrAdmin:
		d.Allowed = identity.IsAdmin || (targetID != "" && strings.EqualFold(identity.UserID.String(), targetID))
	case PolicyAdminOnly:
		d.Allowed = identity.IsAdmin
	}
	return d
}
