// Package auth implements authentication against the identity provider and
// the local database, and synchronizes host roles from provider group claims.
//
// The OIDC provider wraps discovery, the authorization request (including
// the kc_locale parameter and anti-forgery state), token exchange and claim
// extraction. The Service reconciles a user's roles by running the ordered
// role-rule engine against the group list extracted from the claims payload.
package auth
