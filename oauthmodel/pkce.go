package oauthmodel

import (
	"crypto/sha256"
	"encoding/base64"
)

// CodeChallengeS256 derives the S256 PKCE challenge for a verifier:
// base64url-encoded SHA-256 without padding.
func CodeChallengeS256(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// VerifyCodeChallenge checks a code verifier against a stored
// challenge. An empty stored challenge means PKCE was not used for the
// authorization request and any verifier is accepted.
func VerifyCodeChallenge(storedChallenge, verifier string, method CodeMethodType) bool {
	if storedChallenge == "" {
		return true
	}
	switch method {
	case CodeMethodTypeS256:
		return CodeChallengeS256(verifier) == storedChallenge
	case CodeMethodTypePlain:
		return storedChallenge == verifier
	}
	return false
}
