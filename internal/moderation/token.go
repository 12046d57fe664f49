package moderation

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/luisjglz/evaluat/pkg/types"
)

// TokenSigner issues and verifies the signed capability tokens carried
// on moderation links. A token binds a proposal to its current nonce
// with a bounded validity window, so an emailed link can perform a
// privileged one-shot action without a login session. Verification
// needs no database read; tampered or expired tokens are rejected
// before storage is touched.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
}

// ModerationClaims are the JWT claims of a moderation token
type ModerationClaims struct {
	ProposalID string `json:"proposal_id"`
	Nonce      string `json:"nonce"`
	jwt.RegisteredClaims
}

// NewTokenSigner creates a new token signer
func NewTokenSigner(secret string, ttl time.Duration) *TokenSigner {
	return &TokenSigner{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Sign issues a token for the proposal and its current nonce
func (ts *TokenSigner) Sign(proposalID, nonce string) (string, error) {
	now := time.Now()

	claims := &ModerationClaims{
		ProposalID: proposalID,
		Nonce:      nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "evaluat-moderation",
			Subject:   proposalID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(ts.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign moderation token: %w", err)
	}
	return tokenString, nil
}

// Verify validates signature and expiry and returns the claims. Every
// failure collapses into the client-visible expired-token error: the
// caller learns nothing about why a link stopped working.
func (ts *TokenSigner) Verify(tokenString string) (*ModerationClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ModerationClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, types.NewExpiredTokenError()
	}

	claims, ok := token.Claims.(*ModerationClaims)
	if !ok || claims.ProposalID == "" || claims.Nonce == "" {
		return nil, types.NewExpiredTokenError()
	}

	return claims, nil
}
