package session

import (
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Session pairs the bearer token with the user it identifies. Tokens
// are issued by the external auth service; this package only reads
// them.
type Session struct {
	Token  string
	UserID string
}

// TokenSource supplies the current bearer token. Implementations must
// be safe to call repeatedly: the transport re-reads the token on every
// handshake so a rotated token is picked up on reconnect.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a TokenSource backed by a fixed string.
type StaticToken string

func (s StaticToken) Token() (string, error) {
	if s == "" {
		return "", fmt.Errorf("empty token")
	}
	return string(s), nil
}

// FileToken reads the token from the session's token file on every
// call, so external refreshes take effect without a restart.
type FileToken struct {
	Path string
}

func (f FileToken) Token() (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	tok := strings.TrimSpace(string(data))
	if tok == "" {
		return "", fmt.Errorf("token file %s is empty", f.Path)
	}
	return tok, nil
}

// Current resolves the full Session for a token source, deriving the
// user id from the token's claims.
func Current(src TokenSource) (*Session, error) {
	tok, err := src.Token()
	if err != nil {
		return nil, err
	}
	uid, err := UserIDFromToken(tok)
	if err != nil {
		return nil, err
	}
	return &Session{Token: tok, UserID: uid}, nil
}

// UserIDFromToken extracts the user id from a JWT bearer token without
// verifying the signature. Verification is the server's job; the
// client only needs the identity baked into the token it was handed.
func UserIDFromToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, nil
	}
	// Some issuers use a user_id claim instead of sub.
	if uid, ok := claims["user_id"].(string); ok && uid != "" {
		return uid, nil
	}
	return "", fmt.Errorf("token has no subject or user_id claim")
}
