package opsync

import (
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// SessionJwt authorizes one publishing session on the websocket link.
type SessionJwt struct {
	SessionId  Id
	CreateTime time.Time
}

func NewSessionJwt(secret []byte, sessionId Id) (string, error) {
	claims := gojwt.MapClaims{
		"session_id": sessionId.String(),
		"iat":        time.Now().Unix(),
	}
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func ParseSessionJwt(jwt string, secret []byte) (*SessionJwt, error) {
	parser := gojwt.NewParser(gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}))
	token, err := parser.Parse(jwt, func(token *gojwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	return sessionJwtFromClaims(token.Claims.(gojwt.MapClaims))
}

// reads the claims without checking the signature. Use only for display.
func ParseSessionJwtUnverified(jwt string) (*SessionJwt, error) {
	parser := gojwt.NewParser()
	token, _, err := parser.ParseUnverified(jwt, gojwt.MapClaims{})
	if err != nil {
		return nil, err
	}
	return sessionJwtFromClaims(token.Claims.(gojwt.MapClaims))
}

func sessionJwtFromClaims(claims gojwt.MapClaims) (*SessionJwt, error) {
	sessionJwt := &SessionJwt{}

	sessionIdStr, ok := claims["session_id"].(string)
	if !ok {
		return nil, fmt.Errorf("Missing session_id claim.")
	}
	sessionId, err := ParseId(sessionIdStr)
	if err != nil {
		return nil, err
	}
	sessionJwt.SessionId = sessionId

	if issuedAt, err := claims.GetIssuedAt(); err == nil && issuedAt != nil {
		sessionJwt.CreateTime = issuedAt.Time
	}

	return sessionJwt, nil
}
