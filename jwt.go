package taskboard

import (
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

const DefaultTokenExpiry = 2 * time.Hour

// verified identity of an authorized caller
type AuthClaims struct {
	UserId Id
	Email  string
}

// the authorization gate in front of mutation endpoints.
// issues and verifies HS256 tokens. the mutation core only ever sees
// requests that passed `Verify`.
type AuthGate struct {
	key    []byte
	expiry time.Duration
}

func NewAuthGateWithDefaults(key []byte) *AuthGate {
	return NewAuthGate(key, DefaultTokenExpiry)
}

func NewAuthGate(key []byte, expiry time.Duration) *AuthGate {
	return &AuthGate{
		key:    key,
		expiry: expiry,
	}
}

func (self *AuthGate) Issue(userId Id, email string) (string, error) {
	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"user_id": userId.String(),
		"email":   email,
		"exp":     time.Now().Add(self.expiry).Unix(),
	})
	return token.SignedString(self.key)
}

func (self *AuthGate) Verify(tokenStr string) (*AuthClaims, error) {
	token, err := gojwt.Parse(
		tokenStr,
		func(token *gojwt.Token) (any, error) {
			if _, ok := token.Method.(*gojwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %s", token.Method.Alg())
			}
			return self.key, nil
		},
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(gojwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims")
	}
	return authClaimsFromMap(claims)
}

// reads the claims without verifying the signature.
// only for display on the client side, never for authorization.
func ParseAuthClaimsUnverified(tokenStr string) (*AuthClaims, error) {
	parser := gojwt.NewParser()
	token, _, err := parser.ParseUnverified(tokenStr, gojwt.MapClaims{})
	if err != nil {
		return nil, err
	}
	claims := token.Claims.(gojwt.MapClaims)
	return authClaimsFromMap(claims)
}

func authClaimsFromMap(claims gojwt.MapClaims) (*AuthClaims, error) {
	authClaims := &AuthClaims{}

	userIdStr, ok := claims["user_id"].(string)
	if !ok {
		return nil, fmt.Errorf("token does not have a user_id")
	}
	userId, err := ParseId(userIdStr)
	if err != nil {
		return nil, fmt.Errorf("token has invalid user_id (%s)", err)
	}
	authClaims.UserId = userId

	if email, ok := claims["email"].(string); ok {
		authClaims.Email = email
	}

	return authClaims, nil
}
