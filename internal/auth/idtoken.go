package auth

import (
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/waabox/deviceauth/internal/domain"
)

// PlaceholderLabel is used when the ID token names nobody.
const PlaceholderLabel = "Signed-in user"

// DecodeClaims reads the payload segment of an ID token without verifying it.
// Any failure yields nil claims.
func DecodeClaims(idToken string) jwt.MapClaims {
	if idToken == "" {
		return nil
	}
	parts := strings.Split(idToken, ".")
	if len(parts) < 2 {
		return nil
	}
	payload, err := jwt.NewParser(jwt.WithPaddingAllowed()).DecodeSegment(parts[1])
	if err != nil {
		return nil
	}
	var claims jwt.MapClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil
	}
	return claims
}

// AccountFromIDToken derives the account from an ID token.
// id falls back sub -> email -> preferred_username -> newID();
// label falls back name -> email -> nickname -> PlaceholderLabel.
func AccountFromIDToken(idToken string, newID func() string) domain.Account {
	claims := DecodeClaims(idToken)
	id := firstClaim(claims, "sub", "email", "preferred_username")
	if id == "" {
		id = newID()
	}
	label := firstClaim(claims, "name", "email", "nickname")
	if label == "" {
		label = PlaceholderLabel
	}
	return domain.Account{ID: id, Label: label}
}

func firstClaim(claims jwt.MapClaims, names ...string) string {
	for _, name := range names {
		if v, ok := claims[name].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
