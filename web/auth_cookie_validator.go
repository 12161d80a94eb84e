package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
)

const authCookieName = "auth"

// The auth cookie carries "<username>.<signature>", both segments URL-safe
// base64 so the value needs no cookie quoting.

func generateAuthToken(username, secretKey string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(username)) +
		"." +
		base64.RawURLEncoding.EncodeToString(sign(username, secretKey))
}

func isValidAuthToken(token, secretKey string) bool {
	encodedUser, encodedSig, found := strings.Cut(token, ".")
	if !found {
		return false
	}
	username, err := base64.RawURLEncoding.DecodeString(encodedUser)
	if err != nil {
		return false
	}
	signature, err := base64.RawURLEncoding.DecodeString(encodedSig)
	if err != nil {
		return false
	}
	return hmac.Equal(signature, sign(string(username), secretKey))
}

func isAuthenticated(r *http.Request, secretKey string) bool {
	cookie, err := r.Cookie(authCookieName)
	if err != nil {
		return false
	}
	return isValidAuthToken(cookie.Value, secretKey)
}

func sign(username, secretKey string) []byte {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(username))
	return mac.Sum(nil)
}
