package auth

import "strings"

const bearerPrefix = "Bearer "

// ExtractBearerToken returns what follows "Bearer " in an Authorization
// header. A missing header, another scheme or an empty token give ok=false.
func ExtractBearerToken(header string) (token string, ok bool) {
	token, ok = strings.CutPrefix(header, bearerPrefix)
	if !ok || token == "" {
		return "", false
	}
	return token, true
}
