package payme

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

// VerifyAuthorization checks an "Authorization: Basic base64(identity:secret)"
// header. An empty secret never verifies.
func VerifyAuthorization(header, identity, secret string) bool {
	if secret == "" {
		return false
	}

	const prefix = "Basic "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header[len(prefix):]))
	if err != nil {
		return false
	}

	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return false
	}

	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(identity)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(secret)) == 1
	return userOK && passOK
}

// Authorization builds the header value the gateway sends.
func Authorization(identity, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(identity+":"+secret))
}
