package click

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Sign computes the callback digest:
// md5(click_trans_id + service_id + secret + merchant_trans_id + amount + action + sign_time).
func Sign(req *Request, secret string) string {
	var b strings.Builder
	b.WriteString(req.ClickTransID.String())
	b.WriteString(req.ServiceID.String())
	b.WriteString(secret)
	b.WriteString(req.MerchantTransID.String())
	b.WriteString(req.Amount.String())
	b.WriteString(req.Action.String())
	b.WriteString(req.SignTime.String())

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether sign_string matches. An empty secret never verifies.
func Verify(req *Request, secret string) bool {
	if secret == "" || req.SignString == "" {
		return false
	}
	expected := Sign(req, secret)
	got := strings.ToLower(req.SignString.String())
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}
