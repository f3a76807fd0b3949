package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const OperatorCookieName = "slideflow_session"

// IssueOperatorCookie mints the signed session value set after a successful
// operator login. The value is an expiry timestamp plus its HMAC; there are
// no per-user claims because there is exactly one shared operator login.
func IssueOperatorCookie(secret string, ttl time.Duration) string {
	expires := strconv.FormatInt(time.Now().Add(ttl).Unix(), 10)
	return expires + "." + signCookie(secret, expires)
}

func VerifyOperatorCookie(secret, value string) bool {
	parts := strings.SplitN(value, ".", 2)
	if len(parts) != 2 {
		return false
	}

	expires, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || time.Now().Unix() > expires {
		return false
	}

	expected := signCookie(secret, parts[0])
	return hmac.Equal([]byte(parts[1]), []byte(expected))
}

func signCookie(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprint(mac, payload)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
