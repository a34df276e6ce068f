package payment

import (
	"crypto/md5"
	"encoding/hex"
)

// ListingHash is the MD5 digest the gateway requires on its transaction
// listing endpoint. MD5 is not collision resistant; this value only
// identifies the merchant to that one endpoint and must not be used to
// authenticate anything else.
func ListingHash(merchantID, appID, secret string) string {
	sum := md5.Sum([]byte(merchantID + appID + secret))
	return hex.EncodeToString(sum[:])
}
