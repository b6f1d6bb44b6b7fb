package ctdf

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// FingerprintTimeFormat is how timestamps are rendered into the fingerprint
// input. Changing it changes every fingerprint.
const FingerprintTimeFormat = "2006-01-02 15:04:05"

// Fingerprint is the hex SHA-1 of origin code, destination code, changes,
// departure and arrival concatenated in that order with no separator, eg.
// "PADSAU22016-03-01 12:00:002016-03-01 16:49:00".
// It is an identity key only.
func Fingerprint(originCode string, destinationCode string, changes int, departs time.Time, arrives time.Time) string {
	var b strings.Builder

	b.WriteString(originCode)
	b.WriteString(destinationCode)
	b.WriteString(strconv.Itoa(changes))
	b.WriteString(departs.Format(FingerprintTimeFormat))
	b.WriteString(arrives.Format(FingerprintTimeFormat))

	hash := sha1.Sum([]byte(b.String()))

	return hex.EncodeToString(hash[:])
}
