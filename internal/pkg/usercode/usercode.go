// Package usercode derives the short payment reference code users put
// in their transfer concept. The code is a stable function of the user
// id so it never needs to be stored.
package usercode

import (
	"crypto/sha256"
	"encoding/base32"
	"fmt"
)

const Length = 6

// ForUser returns the 6-character uppercase code for a user id.
func ForUser(userID int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("nevera:%d", userID)))
	encoded := base32.StdEncoding.EncodeToString(sum[:])
	return encoded[:Length]
}
