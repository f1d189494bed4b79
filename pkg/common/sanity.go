package common

import "strings"

// IsAdmin reports whether userID is the configured bot owner. An empty owner id admits nobody.
func IsAdmin(ownerID, userID string) bool {
	ownerID = strings.TrimSpace(ownerID)
	return ownerID != "" && ownerID == userID
}
