// Package metadata implements the metadata repository: draft and saved
// records keyed by element id in a kvstore.Store, and the precedence rule
// that decides which of them is an element's current view.
package metadata

import "strings"

// Key prefixes for the two record kinds.
const (
	SavedPrefix = "metadata-"
	DraftPrefix = "draft-"
)

// SavedKey returns the store key of the saved record for elementID.
func SavedKey(elementID string) string { return SavedPrefix + elementID }

// DraftKey returns the store key of the draft record for elementID.
func DraftKey(elementID string) string { return DraftPrefix + elementID }

// ElementIDFromSavedKey strips SavedPrefix, reporting false for other keys.
func ElementIDFromSavedKey(key string) (string, bool) {
	if !strings.HasPrefix(key, SavedPrefix) {
		return "", false
	}
	return strings.TrimPrefix(key, SavedPrefix), true
}
