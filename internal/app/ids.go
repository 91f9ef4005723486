package app

import "github.com/google/uuid"

func newUUID() string {
	return uuid.NewString()
}

// validID reports whether id parses as a UUID, so malformed path ids fail
// validation instead of reaching the store.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// canonicalID returns id in the lowercase hyphenated form the store scans
// back, accepting the uppercase, braced and urn forms uuid.Parse allows.
func canonicalID(id string) (string, bool) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return u.String(), true
}
