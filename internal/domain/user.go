package domain

import "time"

// User is a chat participant that owns tasks.
type User struct {
	ID           int64      // platform user id
	ChatID       int64      // where notifications are sent
	TZ           string     // IANA name
	Lang         string     // platform language code, may be empty
	LastDigestAt *time.Time // UTC, nullable
	CreatedAt    time.Time  // UTC
}

// Location returns the user's timezone, falling back to UTC for unknown names.
func (u *User) Location() *time.Location {
	if u.TZ == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.TZ)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DigestSentOn reports whether the last digest was sent on the same local
// calendar day as now.
func (u *User) DigestSentOn(now time.Time) bool {
	if u.LastDigestAt == nil {
		return false
	}
	return SameDay(*u.LastDigestAt, now, u.Location())
}
