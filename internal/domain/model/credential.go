package model

import "time"

// Credential is the single secret used to authenticate the session. At most
// one credential record exists; a new submission replaces the old value.
type Credential struct {
	ID        int64
	Token     string
	UpdatedAt time.Time
}
