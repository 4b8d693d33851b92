package types

import "time"

// Credentials identifies the user a Session acts on behalf of; the
// core never interprets its contents beyond passing it to an
// AccessChecker (§1 Non-goals: no authentication mechanism here).
type Credentials struct {
	UserID string
	PID    int
}

// DataInfo is a per-(session, datastore, module) record (§3 "Data
// Info"). If Modified is false, Root is guaranteed byte-for-byte
// reproducible from on-disk state as of LastLoad.
type DataInfo struct {
	Module       string
	Root         *Node
	Modified     bool
	LastLoad     time.Time
	ReadOnlyAlias bool
}
