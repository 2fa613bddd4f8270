package domain

import "time"

// AuditRecord is one gateway attempt. Result holds the reply on success and
// the error description on failure.
type AuditRecord struct {
	CallerID  string
	Success   bool
	Cached    bool
	Query     string
	Result    string
	Timestamp time.Time
}

// Exchange is a successful user message and the reply it produced.
type Exchange struct {
	CallerID    string
	UserMessage string
	Reply       string
	Timestamp   time.Time
}
