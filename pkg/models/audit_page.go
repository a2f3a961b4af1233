package models

// AuditPage is one page of audit log entries plus the total number of entries
// matching the same filter.
type AuditPage struct {
	Entries []*AuditEntry `json:"entries"`
	Total   int64         `json:"total"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
}
