// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// SetupTask represents a queued setup job: sync a user's workspace data
// and (re-)ingest it into the vector index.
type SetupTask struct {
	UserEmail  string `json:"user_email"`
	DataSource string `json:"data_source"` // "email" or "drive"
	RunID      uint   `json:"run_id"`
}
