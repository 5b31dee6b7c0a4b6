package dto

// SyncRequested asks a worker to run one account synchronization outside the schedule.
type SyncRequested struct {
	AccountID string `json:"accountId"`
}
