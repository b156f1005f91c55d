package model

// QueueStats summarizes one queue partition at a point in time.
type QueueStats struct {
	// Namespace is the sanitized partition name.
	Namespace string `json:"namespace"`

	// Backend names the storage behind the queue (memory, sqlite, postgres).
	Backend string `json:"backend"`

	// Pending is the number of requests not yet claimed.
	Pending int `json:"pending"`

	// Taken is the number of requests already claimed but not purged.
	Taken int `json:"taken"`
}

// Total returns the number of records in the partition.
func (s QueueStats) Total() int {
	return s.Pending + s.Taken
}

// Empty reports whether no request is pending.
func (s QueueStats) Empty() bool {
	return s.Pending == 0
}
