package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDirectoryWarm prefetches listing pages into the cache.
	TaskDirectoryWarm = "directory:warm"
	// TaskDirectoryInvalidate drops every cached listing page.
	TaskDirectoryInvalidate = "directory:invalidate"
)

// DirectoryWarmPayload selects how much of the listing to prefetch.
type DirectoryWarmPayload struct {
	Pages   int `json:"pages"`
	PerPage int `json:"per_page"`
}

// NewDirectoryWarmTask constructs the warm task.
func NewDirectoryWarmTask(pages, perPage int) (*asynq.Task, error) {
	data, err := json.Marshal(DirectoryWarmPayload{Pages: pages, PerPage: perPage})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDirectoryWarm, data), nil
}

// NewDirectoryInvalidateTask constructs the invalidate task.
func NewDirectoryInvalidateTask() *asynq.Task {
	return asynq.NewTask(TaskDirectoryInvalidate, nil)
}
