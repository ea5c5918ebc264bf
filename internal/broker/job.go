package broker

import (
	"sync"

	"summarist/internal/domain"
)

// job is owned by the broker from Submit until resolve.
type job struct {
	req        domain.SummaryRequest
	retryCount int
	result     chan domain.Result
	once       sync.Once
}

func newJob(req domain.SummaryRequest) *job {
	return &job{
		req:    req,
		result: make(chan domain.Result, 1),
	}
}

// resolve delivers res once. The channel is buffered, so a caller that
// stopped listening does not block the worker.
func (j *job) resolve(res domain.Result) {
	j.once.Do(func() {
		j.result <- res
	})
}
