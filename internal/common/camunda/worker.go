// internal/common/camunda/worker.go
package camunda

import (
	"fmt"

	"safety-rating/internal/common/config"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// StartWorker opens a job worker for taskType unless it is disabled. It
// reports whether a worker was opened.
func (c *Client) StartWorker(taskType string, wcfg config.WorkerConfig, handler worker.JobHandler) bool {
	if !wcfg.Enabled {
		c.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return false
	}

	jobWorker := c.client.NewJobWorker().
		JobType(taskType).
		Handler(handler).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Name(fmt.Sprintf("%s-worker", taskType)).
		Open()

	c.mu.Lock()
	c.workers = append(c.workers, jobWorker)
	c.mu.Unlock()

	c.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
	return true
}

// Close stops every worker, waiting for in-flight jobs, then the client.
func (c *Client) Close() error {
	c.mu.Lock()
	workers := c.workers
	c.workers = nil
	c.mu.Unlock()

	for _, w := range workers {
		w.Close()
		w.AwaitClose()
	}
	return c.client.Close()
}
