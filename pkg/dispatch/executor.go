// Package dispatch runs the scan loop: claim a due target, borrow a store
// connection, register the execution, run the scan, and report the result
// back to the tracker and the scheduler.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sitewarden/sitewarden/db"
	"github.com/sitewarden/sitewarden/pkg/pool"
	"github.com/spf13/viper"
)

// Result is the outcome of one scan execution.
type Result struct {
	Success      bool
	StatusCode   int
	ResponseTime time.Duration
	ErrorMessage string
}

// Executor performs the actual scan of a target. The borrowed store
// connection is available for executors that record intermediate state; the
// bundled probe does not use it. The context carries the per-target timeout
// and executors must honor its cancellation.
type Executor interface {
	Execute(ctx context.Context, target *db.Target, conn pool.Conn) (Result, error)
}

// HTTPProbeExecutor scans a target by fetching its URL and treating any
// 2xx/3xx response as success.
type HTTPProbeExecutor struct {
	client *resty.Client
}

// NewHTTPProbeExecutor builds the default probe executor.
func NewHTTPProbeExecutor() *HTTPProbeExecutor {
	client := resty.New().
		SetHeader("User-Agent", viper.GetString("probe.user_agent")).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(viper.GetInt("probe.max_redirects")))
	return &HTTPProbeExecutor{client: client}
}

// Execute fetches the target URL. Transport failures return an error; HTTP
// error status codes are reported as unsuccessful results, not errors.
func (e *HTTPProbeExecutor) Execute(ctx context.Context, target *db.Target, _ pool.Conn) (Result, error) {
	started := time.Now()
	resp, err := e.client.R().SetContext(ctx).Get(target.URL)
	elapsed := time.Since(started)

	if err != nil {
		return Result{
			Success:      false,
			ResponseTime: elapsed,
			ErrorMessage: err.Error(),
		}, err
	}

	result := Result{
		StatusCode:   resp.StatusCode(),
		ResponseTime: elapsed,
		Success:      resp.StatusCode() >= 200 && resp.StatusCode() < 400,
	}
	if !result.Success {
		result.ErrorMessage = fmt.Sprintf("unexpected status %d", resp.StatusCode())
	}
	return result, nil
}
