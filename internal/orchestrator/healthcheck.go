package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/johndauphine/demo-import/internal/dataset"
	"github.com/johndauphine/demo-import/internal/postgrest"
	"github.com/johndauphine/demo-import/internal/precheck"
)

// checkTimeout bounds each side of a health check.
const checkTimeout = 30 * time.Second

// Check runs the target precheck and a read against the source's threads
// table in parallel. The returned error is the target precheck's, so
// callers can map it to an exit code; source problems only mark the result
// unhealthy.
func (o *Orchestrator) Check(ctx context.Context) (*HealthCheckResult, error) {
	result := &HealthCheckResult{
		Timestamp: time.Now().Format(time.RFC3339),
		TargetURL: o.config.Target.URL,
		SourceURL: o.config.Source.URL,
	}

	var targetErr error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		start := time.Now()
		targetCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		defer cancel()

		if targetErr = precheck.Check(targetCtx, o.target); targetErr != nil {
			result.TargetError = targetErr.Error()
		} else {
			result.TargetConnected = true
		}
		result.TargetLatencyMs = time.Since(start).Milliseconds()
	}()

	go func() {
		defer wg.Done()
		start := time.Now()
		sourceCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		defer cancel()

		status, err := o.source.Ping(sourceCtx, postgrest.RestPath+dataset.TableThreads)
		switch {
		case err != nil:
			result.SourceError = err.Error()
		case status != http.StatusOK:
			result.SourceError = fmt.Sprintf("status %d", status)
		default:
			result.SourceConnected = true
		}
		result.SourceLatencyMs = time.Since(start).Milliseconds()
	}()

	wg.Wait()

	result.Healthy = result.TargetConnected && result.SourceConnected
	return result, targetErr
}
