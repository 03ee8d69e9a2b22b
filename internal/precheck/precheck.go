// Package precheck verifies the target Supabase instance is reachable and
// accepts the service role key before any import work starts.
package precheck

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/johndauphine/demo-import/internal/exitcodes"
	"github.com/johndauphine/demo-import/internal/logging"
)

var (
	// ErrUnauthorized means an endpoint rejected the credentials.
	ErrUnauthorized = errors.New("target rejected the service role key (unauthorized)")
	// ErrUnreachable means no endpoint gave a usable answer.
	ErrUnreachable = errors.New("target database unreachable")
)

// Endpoints are pinged in order until one answers.
var Endpoints = []string{
	"/rest/v1/",
	"/rest/v1/accounts",
	"/rest/v1/projects",
}

// Pinger issues a minimal read against path and reports the HTTP status.
// postgrest.Client implements it.
type Pinger interface {
	Ping(ctx context.Context, path string) (int, error)
}

// Check pings Endpoints in order. 200 or 404 passes (404 only means the
// table does not exist yet); the first 401 fails at once. Any other status
// or transport error moves on to the next endpoint.
func Check(ctx context.Context, p Pinger) error {
	var failures []string
	for _, path := range Endpoints {
		status, err := p.Ping(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logging.Debug("Ping %s failed: %v", path, err)
			failures = append(failures, fmt.Sprintf("%s: %v", path, err))
			continue
		}

		switch status {
		case http.StatusOK, http.StatusNotFound:
			logging.Debug("Ping %s: %d", path, status)
			return nil
		case http.StatusUnauthorized:
			return exitcodes.NewExitError(
				fmt.Errorf("%w: %s returned %d", ErrUnauthorized, path, status),
				exitcodes.CredentialError)
		default:
			logging.Debug("Ping %s: unexpected status %d", path, status)
			failures = append(failures, fmt.Sprintf("%s: status %d", path, status))
		}
	}

	return exitcodes.NewExitError(
		fmt.Errorf("%w (%s)", ErrUnreachable, strings.Join(failures, "; ")),
		exitcodes.ConnectionError)
}
