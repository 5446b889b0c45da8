package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds retry configuration
type Config struct {
	MaxAttempts     int           // Maximum number of attempts (default: 3)
	InitialDelay    time.Duration // Delay before the first retry (default: 100ms)
	MaxDelay        time.Duration // Upper bound for the delay (default: 2s)
	Multiplier      float64       // Exponential backoff multiplier (default: 2.0)
	RetryableErrors []string      // Error substrings that are retryable
}

// DefaultConfig returns the retry configuration used for the progress mirror.
// Kept short: retries run on the read loop and delay line delivery.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		RetryableErrors: []string{
			"connection refused",
			"connection reset",
			"connection lost",
			"timeout",
			"network is unreachable",
			"no such host",
			"temporary failure",
			"code: 999", // ClickHouse: Connection lost
			"code: 159", // ClickHouse: Timeout exceeded
			"code: 210", // ClickHouse: Network error
		},
	}
}

// IsRetryableError checks if an error is retryable
func IsRetryableError(err error, cfg Config) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())

	// Syntax errors (code: 62) never heal
	if strings.Contains(errStr, "code: 62") || strings.Contains(errStr, "syntax error") {
		return false
	}

	for _, pattern := range cfg.RetryableErrors {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// Do executes operation, retrying retryable errors with exponential backoff
func Do(ctx context.Context, cfg Config, operation func() error) error {
	var lastErr error
	delay := cfg.InitialDelay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		}

		err := operation()
		if err == nil {
			if attempt > 1 {
				log.Debug().
					Int("attempt", attempt).
					Msg("Operation succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if !IsRetryableError(err, cfg) {
			return err
		}
		if attempt >= cfg.MaxAttempts {
			break
		}

		log.Debug().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", cfg.MaxAttempts).
			Dur("retry_delay", delay).
			Msg("Operation failed, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}
