package cmd

import (
	"context"
	"time"
)

// cleaner is the part of the database recorder the cleanup schedule needs.
type cleaner interface {
	Cleanup(ctx context.Context, retention time.Duration) error
}
