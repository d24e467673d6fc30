package cron

import (
	"context"
	"time"

	"gorm.io/gorm"
)

const day = 24 * time.Hour

// txRunner is satisfied by *db.Client.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

func retentionCutoff(now time.Time, days int) time.Time {
	return now.UTC().Add(-time.Duration(days) * day)
}
