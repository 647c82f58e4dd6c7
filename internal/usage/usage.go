// Package usage keeps hourly per-outcome request counters in Redis. The
// counters are for operators; rate limiting never reads them.
package usage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"

	"github.com/simanam/personalsite-new/internal/models"
)

const (
	keyPrefix    = "chat:usage"
	hourLayout   = "2006-01-02-15"
	counterTTL   = 48 * time.Hour
	connectLimit = 15 * time.Second
)

type Counter struct {
	client *redis.Client
	now    func() time.Time
}

// NewCounter connects to redisURL, retrying the initial ping with
// exponential backoff for a short while.
func NewCounter(ctx context.Context, redisURL string) (*Counter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opt)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = connectLimit
	ping := func() error {
		return client.Ping(ctx).Err()
	}
	if err := backoff.Retry(ping, backoff.WithContext(bo, ctx)); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &Counter{client: client, now: time.Now}, nil
}

func (c *Counter) key(hour time.Time, outcome models.Outcome) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, hour.UTC().Format(hourLayout), outcome)
}

// Record counts one request with the given outcome in the current hour.
func (c *Counter) Record(ctx context.Context, outcome models.Outcome) error {
	key := c.key(c.now(), outcome)

	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, counterTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("incrementing %s: %w", key, err)
	}
	return nil
}

// Snapshot returns the current hour's counters for every outcome, zeros
// included.
func (c *Counter) Snapshot(ctx context.Context) (map[models.Outcome]int64, error) {
	hour := c.now()
	keys := lo.Map(models.Outcomes, func(o models.Outcome, _ int) string {
		return c.key(hour, o)
	})

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading usage counters: %w", err)
	}

	counts := make(map[models.Outcome]int64, len(models.Outcomes))
	for i, outcome := range models.Outcomes {
		counts[outcome] = 0
		s, ok := values[i].(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing counter %s: %w", keys[i], err)
		}
		counts[outcome] = n
	}
	return counts, nil
}

func (c *Counter) Close() error {
	return c.client.Close()
}
