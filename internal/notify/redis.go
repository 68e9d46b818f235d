package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/geonudge/internal/errs"
	"github.com/roach88/geonudge/internal/model"
)

// RedisClient is the subset of redis.Cmdable the sink uses.
type RedisClient interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	LPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	LTrim(ctx context.Context, key string, start, stop int64) *redis.StatusCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

var _ RedisClient = (*redis.Client)(nil)

// RedisSink keeps the last alert per reminder under "<prefix><reminder_id>"
// with a TTL, and a capped list of the most recent alerts.
type RedisSink struct {
	client    RedisClient
	keyPrefix string
	listKey   string
	listSize  int64
	ttl       time.Duration
	now       func() time.Time
}

// RedisOptions configures a RedisSink.
type RedisOptions struct {
	KeyPrefix string
	ListKey   string
	ListSize  int
	TTL       time.Duration
}

func NewRedisSink(client RedisClient, opts RedisOptions) *RedisSink {
	if opts.ListSize <= 0 {
		opts.ListSize = 100
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	return &RedisSink{
		client:    client,
		keyPrefix: opts.KeyPrefix,
		listKey:   opts.ListKey,
		listSize:  int64(opts.ListSize),
		ttl:       opts.TTL,
		now:       time.Now,
	}
}

func (s *RedisSink) Notify(ctx context.Context, n model.Notification) error {
	alert := NewAlert(n, s.now())
	data, err := json.Marshal(alert)
	if err != nil {
		return errs.Wrap(err, errs.CodeNotifyPublishFailure, "encoding alert")
	}

	if alert.ReminderID != "" {
		key := s.keyPrefix + alert.ReminderID
		if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
			return errs.Wrap(err, errs.CodeNotifyPublishFailure, "caching alert", errs.Field("key", key))
		}
	}
	if s.listKey == "" {
		return nil
	}
	if err := s.client.LPush(ctx, s.listKey, data).Err(); err != nil {
		return errs.Wrap(err, errs.CodeNotifyPublishFailure, "recording alert", errs.Field("key", s.listKey))
	}
	if err := s.client.LTrim(ctx, s.listKey, 0, s.listSize-1).Err(); err != nil {
		return errs.Wrap(err, errs.CodeNotifyPublishFailure, "trimming alerts", errs.Field("key", s.listKey))
	}
	return nil
}

// Recent returns up to limit alerts, newest first. Entries that do not
// decode are skipped.
func (s *RedisSink) Recent(ctx context.Context, limit int) ([]Alert, error) {
	if s.listKey == "" {
		return nil, nil
	}
	if limit <= 0 || int64(limit) > s.listSize {
		limit = int(s.listSize)
	}
	raw, err := s.client.LRange(ctx, s.listKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeNotifyPublishFailure, "reading recent alerts")
	}
	out := make([]Alert, 0, len(raw))
	for _, r := range raw {
		var a Alert
		if json.Unmarshal([]byte(r), &a) == nil {
			out = append(out, a)
		}
	}
	return out, nil
}
