package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/anshulg954/TabAdjust/pkg/telemetry"
	"github.com/anshulg954/TabAdjust/pkg/timeseries"
)

const panelKey = "tabadjust:panel"

// RedisPanelStore caches the panel in a Redis sorted set scored by record
// timestamp, so window loads are range queries.
type RedisPanelStore struct {
	client *redis.Client
	logger telemetry.Logger
}

func NewRedisPanelStore(addr string, db int, password string, logger telemetry.Logger) (*RedisPanelStore, error) {
	if logger == nil {
		logger = telemetry.NewNopLogger()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		DB:       db,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisPanelStore{client: client, logger: logger}, nil
}

func (s *RedisPanelStore) Save(ctx context.Context, panel timeseries.Panel) error {
	if err := s.client.Del(ctx, panelKey).Err(); err != nil {
		return fmt.Errorf("failed to clear panel cache: %w", err)
	}
	pipe := s.client.Pipeline()
	for i := range panel {
		data, err := json.Marshal(&panel[i])
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		pipe.ZAdd(ctx, panelKey, redis.Z{
			Score:  float64(panel[i].Timestamp.Unix()),
			Member: data,
		})
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisPanelStore) Load(ctx context.Context, start, end time.Time) (timeseries.Panel, error) {
	results, err := s.client.ZRangeByScore(ctx, panelKey, &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", start.Unix()),
		Max: fmt.Sprintf("%d", end.Unix()),
	}).Result()
	if err != nil {
		return nil, err
	}
	return s.decodeMembers(ctx, results), nil
}

func (s *RedisPanelStore) LoadAll(ctx context.Context) (timeseries.Panel, error) {
	results, err := s.client.ZRangeByScore(ctx, panelKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}
	return s.decodeMembers(ctx, results), nil
}

func (s *RedisPanelStore) Close() error { return s.client.Close() }

// decodeMembers decodes cached members, skipping any that fail to parse. A
// skip is degraded cache content, not a fault of the caller, so it is logged
// rather than returned.
func (s *RedisPanelStore) decodeMembers(ctx context.Context, members []string) timeseries.Panel {
	panel := make(timeseries.Panel, 0, len(members))
	skipped := 0
	for _, data := range members {
		var rec timeseries.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			skipped++
			continue
		}
		panel = append(panel, rec)
	}
	if skipped > 0 {
		s.logger.Warn(ctx, "skipped malformed cached panel records", map[string]any{
			"skipped": skipped,
			"loaded":  len(panel),
		})
	}
	panel.Sort()
	return panel
}
