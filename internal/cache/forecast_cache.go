package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/chainplan/internal/config"
	"github.com/andresuchdata/chainplan/internal/domain"
)

const (
	forecastKeyPrefix      = "forecast"
	forecastScanBatchSize  = 100
	forecastTargetDateForm = "2006-01-02"
)

// ForecastEntry is the cached output of one location forecast.
type ForecastEntry struct {
	Predictions map[string]domain.DemandPrediction `json:"predictions"`
	Diagnostics []domain.Diagnostic                `json:"diagnostics,omitempty"`
}

// ForecastKey identifies a forecast by its inputs. Fingerprint changes whenever
// the history or the catalog subset changes, so stale entries are never served.
type ForecastKey struct {
	Location    string
	TargetDate  time.Time
	Fingerprint string
}

func (k ForecastKey) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", forecastKeyPrefix, k.Location, k.TargetDate.Format(forecastTargetDateForm), k.Fingerprint)
}

type ForecastCache interface {
	Get(ctx context.Context, key ForecastKey) (ForecastEntry, bool, error)
	Set(ctx context.Context, key ForecastKey, entry ForecastEntry) error
	InvalidateAll(ctx context.Context) error
}

type redisForecastCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopForecastCache struct{}

// NewForecastCache returns a redis-backed cache, or a no-op cache when caching
// is disabled.
func NewForecastCache(cfg config.CacheConfig) (ForecastCache, error) {
	if !cfg.Enabled {
		return &noopForecastCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisForecastCache{client: client, ttl: ttl}, nil
}

func NewNoopForecastCache() ForecastCache {
	return &noopForecastCache{}
}

func (c *redisForecastCache) Get(ctx context.Context, key ForecastKey) (ForecastEntry, bool, error) {
	payload, err := c.client.Get(ctx, key.String()).Bytes()
	if err == redis.Nil {
		return ForecastEntry{}, false, nil
	}
	if err != nil {
		return ForecastEntry{}, false, fmt.Errorf("redis get failed: %w", err)
	}

	var entry ForecastEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return ForecastEntry{}, false, fmt.Errorf("decode forecast cache: %w", err)
	}
	return entry, true, nil
}

func (c *redisForecastCache) Set(ctx context.Context, key ForecastKey, entry ForecastEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode forecast cache: %w", err)
	}
	if err := c.client.Set(ctx, key.String(), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisForecastCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, forecastKeyPrefix+":", forecastScanBatchSize)
}

func (n *noopForecastCache) Get(ctx context.Context, key ForecastKey) (ForecastEntry, bool, error) {
	return ForecastEntry{}, false, nil
}

func (n *noopForecastCache) Set(ctx context.Context, key ForecastKey, entry ForecastEntry) error {
	return nil
}

func (n *noopForecastCache) InvalidateAll(ctx context.Context) error {
	return nil
}

// Fingerprint hashes the forecast inputs independent of their order.
func Fingerprint(history []domain.HistoricalSalesRecord, items map[string]domain.InventoryItem) string {
	rows := make([]string, 0, len(history))
	for _, r := range history {
		rows = append(rows, strings.Join([]string{
			r.Date.UTC().Format(forecastTargetDateForm),
			r.Location,
			r.ItemID,
			strconv.FormatFloat(r.UnitsSold, 'g', -1, 64),
			strconv.FormatFloat(r.WasteUnits, 'g', -1, 64),
		}, ","))
	}
	sort.Strings(rows)

	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	raw := "items=" + strings.Join(ids, ",") + "|rows=" + strings.Join(rows, ";")
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}
