package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dpnam2112/codemate-backend/internal/modules/recommend/agent"
	"github.com/dpnam2112/codemate-backend/internal/platform/envutil"
	"github.com/dpnam2112/codemate-backend/internal/platform/logger"
)

type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

func LoadConfig() Config {
	return Config{
		Addr:      envutil.String("REDIS_ADDR", ""),
		Password:  envutil.String("REDIS_PASSWORD", ""),
		DB:        envutil.Int("REDIS_DB", 0),
		KeyPrefix: envutil.String("REDIS_KEY_PREFIX", "codemate"),
		TTL:       envutil.Seconds("RECOMMEND_CHECKPOINT_TTL_SECONDS", 7*24*time.Hour),
	}
}

func (c Config) Enabled() bool { return strings.TrimSpace(c.Addr) != "" }

// TranscriptStore persists finished agent transcripts with a TTL so failed or
// timed out runs can be inspected later.
type TranscriptStore struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

var _ agent.Checkpointer = (*TranscriptStore)(nil)

// NewTranscriptStore returns (nil, nil) when REDIS_ADDR is not set.
func NewTranscriptStore(ctx context.Context, cfg Config, log *logger.Logger) (*TranscriptStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if !cfg.Enabled() {
		return nil, nil
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newTranscriptStore(rdb, cfg, log), nil
}

func newTranscriptStore(rdb *goredis.Client, cfg Config, log *logger.Logger) *TranscriptStore {
	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = "codemate"
	}
	return &TranscriptStore{
		log:    log.With("service", "RedisTranscriptStore"),
		rdb:    rdb,
		prefix: prefix,
		ttl:    cfg.TTL,
	}
}

func (s *TranscriptStore) key(runID string) string {
	return s.prefix + ":agent:transcript:" + runID
}

func (s *TranscriptStore) indexKey(loop string) string {
	return s.prefix + ":agent:runs:" + loop
}

func (s *TranscriptStore) Save(ctx context.Context, t agent.Transcript) error {
	if s == nil || s.rdb == nil {
		return fmt.Errorf("redis transcript store not initialized")
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.key(t.RunID), raw, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(t.Loop), goredis.Z{Score: float64(t.EndedAt.Unix()), Member: t.RunID})
	if s.ttl > 0 {
		pipe.Expire(ctx, s.indexKey(t.Loop), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save transcript %s: %w", t.RunID, err)
	}
	s.log.Debug("agent transcript saved", "run_id", t.RunID, "loop", t.Loop, "outcome", string(t.Outcome))
	return nil
}

func (s *TranscriptStore) Get(ctx context.Context, runID string) (agent.Transcript, error) {
	var t agent.Transcript
	raw, err := s.rdb.Get(ctx, s.key(runID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return t, agent.ErrTranscriptNotFound
	}
	if err != nil {
		return t, err
	}
	if err := json.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("decode transcript %s: %w", runID, err)
	}
	return t, nil
}

// Recent lists the newest run ids of a loop, newest first.
func (s *TranscriptStore) Recent(ctx context.Context, loop string, limit int64) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.rdb.ZRevRange(ctx, s.indexKey(loop), 0, limit-1).Result()
}

func (s *TranscriptStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
