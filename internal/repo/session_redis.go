package repo

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	errx "github.com/green-credit-copilot/server/internal/core/error"
	"github.com/green-credit-copilot/server/internal/model"
	logx "github.com/green-credit-copilot/server/pkg/logger"
)

const sessionLockStripes = 64

// RedisSessionRepository stores session transcripts in Redis: a hash for
// metadata, a list for ordered turns and a sorted set per owner for listing
// by recency. Appends are serialized per session through striped mutexes;
// different sessions never contend.
type RedisSessionRepository struct {
	rdb   redis.Cmdable
	ttl   time.Duration
	locks [sessionLockStripes]sync.Mutex
}

func NewRedisSessionRepository(rdb redis.Cmdable, ttl time.Duration) *RedisSessionRepository {
	return &RedisSessionRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisSessionRepository) metaKey(sessionID string) string {
	return fmt.Sprintf("session:%s:meta", sessionID)
}

func (r *RedisSessionRepository) turnsKey(sessionID string) string {
	return fmt.Sprintf("session:%s:turns", sessionID)
}

func (r *RedisSessionRepository) ownerKey(ownerID string) string {
	return fmt.Sprintf("sessions:owner:%s", ownerID)
}

func (r *RedisSessionRepository) lock(sessionID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return &r.locks[h.Sum32()%sessionLockStripes]
}

func (r *RedisSessionRepository) Create(ctx context.Context, ownerID, title string) (*model.Session, error) {
	if title == "" {
		title = model.DefaultSessionTitle
	}
	now := time.Now().UTC()
	s := &model.Session{
		ID:        uuid.NewString(),
		Title:     title,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, r.metaKey(s.ID), map[string]any{
		"id":         s.ID,
		"title":      s.Title,
		"owner_id":   s.OwnerID,
		"created_at": now.Format(time.RFC3339Nano),
		"updated_at": now.Format(time.RFC3339Nano),
	})
	pipe.ZAdd(ctx, r.ownerKey(ownerID), redis.Z{Score: float64(now.UnixMilli()), Member: s.ID})
	if r.ttl > 0 {
		pipe.Expire(ctx, r.metaKey(s.ID), r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logx.Error().Err(err).Str("session_id", s.ID).Msg("failed to create session")
		return nil, errx.WrapRedis(err)
	}
	return s, nil
}

func (r *RedisSessionRepository) Get(ctx context.Context, sessionID string) (*model.Session, error) {
	meta, err := r.rdb.HGetAll(ctx, r.metaKey(sessionID)).Result()
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to load session meta")
		return nil, errx.WrapRedis(err)
	}
	if len(meta) == 0 {
		return nil, errx.WrapRedis(redis.Nil)
	}

	s := sessionFromMeta(meta)
	rows, err := r.rdb.LRange(ctx, r.turnsKey(sessionID), 0, -1).Result()
	if err != nil && err != redis.Nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to load session turns")
		return nil, errx.WrapRedis(err)
	}
	s.Turns, err = decodeTurns(rows)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *RedisSessionRepository) List(ctx context.Context, ownerID string) ([]*model.Session, error) {
	ids, err := r.rdb.ZRevRange(ctx, r.ownerKey(ownerID), 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return []*model.Session{}, nil
		}
		return nil, errx.WrapRedis(err)
	}

	out := make([]*model.Session, 0, len(ids))
	for _, id := range ids {
		meta, err := r.rdb.HGetAll(ctx, r.metaKey(id)).Result()
		if err != nil {
			return nil, errx.WrapRedis(err)
		}
		if len(meta) == 0 {
			// Meta expired but the index entry survived; drop it lazily.
			r.rdb.ZRem(ctx, r.ownerKey(ownerID), id)
			continue
		}
		out = append(out, sessionFromMeta(meta))
	}
	return out, nil
}

func (r *RedisSessionRepository) Delete(ctx context.Context, sessionID string) error {
	ownerID, err := r.rdb.HGet(ctx, r.metaKey(sessionID), "owner_id").Result()
	if err != nil && err != redis.Nil {
		return errx.WrapRedis(err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, r.metaKey(sessionID), r.turnsKey(sessionID))
	if ownerID != "" {
		pipe.ZRem(ctx, r.ownerKey(ownerID), sessionID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to delete session")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisSessionRepository) Rename(ctx context.Context, sessionID, title string) error {
	n, err := r.rdb.Exists(ctx, r.metaKey(sessionID)).Result()
	if err != nil {
		return errx.WrapRedis(err)
	}
	if n == 0 {
		return errx.WrapRedis(redis.Nil)
	}
	// A manual rename locks the title against later auto-generation.
	err = r.rdb.HSet(ctx, r.metaKey(sessionID), map[string]any{
		"title":        title,
		"title_locked": "1",
		"updated_at":   time.Now().UTC().Format(time.RFC3339Nano),
	}).Err()
	if err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisSessionRepository) AppendTurn(ctx context.Context, sessionID string, turn model.Turn) error {
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	b, err := sonic.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshal turn: %w", err)
	}

	mu := r.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	ownerID, err := r.rdb.HGet(ctx, r.metaKey(sessionID), "owner_id").Result()
	if err != nil {
		if err == redis.Nil {
			return errx.WrapRedis(redis.Nil)
		}
		return errx.WrapRedis(err)
	}

	now := time.Now().UTC()
	pipe := r.rdb.TxPipeline()
	pipe.RPush(ctx, r.turnsKey(sessionID), b)
	pipe.HSet(ctx, r.metaKey(sessionID), "updated_at", now.Format(time.RFC3339Nano))
	pipe.ZAdd(ctx, r.ownerKey(ownerID), redis.Z{Score: float64(now.UnixMilli()), Member: sessionID})
	if r.ttl > 0 {
		pipe.Expire(ctx, r.turnsKey(sessionID), r.ttl)
		pipe.Expire(ctx, r.metaKey(sessionID), r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to append turn")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisSessionRepository) RecentTurns(ctx context.Context, sessionID string, limit int) ([]model.Turn, error) {
	if limit <= 0 {
		return []model.Turn{}, nil
	}
	rows, err := r.rdb.LRange(ctx, r.turnsKey(sessionID), int64(-limit), -1).Result()
	if err != nil {
		if err == redis.Nil {
			return []model.Turn{}, nil
		}
		return nil, errx.WrapRedis(err)
	}
	return decodeTurns(rows)
}

func (r *RedisSessionRepository) TurnCount(ctx context.Context, sessionID string) (int, error) {
	n, err := r.rdb.LLen(ctx, r.turnsKey(sessionID)).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, errx.WrapRedis(err)
	}
	return int(n), nil
}

func (r *RedisSessionRepository) SetTitleOnce(ctx context.Context, sessionID, title string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.metaKey(sessionID)).Result()
	if err != nil {
		return false, errx.WrapRedis(err)
	}
	if n == 0 {
		return false, errx.WrapRedis(redis.Nil)
	}

	ok, err := r.rdb.HSetNX(ctx, r.metaKey(sessionID), "title_locked", "1").Result()
	if err != nil {
		return false, errx.WrapRedis(err)
	}
	if !ok {
		return false, nil
	}
	if err := r.rdb.HSet(ctx, r.metaKey(sessionID), "title", title).Err(); err != nil {
		return false, errx.WrapRedis(err)
	}
	return true, nil
}

func sessionFromMeta(meta map[string]string) *model.Session {
	s := &model.Session{
		ID:      meta["id"],
		Title:   meta["title"],
		OwnerID: meta["owner_id"],
	}
	s.CreatedAt = parseTime(meta["created_at"])
	s.UpdatedAt = parseTime(meta["updated_at"])
	return s
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func decodeTurns(rows []string) ([]model.Turn, error) {
	turns := make([]model.Turn, 0, len(rows))
	for i, row := range rows {
		var t model.Turn
		if err := sonic.UnmarshalString(row, &t); err != nil {
			return nil, fmt.Errorf("unmarshal turn at index %d: %w", i, err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

var _ model.SessionRepository = (*RedisSessionRepository)(nil)
