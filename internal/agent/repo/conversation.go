package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/advisor-core/server/internal/agent/model"
	errx "github.com/advisor-core/server/internal/core/error"
	logx "github.com/advisor-core/server/pkg/logger"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
)

type RedisConversationRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisConversationRepository(rdb redis.Cmdable, ttl time.Duration) *RedisConversationRepository {
	return &RedisConversationRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisConversationRepository) conversationKey(threadID string) string {
	return fmt.Sprintf("thread:%s:messages", threadID)
}

func (r *RedisConversationRepository) checkpointKey(threadID string) string {
	return fmt.Sprintf("thread:%s:checkpoint", threadID)
}

func (r *RedisConversationRepository) meetingKey(threadID string) string {
	return fmt.Sprintf("thread:%s:meetings", threadID)
}

const presentationURLKey = "presentation:urls"

func (r *RedisConversationRepository) AddMessage(ctx context.Context, threadID string, message *schema.Message) error {
	b, err := json.Marshal(message)
	if err != nil {
		logx.Error().Err(err).Str("threadID", threadID).Msg("failed to marshal message")
		return fmt.Errorf("marshal message: %w", err)
	}
	key := r.conversationKey(threadID)

	// append message
	if err := r.rdb.RPush(ctx, key, b).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push message to redis")
		return errx.WrapRedis(err)
	}
	return r.touch(ctx, key)
}

// touch extends the TTL on a thread key so active conversations survive.
func (r *RedisConversationRepository) touch(ctx context.Context, key string) error {
	if r.ttl <= 0 {
		return nil
	}
	if ok, err := r.rdb.Expire(ctx, key, r.ttl).Result(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to set expire")
		return errx.WrapRedis(err)
	} else if !ok {
		logx.Warn().Str("key", key).Dur("ttl", r.ttl).Msg("failed to set TTL on thread key")
	}
	return nil
}

func (r *RedisConversationRepository) LoadHistory(ctx context.Context, threadID string) (*model.ConversationHistory, error) {
	key := r.conversationKey(threadID)

	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return &model.ConversationHistory{ThreadID: threadID, Messages: []*schema.Message{}}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load conversation history from redis")
		return nil, errx.WrapRedis(err)
	}

	msgs := make([]*schema.Message, 0, len(rows))
	for i, s := range rows {
		var m schema.Message
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			logx.Error().Err(err).Str("threadID", threadID).Int("index", i).Msg("failed to unmarshal message")
			return nil, fmt.Errorf("unmarshal message at index %d: %w", i, err)
		}
		msgs = append(msgs, &m)
	}
	return &model.ConversationHistory{ThreadID: threadID, Messages: msgs}, nil
}

func (r *RedisConversationRepository) ClearHistory(ctx context.Context, threadID string) error {
	if err := r.rdb.Del(ctx, r.conversationKey(threadID), r.checkpointKey(threadID)).Err(); err != nil {
		logx.Error().Err(err).Str("threadID", threadID).Msg("failed to delete conversation history from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisConversationRepository) GetMessageCount(ctx context.Context, threadID string) (int, error) {
	key := r.conversationKey(threadID)
	n, err := r.rdb.LLen(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to get message count from redis")
		return 0, errx.WrapRedis(err)
	}
	return int(n), nil
}

func (r *RedisConversationRepository) SaveCheckpoint(ctx context.Context, threadID string, cp model.Checkpoint) error {
	b, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	key := r.checkpointKey(threadID)
	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to write checkpoint to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisConversationRepository) LoadCheckpoint(ctx context.Context, threadID string) (*model.Checkpoint, error) {
	key := r.checkpointKey(threadID)
	raw, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load checkpoint from redis")
		return nil, errx.WrapRedis(err)
	}
	var cp model.Checkpoint
	if err := json.Unmarshal([]byte(raw), &cp); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

func (r *RedisConversationRepository) SaveMeeting(ctx context.Context, m model.Meeting) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal meeting: %w", err)
	}
	key := r.meetingKey(m.ThreadID)
	if err := r.rdb.RPush(ctx, key, b).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push meeting to redis")
		return errx.WrapRedis(err)
	}
	return r.touch(ctx, key)
}

func (r *RedisConversationRepository) RegisterPresentationURL(ctx context.Context, urlType, url string) error {
	if err := r.rdb.HSet(ctx, presentationURLKey, urlType, url).Err(); err != nil {
		logx.Error().Err(err).Str("urlType", urlType).Msg("failed to register presentation url")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisConversationRepository) LookupPresentationURL(ctx context.Context, urlType string) (string, error) {
	url, err := r.rdb.HGet(ctx, presentationURLKey, urlType).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		logx.Error().Err(err).Str("urlType", urlType).Msg("failed to look up presentation url")
		return "", errx.WrapRedis(err)
	}
	return url, nil
}

var (
	_ model.ConversationRepository    = (*RedisConversationRepository)(nil)
	_ model.CheckpointRepository      = (*RedisConversationRepository)(nil)
	_ model.MeetingRepository         = (*RedisConversationRepository)(nil)
	_ model.PresentationURLRepository = (*RedisConversationRepository)(nil)
)
