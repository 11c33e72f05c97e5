// Package session はリフレッシュトークンセッションのRedisストアを提供します。
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront_backend/internal/feature/auth/domain/entity"
	"storefront_backend/internal/feature/auth/usecase"

	"github.com/redis/go-redis/v9"
)

// SessionRedis implements usecase.SessionRepository using Redis.
//
// Keys:
//
//	<prefix>:<id>           session JSON, expires with the session
//	<prefix>:user:<userID>  sorted set of session ids scored by creation time
type SessionRedis struct {
	client *redis.Client
	prefix string
}

var _ usecase.SessionRepository = (*SessionRedis)(nil)

// NewSessionRedis creates a new SessionRedis instance.
func NewSessionRedis(client *redis.Client, prefix string) *SessionRedis {
	return &SessionRedis{client: client, prefix: prefix}
}

func (r *SessionRedis) sessionKey(id string) string {
	return fmt.Sprintf("%s:%s", r.prefix, id)
}

func (r *SessionRedis) userSessionsKey(userID uint) string {
	return fmt.Sprintf("%s:user:%d", r.prefix, userID)
}

// Create stores the session and indexes it under its user in one transaction.
func (r *SessionRedis) Create(ctx context.Context, s *entity.Session) error {
	ttl := s.RemainingTTL(time.Now())
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.sessionKey(s.ID), data, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	return r.client.ZAdd(ctx, r.userSessionsKey(s.UserID), redis.Z{
		Score:  float64(s.CreatedAt.UnixNano()),
		Member: s.ID,
	}).Err()
}

// FindByID retrieves a session by its ID. Revoked sessions are returned until they expire.
func (r *SessionRedis) FindByID(ctx context.Context, id string) (*entity.Session, error) {
	data, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, usecase.ErrSessionNotFound
		}
		return nil, err
	}

	var s entity.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}

// FindByUserID returns the user's active sessions, oldest first.
// Index entries whose session key has expired are pruned on the way.
func (r *SessionRedis) FindByUserID(ctx context.Context, userID uint) ([]*entity.Session, error) {
	key := r.userSessionsKey(userID)
	ids, err := r.client.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	var sessions []*entity.Session
	for _, id := range ids {
		s, err := r.FindByID(ctx, id)
		if errors.Is(err, usecase.ErrSessionNotFound) {
			r.client.ZRem(ctx, key, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if s.ActiveAt(time.Now()) {
			sessions = append(sessions, s)
		}
	}
	return sessions, nil
}

// maxRevokeAttempts bounds the WATCH retries of a contended Revoke.
const maxRevokeAttempts = 16

// Revoke marks an active session as revoked, keeping its remaining TTL.
// The key is WATCHed between the read and the write, so only one of several
// concurrent calls succeeds; the others see the revocation and return
// usecase.ErrSessionRevoked.
func (r *SessionRedis) Revoke(ctx context.Context, id string) error {
	key := r.sessionKey(id)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return usecase.ErrSessionNotFound
			}
			return err
		}
		var s entity.Session
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("failed to unmarshal session: %w", err)
		}
		if s.IsRevoked() {
			return usecase.ErrSessionRevoked
		}
		s.Revoke(time.Now())

		data, err = json.Marshal(&s)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, data, redis.SetArgs{KeepTTL: true, Mode: "XX"})
			return nil
		})
		return err
	}

	for range maxRevokeAttempts {
		err := r.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("revoke session %s: too many concurrent updates", id)
}

// RevokeAllByUserID revokes all sessions for a user.
func (r *SessionRedis) RevokeAllByUserID(ctx context.Context, userID uint) error {
	ids, err := r.client.ZRange(ctx, r.userSessionsKey(userID), 0, -1).Result()
	if err != nil {
		return err
	}
	for _, id := range ids {
		err := r.Revoke(ctx, id)
		if err != nil && !errors.Is(err, usecase.ErrSessionNotFound) && !errors.Is(err, usecase.ErrSessionRevoked) {
			return err
		}
	}
	return nil
}

// DeleteExpired prunes index entries whose session keys Redis has already expired.
// It returns the number of pruned entries.
func (r *SessionRedis) DeleteExpired(ctx context.Context) (int64, error) {
	var pruned int64
	iter := r.client.Scan(ctx, 0, r.prefix+":user:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ids, err := r.client.ZRange(ctx, key, 0, -1).Result()
		if err != nil {
			return pruned, err
		}
		for _, id := range ids {
			n, err := r.client.Exists(ctx, r.sessionKey(id)).Result()
			if err != nil {
				return pruned, err
			}
			if n == 0 {
				if err := r.client.ZRem(ctx, key, id).Err(); err != nil {
					return pruned, err
				}
				pruned++
			}
		}
	}
	return pruned, iter.Err()
}

// CountByUserID returns the number of active sessions for a user.
func (r *SessionRedis) CountByUserID(ctx context.Context, userID uint) (int64, error) {
	sessions, err := r.FindByUserID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return int64(len(sessions)), nil
}

// DeleteOldestByUserID deletes the user's oldest active session.
func (r *SessionRedis) DeleteOldestByUserID(ctx context.Context, userID uint) error {
	sessions, err := r.FindByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		return nil
	}
	oldest := sessions[0]

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.sessionKey(oldest.ID))
	pipe.ZRem(ctx, r.userSessionsKey(userID), oldest.ID)
	_, err = pipe.Exec(ctx)
	return err
}
