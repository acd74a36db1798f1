// Package presence tracks which users currently hold at least one open
// realtime connection. State lives in Redis so it survives a server
// restart no longer than the connections themselves do (keys expire).
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const connTTL = 24 * time.Hour

type Presence struct {
	Status   string `json:"status"` // "online" or "offline"
	LastSeen int64  `json:"last_seen"`
}

type Store struct {
	client *redis.Client
	prefix string
}

func NewStore(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) connKey(userID string) string {
	return fmt.Sprintf("%s:conn:%s", s.prefix, userID)
}

func (s *Store) presenceKey(userID string) string {
	return fmt.Sprintf("%s:presence:%s", s.prefix, userID)
}

// AddConnection registers one socket for the user and marks them online.
func (s *Store) AddConnection(ctx context.Context, userID, socketID string) error {
	if err := s.client.SAdd(ctx, s.connKey(userID), socketID).Err(); err != nil {
		return err
	}
	_ = s.client.Expire(ctx, s.connKey(userID), connTTL).Err()
	return s.set(ctx, userID, Presence{Status: "online", LastSeen: time.Now().Unix()})
}

// RemoveConnection drops one socket; the user goes offline when their last
// socket is gone.
func (s *Store) RemoveConnection(ctx context.Context, userID, socketID string) error {
	if err := s.client.SRem(ctx, s.connKey(userID), socketID).Err(); err != nil {
		return err
	}
	cnt, err := s.client.SCard(ctx, s.connKey(userID)).Result()
	if err != nil {
		return err
	}
	if cnt == 0 {
		return s.set(ctx, userID, Presence{Status: "offline", LastSeen: time.Now().Unix()})
	}
	return nil
}

func (s *Store) Get(ctx context.Context, userID string) (*Presence, error) {
	b, err := s.client.Get(ctx, s.presenceKey(userID)).Bytes()
	if err == redis.Nil {
		return &Presence{Status: "offline"}, nil
	}
	if err != nil {
		return nil, err
	}
	var p Presence
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) set(ctx context.Context, userID string, p Presence) error {
	b, _ := json.Marshal(p)
	return s.client.Set(ctx, s.presenceKey(userID), b, connTTL).Err()
}
