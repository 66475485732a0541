package store

import (
	"context"
	"strings"
	"time"
)

const sessionKeyPrefix = "tile:session:"

// Session 将 KV 限定到单个会话命名空间：tile:session:{id}:{key}
// 每次写入都会刷新 TTL，会话空闲超过 TTL 后数据自然过期
type Session struct {
	kv  KV
	id  string
	ttl time.Duration
}

func NewSession(kv KV, id string, ttl time.Duration) *Session {
	return &Session{kv: kv, id: id, ttl: ttl}
}

func (s *Session) ID() string { return s.id }

// Key 会话内键的完整名称
func (s *Session) Key(name string) string {
	return sessionKeyPrefix + s.id + ":" + name
}

func (s *Session) Get(ctx context.Context, key string) (string, error) {
	return s.kv.Get(ctx, s.Key(key))
}

func (s *Session) Set(ctx context.Context, key string, value string) error {
	return s.kv.Set(ctx, s.Key(key), value, s.ttl)
}

func (s *Session) Remove(ctx context.Context, key string) error {
	return s.kv.Del(ctx, s.Key(key))
}

// SessionStates 列出所有会话持久化的 tileState（session id -> 原始字符串）
func SessionStates(ctx context.Context, kv KV, stateKey string) (map[string]string, error) {
	keys, err := kv.ScanKeys(ctx, sessionKeyPrefix+"*:"+stateKey)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(keys))
	for _, key := range keys {
		id := strings.TrimSuffix(strings.TrimPrefix(key, sessionKeyPrefix), ":"+stateKey)
		if id == "" || strings.Contains(id, ":") {
			continue
		}
		v, err := kv.Get(ctx, key)
		if err != nil {
			continue
		}
		out[id] = v
	}
	return out, nil
}
