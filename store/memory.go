package store

import (
	"context"
	"slices"
	"sync"
)

// Memory는 프로세스 메모리에 레코드를 두는 Store다.
// 레코드를 인코딩된 바이트로 보관하므로 호출자가 넘긴 슬라이스와 메모리를 공유하지 않는다.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ Store = (*Memory)(nil)

// NewMemory는 빈 Memory 저장소를 만든다.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Put(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkUserID(rec.UserID); err != nil {
		return err
	}
	b, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[rec.UserID] = b
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(ctx context.Context, userID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.RLock()
	b, ok := m.data[userID]
	m.mu.RUnlock()
	if !ok {
		return Record{}, ErrNotFound
	}
	return decodeRecord(userID, b)
}

func (m *Memory) Delete(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.data, userID)
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	ids := make([]string, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	slices.Sort(ids)
	return ids, nil
}

func (m *Memory) Close() error { return nil }
