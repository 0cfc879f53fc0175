package persistence

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"factory-scheduler/internal/types"
)

// OrderStore 是订单仓库，按租户隔离
// 打开日志文件时，每次变更都追加一行完整的订单快照，重启后以最后一行为准
type OrderStore struct {
	mu     sync.RWMutex
	nextID int64
	orders map[int64]types.Order
	file   *os.File // 为 nil 时只保存在内存中
}

// NewOrderStore 创建一个只保存在内存中的订单仓库
func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[int64]types.Order)}
}

// OpenOrderStore 创建或打开订单日志并回放
func OpenOrderStore(path string) (*OrderStore, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	s := NewOrderStore()
	s.file = file

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var o types.Order
		if err := json.Unmarshal(scanner.Bytes(), &o); err != nil || o.ID == 0 {
			continue
		}
		s.orders[o.ID] = o
		s.nextID = max(s.nextID, o.ID)
	}
	if err := scanner.Err(); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("replay %s: %w", path, err)
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		_ = file.Close()
		return nil, err
	}
	return s, nil
}

// save 写入日志并更新内存，调用方必须持有写锁
func (s *OrderStore) save(o types.Order) error {
	if s.file != nil {
		data, err := json.Marshal(o)
		if err != nil {
			return err
		}
		if _, err := s.file.Write(append(data, '\n')); err != nil {
			return err
		}
		if err := s.file.Sync(); err != nil {
			return err
		}
	}
	s.orders[o.ID] = o
	return nil
}

// Create 分配订单 ID 并保存，返回保存后的副本
func (s *OrderStore) Create(_ context.Context, o types.Order) (types.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ID = s.nextID + 1
	if err := s.save(o); err != nil {
		return types.Order{}, fmt.Errorf("save order: %w", err)
	}
	s.nextID = o.ID
	return o, nil
}

// Get 返回订单，不存在或不属于该租户时返回 nil
func (s *OrderStore) Get(_ context.Context, tenantID string, id int64) (*types.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok || o.TenantID != tenantID {
		return nil, nil
	}
	return &o, nil
}

func (s *OrderStore) UpdateStatus(_ context.Context, tenantID string, id int64, status types.OrderStatus, isScheduled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.TenantID != tenantID {
		return fmt.Errorf("order %d of tenant %q does not exist", id, tenantID)
	}
	o.Status = status
	o.IsScheduled = isScheduled
	return s.save(o)
}

// Close 关闭日志文件
func (s *OrderStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}
