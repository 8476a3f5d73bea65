package service

import (
	"context"
	"errors"
	"sync"

	"github.com/Freeeeeet/timetutor/internal/docstore"
)

var errUnavailable = errors.New("store unavailable")

// flakyStore оборачивает хранилище в памяти и роняет выбранные записи
type flakyStore struct {
	*docstore.MemoryStore

	mu          sync.Mutex
	creates     int
	failCreates map[int]bool
	batches     int
	failBatchAt int // 1-based; 0 disables
	batchErr    error
	beforeBatch func()
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: docstore.NewMemoryStore()}
}

func (s *flakyStore) failCreatesAt(calls ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates = 0
	s.failCreates = make(map[int]bool, len(calls))
	for _, c := range calls {
		s.failCreates[c] = true
	}
}

func (s *flakyStore) failBatch(at int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = 0
	s.failBatchAt = at
	s.batchErr = err
}

func (s *flakyStore) Create(ctx context.Context, collection string, doc docstore.Document) (string, error) {
	s.mu.Lock()
	s.creates++
	fail := s.failCreates[s.creates]
	s.mu.Unlock()
	if fail {
		return "", errUnavailable
	}
	return s.MemoryStore.Create(ctx, collection, doc)
}

// onNextBatch вызывает fn один раз перед следующей пачкой;
// записи внутри fn его повторно не вызывают
func (s *flakyStore) onNextBatch(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeBatch = fn
}

func (s *flakyStore) Batch(ctx context.Context, ops []docstore.Op) error {
	s.mu.Lock()
	hook := s.beforeBatch
	s.beforeBatch = nil
	s.mu.Unlock()
	if hook != nil {
		hook()
	}

	s.mu.Lock()
	s.batches++
	fail := s.failBatchAt > 0 && s.batches >= s.failBatchAt
	err := s.batchErr
	s.mu.Unlock()
	if fail {
		return err
	}
	return s.MemoryStore.Batch(ctx, ops)
}

type sentNotification struct {
	Target, Title, Message string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(ctx context.Context, target, title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{target, title, message})
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}
