// Package memory is a process-local MessageRepository for the standalone
// binary and tests. Transact holds the write lock for the whole callback and
// undoes its writes when the callback fails.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang-sms-gateway/internal/domain"
	"golang-sms-gateway/internal/ports"

	"github.com/google/uuid"
)

type row struct {
	msg domain.Message
	seq int64 // insertion order, breaks timestamp ties
}

type store struct {
	rows map[uuid.UUID]row
	seq  int64
}

// Repository implements ports.MessageRepository in memory.
type Repository struct {
	mu sync.RWMutex
	st store
}

func New() *Repository {
	return &Repository{st: store{rows: make(map[uuid.UUID]row)}}
}

func (r *Repository) Save(_ context.Context, msg domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st.save(msg)
}

func (r *Repository) Update(_ context.Context, msg domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.st.update(msg)
	return err
}

func (r *Repository) FindByID(_ context.Context, id uuid.UUID) (domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.st.find(id)
}

func (r *Repository) ListByUser(_ context.Context, phone string, status *domain.Status, page domain.PageRequest) (domain.MessagePage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.st.listByUser(phone, status, page), nil
}

func (r *Repository) ListFailed(_ context.Context, page domain.PageRequest) (domain.MessagePage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.st.listFailed(page), nil
}

func (r *Repository) CountByStatus(_ context.Context) (domain.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.st.count(), nil
}

func (r *Repository) ListStalePending(_ context.Context, olderThan time.Time, limit int) ([]domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.st.stalePending(olderThan, limit), nil
}

func (r *Repository) Transact(ctx context.Context, fn func(ctx context.Context, tx ports.MessageRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &txRepo{st: &r.st}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// txRepo runs against the store while the parent holds the write lock.
type txRepo struct {
	st   *store
	undo []func()
}

func (t *txRepo) Save(_ context.Context, msg domain.Message) error {
	if err := t.st.save(msg); err != nil {
		return err
	}
	t.undo = append(t.undo, func() { delete(t.st.rows, msg.ID) })
	return nil
}

func (t *txRepo) Update(_ context.Context, msg domain.Message) error {
	prev, err := t.st.update(msg)
	if err != nil {
		return err
	}
	t.undo = append(t.undo, func() { t.st.rows[msg.ID] = prev })
	return nil
}

func (t *txRepo) FindByID(_ context.Context, id uuid.UUID) (domain.Message, error) {
	return t.st.find(id)
}

func (t *txRepo) ListByUser(_ context.Context, phone string, status *domain.Status, page domain.PageRequest) (domain.MessagePage, error) {
	return t.st.listByUser(phone, status, page), nil
}

func (t *txRepo) ListFailed(_ context.Context, page domain.PageRequest) (domain.MessagePage, error) {
	return t.st.listFailed(page), nil
}

func (t *txRepo) CountByStatus(_ context.Context) (domain.Stats, error) {
	return t.st.count(), nil
}

func (t *txRepo) ListStalePending(_ context.Context, olderThan time.Time, limit int) ([]domain.Message, error) {
	return t.st.stalePending(olderThan, limit), nil
}

func (t *txRepo) Transact(ctx context.Context, fn func(ctx context.Context, tx ports.MessageRepository) error) error {
	return fn(ctx, t)
}

func (t *txRepo) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (s *store) save(msg domain.Message) error {
	if _, ok := s.rows[msg.ID]; ok {
		return fmt.Errorf("message %s already exists", msg.ID)
	}
	s.seq++
	s.rows[msg.ID] = row{msg: msg, seq: s.seq}
	return nil
}

func (s *store) update(msg domain.Message) (row, error) {
	prev, ok := s.rows[msg.ID]
	if !ok {
		return row{}, domain.ErrMessageNotFound
	}
	next := prev
	next.msg.Status = msg.Status
	next.msg.FailureReason = msg.FailureReason
	next.msg.UpdatedAt = msg.UpdatedAt
	s.rows[msg.ID] = next
	return prev, nil
}

func (s *store) find(id uuid.UUID) (domain.Message, error) {
	rw, ok := s.rows[id]
	if !ok {
		return domain.Message{}, domain.ErrMessageNotFound
	}
	return rw.msg, nil
}

func (s *store) listByUser(phone string, status *domain.Status, page domain.PageRequest) domain.MessagePage {
	matched := s.filter(func(m domain.Message) bool {
		if m.Sender != phone && m.Recipient != phone {
			return false
		}
		return status == nil || m.Status == *status
	})
	sortDesc(matched, func(m domain.Message) time.Time { return m.CreatedAt })
	return paginate(matched, page)
}

func (s *store) listFailed(page domain.PageRequest) domain.MessagePage {
	matched := s.filter(func(m domain.Message) bool { return m.Status == domain.StatusFailed })
	sortDesc(matched, func(m domain.Message) time.Time { return m.UpdatedAt })
	return paginate(matched, page)
}

func (s *store) count() domain.Stats {
	var st domain.Stats
	for _, rw := range s.rows {
		st.Total++
		switch rw.msg.Status {
		case domain.StatusPending:
			st.Pending++
		case domain.StatusSent:
			st.Sent++
		case domain.StatusFailed:
			st.Failed++
		}
	}
	return st
}

func (s *store) stalePending(olderThan time.Time, limit int) []domain.Message {
	matched := s.filter(func(m domain.Message) bool {
		return m.Status == domain.StatusPending && m.CreatedAt.Before(olderThan)
	})
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].msg.CreatedAt.Equal(matched[j].msg.CreatedAt) {
			return matched[i].msg.CreatedAt.Before(matched[j].msg.CreatedAt)
		}
		return matched[i].seq < matched[j].seq
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return messages(matched)
}

func (s *store) filter(keep func(domain.Message) bool) []row {
	var out []row
	for _, rw := range s.rows {
		if keep(rw.msg) {
			out = append(out, rw)
		}
	}
	return out
}

func sortDesc(rows []row, key func(domain.Message) time.Time) {
	sort.Slice(rows, func(i, j int) bool {
		ki, kj := key(rows[i].msg), key(rows[j].msg)
		if !ki.Equal(kj) {
			return ki.After(kj)
		}
		return rows[i].seq > rows[j].seq
	})
}

func paginate(rows []row, page domain.PageRequest) domain.MessagePage {
	res := domain.MessagePage{Total: int64(len(rows)), PageRequest: page, Messages: []domain.Message{}}
	start := page.Offset()
	if start >= len(rows) {
		return res
	}
	end := start + page.Size
	if end > len(rows) {
		end = len(rows)
	}
	res.Messages = messages(rows[start:end])
	return res
}

func messages(rows []row) []domain.Message {
	out := make([]domain.Message, 0, len(rows))
	for _, rw := range rows {
		out = append(out, rw.msg)
	}
	return out
}
