package quota

import (
	"context"
	"errors"
	"sync"
	"time"

	"content-forge-api/internal/domain/entity"
	"content-forge-api/internal/domain/repository"
)

// memStore 内存版共享存储：事务整体串行，失败时回滚到快照
type memStore struct {
	txMu   sync.Mutex
	dataMu sync.Mutex

	users  map[string]entity.User
	models map[string]entity.ModelRateLimit

	// transientFailures 指定操作剩余的瞬时失败次数
	transientFailures map[string]int
	calls             map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		users:             map[string]entity.User{},
		models:            map[string]entity.ModelRateLimit{},
		transientFailures: map[string]int{},
		calls:             map[string]int{},
	}
}

var errConnReset = errors.New("connection reset by peer")

func (s *memStore) hit(op string) error {
	s.calls[op]++
	if s.transientFailures[op] > 0 {
		s.transientFailures[op]--
		return repository.MarkTransient(errConnReset)
	}
	return nil
}

func (s *memStore) callCount(op string) int {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	return s.calls[op]
}

func (s *memStore) putUser(u entity.User) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	s.users[u.ID] = u
}

func (s *memStore) user(id string) (entity.User, bool) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	u, ok := s.users[id]
	return u, ok
}

func (s *memStore) putModel(m entity.ModelRateLimit) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	s.models[m.Model] = m
}

func (s *memStore) model(name string) (entity.ModelRateLimit, bool) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	m, ok := s.models[name]
	return m, ok
}

func (s *memStore) failTransient(op string, n int) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	s.transientFailures[op] = n
}

// WithTransaction 实现 repository.Transactor
func (s *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.dataMu.Lock()
	if err := s.hit("tx"); err != nil {
		s.dataMu.Unlock()
		return err
	}
	users := make(map[string]entity.User, len(s.users))
	for k, v := range s.users {
		users[k] = v
	}
	models := make(map[string]entity.ModelRateLimit, len(s.models))
	for k, v := range s.models {
		models[k] = v
	}
	s.dataMu.Unlock()

	if err := fn(context.WithValue(ctx, repository.TxKey{}, s)); err != nil {
		s.dataMu.Lock()
		s.users, s.models = users, models
		s.dataMu.Unlock()
		return err
	}
	return nil
}

type memUserRepo struct{ s *memStore }

func (r memUserRepo) GetByID(_ context.Context, id string) (*entity.User, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	if err := r.s.hit("get_user"); err != nil {
		return nil, err
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r memUserRepo) GetForUpdate(ctx context.Context, id string) (*entity.User, error) {
	if ctx.Value(repository.TxKey{}) == nil {
		return nil, errors.New("GetForUpdate outside transaction")
	}
	return r.GetByID(ctx, id)
}

func (r memUserRepo) Create(_ context.Context, u *entity.User) error {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	if _, ok := r.s.users[u.ID]; !ok {
		r.s.users[u.ID] = *u
	}
	return nil
}

func (r memUserRepo) Save(_ context.Context, u *entity.User) error {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	if err := r.s.hit("save_user"); err != nil {
		return err
	}
	r.s.users[u.ID] = *u
	return nil
}

type memModelRepo struct{ s *memStore }

func (r memModelRepo) GetByModel(_ context.Context, model string) (*entity.ModelRateLimit, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	if err := r.s.hit("get_model"); err != nil {
		return nil, err
	}
	m, ok := r.s.models[model]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r memModelRepo) GetForUpdate(ctx context.Context, model string) (*entity.ModelRateLimit, error) {
	if ctx.Value(repository.TxKey{}) == nil {
		return nil, errors.New("GetForUpdate outside transaction")
	}
	return r.GetByModel(ctx, model)
}

func (r memModelRepo) ListByModels(_ context.Context, models []string) ([]*entity.ModelRateLimit, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	if err := r.s.hit("list_models"); err != nil {
		return nil, err
	}
	out := make([]*entity.ModelRateLimit, 0, len(models))
	for _, name := range models {
		if m, ok := r.s.models[name]; ok {
			m := m
			out = append(out, &m)
		}
	}
	return out, nil
}

func (r memModelRepo) Save(_ context.Context, m *entity.ModelRateLimit) error {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	r.s.models[m.Model] = *m
	return nil
}

func (r memModelRepo) Provision(_ context.Context, model string, rpm, tpm, rpd int) error {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	m := r.s.models[model]
	m.Model, m.RPMLimit, m.TPMLimit, m.RPDLimit = model, rpm, tpm, rpd
	r.s.models[model] = m
	return nil
}

// noSleepRetry 重试不真正等待，记录退避时长
func noSleepRetry(slept *[]time.Duration) RetryPolicy {
	p := DefaultRetryPolicy(3, time.Second)
	var mu sync.Mutex
	p.Sleep = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		if slept != nil {
			*slept = append(*slept, d)
		}
		return nil
	}
	return p
}

var testNow = time.Date(2025, 3, 14, 15, 0, 0, 0, time.Local)

func newTestLedger(s *memStore, daily DailyPolicy) *Ledger {
	if daily == nil {
		daily, _ = NewDailyPolicy(DailyCalendarDay, 0, time.Local)
	}
	return NewLedger(s, memUserRepo{s}, memModelRepo{s}, daily,
		WithClock(func() time.Time { return testNow }),
		WithRetryPolicy(noSleepRetry(nil)),
	)
}

func ptrTime(t time.Time) *time.Time { return &t }

const testModel = "gemini-2.0-flash"

func seedModel(s *memStore) {
	s.putModel(entity.ModelRateLimit{
		Model:             testModel,
		RPMLimit:          15,
		TPMLimit:          1000000,
		RPDLimit:          1500,
		MinuteWindowStart: testNow,
		DayWindowStart:    testNow,
	})
}
