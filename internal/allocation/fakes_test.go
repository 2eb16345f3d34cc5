package allocation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/domain"
)

// ── 内存版 Store ──
//
// 每个班次有一把 "行锁"：BeginResolution 持有它直到 Commit/Rollback，
// InsertApplication 在插入时短暂持有它，模拟数据库中的 FOR UPDATE / FOR SHARE。

type memStore struct {
	mu          sync.Mutex
	nextShiftID int64
	nextAppID   int64
	shifts      map[int64]*domain.Shift
	apps        map[int64][]*domain.Application
	assignments map[int64][]*domain.Assignment
	rowLocks    map[int64]*sync.Mutex

	failInsertAssignments error
	resolutionDelay       time.Duration
}

func newMemStore() *memStore {
	return &memStore{
		shifts:      make(map[int64]*domain.Shift),
		apps:        make(map[int64][]*domain.Application),
		assignments: make(map[int64][]*domain.Assignment),
		rowLocks:    make(map[int64]*sync.Mutex),
	}
}

func (m *memStore) rowLock(id int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.rowLocks[id]
	if !ok {
		l = &sync.Mutex{}
		m.rowLocks[id] = l
	}
	return l
}

func (m *memStore) CreateShift(_ context.Context, shift *domain.Shift) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextShiftID++
	shift.ID = m.nextShiftID
	shift.Status = domain.ShiftStatusOpen
	shift.CreatedAt = time.Now()

	stored := *shift
	m.shifts[shift.ID] = &stored
	return nil
}

func (m *memStore) GetShiftByID(_ context.Context, id int64) (*domain.Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.shifts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrNotFound, id)
	}
	copied := *s
	return &copied, nil
}

func (m *memStore) GetAllShifts(_ context.Context, filter domain.ShiftFilter) ([]*domain.Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := []*domain.Shift{}
	for id := m.nextShiftID; id > 0; id-- {
		s, ok := m.shifts[id]
		if !ok {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		copied := *s
		if filter.WithApplications {
			copied.Applications = append([]*domain.Application{}, m.apps[id]...)
			count := int32(len(copied.Applications))
			copied.ApplicantCount = &count
		}
		result = append(result, &copied)
	}
	return result, nil
}

func (m *memStore) InsertApplication(_ context.Context, application *domain.Application) error {
	l := m.rowLock(application.ShiftID)
	l.Lock()
	defer l.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	shift, ok := m.shifts[application.ShiftID]
	if !ok {
		return fmt.Errorf("%w: %d", domain.ErrNotFound, application.ShiftID)
	}
	if !shift.IsOpen() {
		return fmt.Errorf("%w: 班次 %d 已经完成抽签", domain.ErrInvalidState, application.ShiftID)
	}
	for _, existing := range m.apps[application.ShiftID] {
		if existing.UserID == application.UserID {
			return &domain.DuplicateApplicationError{
				ShiftID:   existing.ShiftID,
				UserID:    existing.UserID,
				AppliedAt: existing.AppliedAt,
			}
		}
	}

	m.nextAppID++
	application.ID = m.nextAppID
	application.AppliedAt = time.Now()

	stored := *application
	m.apps[application.ShiftID] = append(m.apps[application.ShiftID], &stored)
	return nil
}

func (m *memStore) GetApplicationsByShiftID(_ context.Context, shiftID int64) ([]*domain.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]*domain.Application{}, m.apps[shiftID]...), nil
}

func (m *memStore) GetAssignmentsByShiftID(_ context.Context, shiftID int64) ([]*domain.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]*domain.Assignment{}, m.assignments[shiftID]...), nil
}

func (m *memStore) GetUserShiftHistory(_ context.Context, userID string) ([]*domain.ShiftHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := []*domain.ShiftHistoryEntry{}
	for shiftID, assignments := range m.assignments {
		for _, a := range assignments {
			if a.UserID != userID {
				continue
			}
			s := m.shifts[shiftID]
			history = append(history, &domain.ShiftHistoryEntry{
				ID:             s.ID,
				ShiftType:      s.ShiftType,
				RequiredPeople: s.RequiredPeople,
				AssignedAt:     a.AssignedAt,
			})
		}
	}
	return history, nil
}

func (m *memStore) BeginResolution(_ context.Context, shiftID int64) (domain.ResolutionTx, error) {
	l := m.rowLock(shiftID)
	l.Lock()

	m.mu.Lock()
	shift, ok := m.shifts[shiftID]
	var copied domain.Shift
	if ok {
		copied = *shift
	}
	m.mu.Unlock()

	if !ok {
		l.Unlock()
		return nil, fmt.Errorf("%w: %d", domain.ErrNotFound, shiftID)
	}

	return &memResolution{store: m, lock: l, shift: &copied}, nil
}

func (m *memStore) countApps(shiftID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.apps[shiftID])
}

func (m *memStore) status(shiftID int64) domain.ShiftStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shifts[shiftID].Status
}

type memResolution struct {
	store *memStore
	lock  *sync.Mutex
	shift *domain.Shift
	done  bool

	staged    []*domain.Assignment
	completed bool
	cleared   bool
}

func (r *memResolution) Shift() *domain.Shift {
	return r.shift
}

func (r *memResolution) Applications() ([]*domain.Application, error) {
	return r.store.GetApplicationsByShiftID(context.Background(), r.shift.ID)
}

func (r *memResolution) InsertAssignments(assignments []*domain.Assignment) error {
	if r.store.failInsertAssignments != nil {
		return r.store.failInsertAssignments
	}
	if r.store.resolutionDelay > 0 {
		time.Sleep(r.store.resolutionDelay)
	}
	r.staged = append(r.staged, assignments...)
	return nil
}

func (r *memResolution) MarkCompleted() error {
	if !r.shift.IsOpen() {
		return fmt.Errorf("%w: 班次 %d 已经完成抽签", domain.ErrInvalidState, r.shift.ID)
	}
	r.completed = true
	return nil
}

func (r *memResolution) ClearApplications() error {
	r.cleared = true
	return nil
}

func (r *memResolution) Commit() error {
	if r.done {
		return errors.New("transaction already finished")
	}

	r.store.mu.Lock()
	if r.completed {
		r.store.shifts[r.shift.ID].Status = domain.ShiftStatusCompleted
	}
	if r.cleared {
		delete(r.store.apps, r.shift.ID)
	}
	r.store.assignments[r.shift.ID] = append(r.store.assignments[r.shift.ID], r.staged...)
	r.store.mu.Unlock()

	r.done = true
	r.lock.Unlock()
	return nil
}

func (r *memResolution) Rollback() error {
	if r.done {
		return nil
	}
	r.done = true
	r.lock.Unlock()
	return nil
}

// ── 其他协作方 ──

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]*domain.UserProfile
	err      error
	calls    int
}

func (f *fakeProfiles) Resolve(_ context.Context, userID string) (*domain.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.profiles[userID]; ok {
		return p, nil
	}
	return &domain.UserProfile{UserID: userID, DisplayName: "用户" + userID}, nil
}

type resultAnnouncement struct {
	shift    *domain.Shift
	selected []*domain.Assignment
}

type fakeDispatcher struct {
	mu        sync.Mutex
	newShifts []*domain.Shift
	results   []resultAnnouncement
	err       error

	// 不为 nil 时 AnnounceResult 会等到它被关闭
	block    chan struct{}
	deadline time.Time
}

func (f *fakeDispatcher) AnnounceNewShift(_ context.Context, shift *domain.Shift) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	f.newShifts = append(f.newShifts, shift)
	return nil
}

func (f *fakeDispatcher) AnnounceResult(ctx context.Context, shift *domain.Shift, selected []*domain.Assignment) error {
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.deadline, _ = ctx.Deadline()

	if f.err != nil {
		return f.err
	}
	f.results = append(f.results, resultAnnouncement{shift: shift, selected: selected})
	return nil
}

func (f *fakeDispatcher) lastDeadline() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deadline
}

func (f *fakeDispatcher) resultCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.results)
}

type countingMetrics struct {
	mu                    sync.Mutex
	applications          map[string]int
	resolutions           map[string]int
	profileLookupFailures int
	dispatchFailures      map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		applications:     map[string]int{},
		resolutions:      map[string]int{},
		dispatchFailures: map[string]int{},
	}
}

func (c *countingMetrics) RecordApplication(result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applications[result]++
}

func (c *countingMetrics) RecordResolution(result string, _ float64, _ int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolutions[result]++
}

func (c *countingMetrics) RecordProfileLookupFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profileLookupFailures++
}

func (c *countingMetrics) RecordDispatchFailure(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dispatchFailures[kind]++
}
