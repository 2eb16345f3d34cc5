// Package allocation 负责班次的生命周期：创建并公告班次、接收报名、抽签并冻结结果。
package allocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/selector"
)

type Store interface {
	CreateShift(ctx context.Context, shift *domain.Shift) error
	GetShiftByID(ctx context.Context, id int64) (*domain.Shift, error)
	GetAllShifts(ctx context.Context, filter domain.ShiftFilter) ([]*domain.Shift, error)
	InsertApplication(ctx context.Context, application *domain.Application) error
	GetApplicationsByShiftID(ctx context.Context, shiftID int64) ([]*domain.Application, error)
	GetAssignmentsByShiftID(ctx context.Context, shiftID int64) ([]*domain.Assignment, error)
	GetUserShiftHistory(ctx context.Context, userID string) ([]*domain.ShiftHistoryEntry, error)
	BeginResolution(ctx context.Context, shiftID int64) (domain.ResolutionTx, error)
}

type ProfileResolver interface {
	Resolve(ctx context.Context, userID string) (*domain.UserProfile, error)
}

type Dispatcher interface {
	AnnounceNewShift(ctx context.Context, shift *domain.Shift) error
	AnnounceResult(ctx context.Context, shift *domain.Shift, selected []*domain.Assignment) error
}

type Config struct {
	Store      Store
	Profiles   ProfileResolver
	Dispatcher Dispatcher
	Selector   *selector.Selector
	Metrics    metrics.Collector
	Logger     *slog.Logger

	PlaceholderDisplayName string
	ResolveTimeout         time.Duration
	DispatchTimeout        time.Duration
}

type Engine struct {
	store      Store
	profiles   ProfileResolver
	dispatcher Dispatcher
	selector   *selector.Selector
	metrics    metrics.Collector
	logger     *slog.Logger

	placeholder     string
	resolveTimeout  time.Duration
	dispatchTimeout time.Duration

	// shiftID -> 该班次的抽签锁，各班次之间互不影响。没有调用方持有时即被移除
	locks *xsync.Map[int64, *shiftLock]
}

type shiftLock struct {
	sync.Mutex
	refs int // 只在 locks.Compute 中读写
}

func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("allocation: store is required")
	}
	if cfg.Profiles == nil {
		return nil, errors.New("allocation: profile resolver is required")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("allocation: dispatcher is required")
	}

	e := &Engine{
		store:           cfg.Store,
		profiles:        cfg.Profiles,
		dispatcher:      cfg.Dispatcher,
		selector:        cfg.Selector,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
		placeholder:     cfg.PlaceholderDisplayName,
		resolveTimeout:  cfg.ResolveTimeout,
		dispatchTimeout: cfg.DispatchTimeout,
		locks:           xsync.NewMap[int64, *shiftLock](),
	}

	if e.selector == nil {
		e.selector = selector.New(0)
	}
	if e.metrics == nil {
		e.metrics = metrics.NewNop()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.placeholder == "" {
		e.placeholder = "未知用户"
	}
	if e.resolveTimeout <= 0 {
		e.resolveTimeout = 30 * time.Second
	}
	if e.dispatchTimeout <= 0 {
		e.dispatchTimeout = 10 * time.Second
	}

	return e, nil
}

type CreateResult struct {
	Shift    *domain.Shift
	Warnings []string
}

type ApplyResult struct {
	Application *domain.Application
	Warnings    []string
}

type ResolveResult struct {
	Shift    *domain.Shift
	Selected []*domain.Assignment
	Warnings []string
}

// CreateAndAnnounce 创建一个新的班次并向广播目标发送公告，公告失败不影响班次的创建
func (e *Engine) CreateAndAnnounce(ctx context.Context, shiftType string, requiredPeople int32) (*CreateResult, error) {
	shiftType = strings.TrimSpace(shiftType)
	if shiftType == "" {
		return nil, fmt.Errorf("%w: 班次类型不能为空", domain.ErrValidation)
	}
	if requiredPeople < 1 {
		return nil, fmt.Errorf("%w: 所需人数至少为 1", domain.ErrValidation)
	}

	shift := &domain.Shift{
		ShiftType:      shiftType,
		RequiredPeople: requiredPeople,
		Status:         domain.ShiftStatusOpen,
	}
	if err := e.store.CreateShift(ctx, shift); err != nil {
		return nil, err
	}

	result := &CreateResult{Shift: shift}

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.dispatchTimeout)
	defer cancel()

	if err := e.dispatcher.AnnounceNewShift(dctx, shift); err != nil {
		e.metrics.RecordDispatchFailure(domain.NotificationTypeNewShift)
		e.logger.Warn("无法发送新班次公告", slog.Int64("shift_id", shift.ID), slog.String("error", err.Error()))
		result.Warnings = append(result.Warnings, fmt.Errorf("%w: %w", domain.ErrDispatch, err).Error())
	}

	return result, nil
}

// SubmitApplication 为用户报名班次。获取用户资料失败时使用占位名称继续报名
func (e *Engine) SubmitApplication(ctx context.Context, shiftID int64, userID string) (*ApplyResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: 用户 ID 不能为空", domain.ErrValidation)
	}

	result := &ApplyResult{}

	displayName := e.placeholder
	profile, err := e.profiles.Resolve(ctx, userID)
	switch {
	case err != nil:
		e.metrics.RecordProfileLookupFailure()
		e.logger.Warn("无法获取用户资料，使用占位名称", slog.String("user_id", userID), slog.String("error", err.Error()))
		result.Warnings = append(result.Warnings, fmt.Errorf("%w: %w", domain.ErrProfileLookup, err).Error())
	case profile != nil && profile.DisplayName != "":
		displayName = profile.DisplayName
	}

	application := &domain.Application{
		ShiftID:     shiftID,
		UserID:      userID,
		DisplayName: displayName,
	}
	if err := e.store.InsertApplication(ctx, application); err != nil {
		e.metrics.RecordApplication(resultOf(err))
		return nil, err
	}

	e.metrics.RecordApplication(metrics.ResultSuccess)
	result.Application = application

	return result, nil
}

// ResolveShift 为班次抽签。同一个班次同一时间只会有一次抽签在进行，
// 抽签一旦开始就会执行到底，不受调用方取消的影响
func (e *Engine) ResolveShift(ctx context.Context, shiftID int64) (*ResolveResult, error) {
	start := time.Now()

	shift, selected, err := e.resolveExclusive(ctx, shiftID)
	if err != nil {
		e.metrics.RecordResolution(resultOf(err), time.Since(start).Seconds(), 0)
		return nil, err
	}

	e.metrics.RecordResolution(metrics.ResultSuccess, time.Since(start).Seconds(), len(selected))
	e.logger.Info("班次抽签完成", slog.Int64("shift_id", shift.ID), slog.Int("selected", len(selected)), slog.Int("required", int(shift.RequiredPeople)))

	result := &ResolveResult{
		Shift:    shift,
		Selected: selected,
	}

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.dispatchTimeout)
	defer cancel()

	// 结果已经持久化，通知失败只记录警告
	if err := e.dispatcher.AnnounceResult(dctx, shift, selected); err != nil {
		e.metrics.RecordDispatchFailure(domain.NotificationTypeShiftResult)
		e.logger.Warn("无法发送抽签结果通知", slog.Int64("shift_id", shift.ID), slog.String("error", err.Error()))
		result.Warnings = append(result.Warnings, fmt.Errorf("%w: %w", domain.ErrDispatch, err).Error())
	}

	return result, nil
}

func (e *Engine) resolveExclusive(ctx context.Context, shiftID int64) (*domain.Shift, []*domain.Assignment, error) {
	l := e.lockShift(shiftID)
	defer e.unlockShift(shiftID, l)

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.resolveTimeout)
	defer cancel()

	return e.resolve(rctx, shiftID)
}

func (e *Engine) lockShift(shiftID int64) *shiftLock {
	l, _ := e.locks.Compute(shiftID, func(l *shiftLock, loaded bool) (*shiftLock, xsync.ComputeOp) {
		if !loaded {
			l = &shiftLock{}
		}
		l.refs++
		return l, xsync.UpdateOp
	})
	l.Lock()

	return l
}

// unlockShift 释放抽签锁，最后一个持有者负责把它从 locks 中移除
func (e *Engine) unlockShift(shiftID int64, l *shiftLock) {
	l.Unlock()

	e.locks.Compute(shiftID, func(cur *shiftLock, loaded bool) (*shiftLock, xsync.ComputeOp) {
		if !loaded {
			return cur, xsync.CancelOp
		}
		cur.refs--
		if cur.refs == 0 {
			return cur, xsync.DeleteOp
		}
		return cur, xsync.UpdateOp
	})
}

func (e *Engine) resolve(ctx context.Context, shiftID int64) (*domain.Shift, []*domain.Assignment, error) {
	tx, err := e.store.BeginResolution(ctx, shiftID)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	shift := tx.Shift()
	if !shift.IsOpen() {
		return nil, nil, fmt.Errorf("%w: 班次 %d 已经完成抽签", domain.ErrInvalidState, shiftID)
	}

	applications, err := tx.Applications()
	if err != nil {
		return nil, nil, err
	}
	if len(applications) == 0 {
		return nil, nil, fmt.Errorf("%w: 班次 %d", domain.ErrInsufficientApplicants, shiftID)
	}

	picked, _ := selector.Select(e.selector, applications, int(shift.RequiredPeople))

	now := time.Now()
	assignments := make([]*domain.Assignment, 0, len(picked))
	for _, application := range picked {
		assignments = append(assignments, &domain.Assignment{
			ShiftID:     shift.ID,
			UserID:      application.UserID,
			DisplayName: application.DisplayName,
			AssignedAt:  now,
		})
	}

	if err := tx.InsertAssignments(assignments); err != nil {
		return nil, nil, err
	}
	if err := tx.MarkCompleted(); err != nil {
		return nil, nil, err
	}
	if err := tx.ClearApplications(); err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}

	shift.Status = domain.ShiftStatusCompleted

	return shift, assignments, nil
}

func (e *Engine) GetShift(ctx context.Context, id int64) (*domain.Shift, error) {
	return e.store.GetShiftByID(ctx, id)
}

func (e *Engine) ListShifts(ctx context.Context, filter domain.ShiftFilter) ([]*domain.Shift, error) {
	switch filter.Status {
	case "", domain.ShiftStatusOpen, domain.ShiftStatusCompleted:
	default:
		return nil, fmt.Errorf("%w: 未知的班次状态 %q", domain.ErrValidation, filter.Status)
	}

	return e.store.GetAllShifts(ctx, filter)
}

func (e *Engine) ListApplications(ctx context.Context, shiftID int64) ([]*domain.Application, error) {
	if _, err := e.store.GetShiftByID(ctx, shiftID); err != nil {
		return nil, err
	}

	return e.store.GetApplicationsByShiftID(ctx, shiftID)
}

func (e *Engine) ListAssignments(ctx context.Context, shiftID int64) ([]*domain.Assignment, error) {
	if _, err := e.store.GetShiftByID(ctx, shiftID); err != nil {
		return nil, err
	}

	return e.store.GetAssignmentsByShiftID(ctx, shiftID)
}

func (e *Engine) UserHistory(ctx context.Context, userID string) ([]*domain.ShiftHistoryEntry, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: 用户 ID 不能为空", domain.ErrValidation)
	}

	return e.store.GetUserShiftHistory(ctx, userID)
}

func resultOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrDuplicateApplication):
		return metrics.ResultDuplicate
	case errors.Is(err, domain.ErrInvalidState):
		return metrics.ResultInvalidState
	case errors.Is(err, domain.ErrNotFound):
		return metrics.ResultNotFound
	case errors.Is(err, domain.ErrInsufficientApplicants):
		return metrics.ResultInsufficient
	default:
		return metrics.ResultError
	}
}
