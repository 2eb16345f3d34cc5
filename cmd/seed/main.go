package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/allocation"
	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/config"
	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/domain"
	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/repository"
	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/seed"
	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/selector"
	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// seedProfiles 为随机生成的用户提供资料，不会访问 LINE
type seedProfiles struct {
	mu    sync.Mutex
	names map[string]string
}

func (p *seedProfiles) Resolve(_ context.Context, userID string) (*domain.UserProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return &domain.UserProfile{UserID: userID, DisplayName: p.names[userID]}, nil
}

// logDispatcher 只把公告写入日志，避免测试数据被推送到真实的群组
type logDispatcher struct {
	logger *slog.Logger
}

func (d logDispatcher) AnnounceNewShift(_ context.Context, shift *domain.Shift) error {
	d.logger.Info("新班次", slog.Int64("shift_id", shift.ID), slog.String("shift_type", shift.ShiftType), slog.Int("required", int(shift.RequiredPeople)))
	return nil
}

func (d logDispatcher) AnnounceResult(_ context.Context, shift *domain.Shift, selected []*domain.Assignment) error {
	for _, a := range selected {
		d.logger.Info("抽中", slog.Int64("shift_id", shift.ID), slog.String("user_id", a.UserID), slog.String("display_name", a.DisplayName))
	}
	return nil
}

func main() {
	var op int
	var n int
	var shiftID int64
	var file string

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机班次, 2: 为班次插入随机报名, 3: 为班次抽签, 4: 从 CSV 导入班次)")
	flag.IntVar(&n, "n", 0, "要插入的记录数量，报名数量默认使用配置中的 SEED_APPLICANT_COUNT")
	flag.Int64Var(&shiftID, "shift-id", 0, "操作的班次 ID")
	flag.StringVar(&file, "file", "", "导入班次的 CSV 文件路径")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	// 创建 repository
	repo := repository.NewRepository(cfg, dbpool)

	profiles := &seedProfiles{names: make(map[string]string)}
	engine, err := allocation.New(allocation.Config{
		Store:                  repo,
		Profiles:               profiles,
		Dispatcher:             logDispatcher{logger: logger},
		Selector:               selector.New(cfg.Allocation.RandomSeed),
		Logger:                 logger,
		PlaceholderDisplayName: cfg.Allocation.PlaceholderDisplayName,
	})
	if err != nil {
		logger.Error("无法创建抽签引擎", "error", err)
		return
	}

	bg := context.Background()

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		if n <= 0 {
			n = 5
		}

		cnt := 0
		for i := 0; i < n; i++ {
			if _, err := engine.CreateAndAnnounce(bg, utils.GenerateRandomShiftType(), utils.GenerateRandomRequiredPeople()); err != nil {
				slog.Error("无法插入班次", slog.String("error", err.Error()))
				continue
			}
			cnt++
		}

		slog.Info("插入班次成功", slog.Int("count", cnt))
	case 2:
		if shiftID <= 0 {
			slog.Error("请输入合法的班次 ID")
			return
		}
		if n <= 0 {
			n = cfg.Seed.ApplicantCount
		}

		cnt := 0
		for i := 0; i < n; i++ {
			name := utils.GenerateRandomChineseName()
			userID := utils.GenerateUserIDFromChineseName(name)

			profiles.mu.Lock()
			profiles.names[userID] = name
			profiles.mu.Unlock()

			if _, err := engine.SubmitApplication(bg, shiftID, userID); err != nil {
				if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidState) {
					slog.Error("无法为该班次报名", slog.Int64("shift_id", shiftID), slog.String("error", err.Error()))
					return
				}
				slog.Error("无法插入报名", slog.String("error", err.Error()))
				continue
			}
			cnt++
		}

		slog.Info("插入报名成功", slog.Int("count", cnt))
	case 3:
		if shiftID <= 0 {
			slog.Error("请输入合法的班次 ID")
			return
		}

		result, err := engine.ResolveShift(bg, shiftID)
		if err != nil {
			slog.Error("抽签失败", slog.Int64("shift_id", shiftID), slog.String("error", err.Error()))
			return
		}

		slog.Info("抽签成功", slog.Int64("shift_id", shiftID), slog.Int("selected", len(result.Selected)))
	case 4:
		f, err := os.Open(file)
		if err != nil {
			slog.Error("打开文件失败", "error", err)
			return
		}
		defer f.Close()

		cnt, err := seed.ImportShifts(bg, f, engine)
		if err != nil {
			slog.Error("导入班次失败", "error", err)
		}

		slog.Info("导入班次完成", slog.Int("count", cnt))
	default:
		slog.Error("指定的操作非法")
	}
}
