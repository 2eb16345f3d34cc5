package seed

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/sysu-ecnc-dev/shift-draw/backend/internal/allocation"
)

const (
	shiftTypeHeader      = "班次类型"
	requiredPeopleHeader = "人数"
)

type ShiftCreator interface {
	CreateAndAnnounce(ctx context.Context, shiftType string, requiredPeople int32) (*allocation.CreateResult, error)
}

// ImportShifts 从 CSV 中读取班次并逐个创建，表头必须包含 "班次类型" 与 "人数" 两列。
// 单行出错只记录日志并跳过，返回成功创建的数量
func ImportShifts(ctx context.Context, r io.Reader, creator ShiftCreator) (int, error) {
	reader := csv.NewReader(r)

	// 读取表头
	headers, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("读取表头失败: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(headers[i], "\ufeff"))
	}

	typeIdx := slices.Index(headers, shiftTypeHeader)
	peopleIdx := slices.Index(headers, requiredPeopleHeader)
	if typeIdx < 0 || peopleIdx < 0 {
		return 0, errors.New("没有找到班次类型列或人数列")
	}

	created := 0
	line := 1
	for {
		row, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return created, fmt.Errorf("读取文件失败: %w", err)
		}
		line++

		required, err := strconv.ParseInt(strings.TrimSpace(row[peopleIdx]), 10, 32)
		if err != nil {
			slog.Error("人数格式错误", "line", line, "value", row[peopleIdx])
			continue
		}

		result, err := creator.CreateAndAnnounce(ctx, row[typeIdx], int32(required))
		if err != nil {
			slog.Error("创建班次失败", "line", line, "error", err)
			continue
		}
		for _, warning := range result.Warnings {
			slog.Warn("创建班次时出现警告", "shift_id", result.Shift.ID, "warning", warning)
		}

		created++
	}

	return created, nil
}
