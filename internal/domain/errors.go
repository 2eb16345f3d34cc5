package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation             = errors.New("参数不合法")
	ErrNotFound               = errors.New("班次不存在")
	ErrInvalidState           = errors.New("班次状态不允许此操作")
	ErrDuplicateApplication   = errors.New("已经报名过该班次")
	ErrInsufficientApplicants = errors.New("该班次还没有人报名")
	ErrProfileLookup          = errors.New("无法获取用户资料")
	ErrDispatch               = errors.New("通知发送失败")
)

// DuplicateApplicationError 携带首次报名的时间，方便告知用户
type DuplicateApplicationError struct {
	ShiftID   int64
	UserID    string
	AppliedAt time.Time
}

func (e *DuplicateApplicationError) Error() string {
	return fmt.Sprintf("%s（首次报名时间 %s）", ErrDuplicateApplication.Error(), e.AppliedAt.Format(time.DateTime))
}

func (e *DuplicateApplicationError) Is(target error) bool {
	return target == ErrDuplicateApplication
}
