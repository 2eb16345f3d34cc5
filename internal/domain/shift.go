package domain

import "time"

type ShiftStatus string

const (
	ShiftStatusOpen      ShiftStatus = "open"
	ShiftStatusCompleted ShiftStatus = "completed"
)

type Shift struct {
	ID             int64       `json:"id"`
	ShiftType      string      `json:"shiftType"`
	RequiredPeople int32       `json:"requiredPeople"`
	Status         ShiftStatus `json:"status"`
	CreatedAt      time.Time   `json:"createdAt"`

	// 仅在以 "with applications" 模式列出班次时填充
	ApplicantCount *int32         `json:"applicantCount,omitempty"`
	Applications   []*Application `json:"applications,omitempty"`
}

func (s *Shift) IsOpen() bool {
	return s.Status == ShiftStatusOpen
}

// ShiftFilter 列出班次时的过滤条件，零值表示不过滤
type ShiftFilter struct {
	Status           ShiftStatus
	WithApplications bool
}

// ShiftHistoryEntry 是某个用户被分配过的一个班次
type ShiftHistoryEntry struct {
	ID             int64     `json:"id"`
	ShiftType      string    `json:"shiftType"`
	RequiredPeople int32     `json:"requiredPeople"`
	AssignedAt     time.Time `json:"assignedAt"`
}
