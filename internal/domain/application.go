package domain

import "time"

type Application struct {
	ID          int64     `json:"id"`
	ShiftID     int64     `json:"shiftID"`
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	AppliedAt   time.Time `json:"appliedAt"`
}
