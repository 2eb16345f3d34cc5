package domain

import "time"

type Assignment struct {
	ShiftID     int64     `json:"shiftID"`
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	AssignedAt  time.Time `json:"assignedAt"`
}
