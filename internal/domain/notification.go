package domain

const (
	NotificationTypeNewShift    = "new_shift"
	NotificationTypeShiftResult = "shift_result"
)

type NotificationMessage struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Target string `json:"target"`
	Data   any    `json:"data"`
}

type NewShiftNotificationData struct {
	ShiftID        int64  `json:"shiftID"`
	ShiftType      string `json:"shiftType"`
	RequiredPeople int32  `json:"requiredPeople"`
}

type SelectedUser struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type ShiftResultNotificationData struct {
	ShiftID        int64          `json:"shiftID"`
	ShiftType      string         `json:"shiftType"`
	RequiredPeople int32          `json:"requiredPeople"`
	Selected       []SelectedUser `json:"selected"`
}
