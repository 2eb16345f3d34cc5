package handler

type ContextKey string

var (
	ShiftIDCtxKey ContextKey = "shiftID"
)
