// Package metrics 提供抽签流程的指标采集。
package metrics

// Collector 记录报名、抽签以及外部协作方调用的结果
type Collector interface {
	RecordApplication(result string)
	RecordResolution(result string, durationSeconds float64, selected int)
	RecordProfileLookupFailure()
	RecordDispatchFailure(kind string)
}

const (
	ResultSuccess      = "success"
	ResultDuplicate    = "duplicate"
	ResultInvalidState = "invalid_state"
	ResultNotFound     = "not_found"
	ResultInsufficient = "insufficient"
	ResultError        = "error"
)
