package domain

// ResolutionTx 是一次抽签的原子操作单元。
//
// 开始时已锁定班次记录，InsertAssignments、MarkCompleted、ClearApplications
// 的结果只有在 Commit 之后才对其他请求可见；Rollback 在 Commit 之后调用时不产生任何效果。
type ResolutionTx interface {
	Shift() *Shift
	Applications() ([]*Application, error)
	InsertAssignments(assignments []*Assignment) error
	MarkCompleted() error
	ClearApplications() error
	Commit() error
	Rollback() error
}
