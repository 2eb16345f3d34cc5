package metrics

// NopMetrics 不做任何记录，在没有配置 Prometheus 时使用
type NopMetrics struct{}

var _ Collector = (*NopMetrics)(nil)

func NewNop() *NopMetrics {
	return &NopMetrics{}
}

func (n *NopMetrics) RecordApplication(string) {}

func (n *NopMetrics) RecordResolution(string, float64, int) {}

func (n *NopMetrics) RecordProfileLookupFailure() {}

func (n *NopMetrics) RecordDispatchFailure(string) {}
