package ledger

import "time"

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordAppend(string, int)            {}
func (n *NoopMetricsCollector) RecordAppendDuration(time.Duration)  {}
func (n *NoopMetricsCollector) RecordError(string, string)          {}
