package sealevel

import "k8s.io/klog/v2"

type Logger interface {
	Log(s string)
}

// LogRecorder keeps program log lines for inspection after execution.
type LogRecorder struct {
	Logs []string
}

func (r *LogRecorder) Log(s string) {
	klog.V(2).Info(s)
	r.Logs = append(r.Logs, s)
}
