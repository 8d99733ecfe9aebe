// Package cu meters compute units consumed by native programs during one
// execution.
package cu

import (
	"errors"
	"fmt"

	"go.firedancer.io/executor/pkg/safemath"
	"k8s.io/klog/v2"
)

var ErrComputeExceeded = errors.New("ComputeExceeded")

type ComputeMeter struct {
	remaining uint64
	limit     uint64
}

func NewComputeMeter(limit uint64) ComputeMeter {
	return ComputeMeter{remaining: limit, limit: limit}
}

// Consume charges cost against the meter. Once the limit is crossed the
// meter stays drained.
func (cm *ComputeMeter) Consume(cost uint64) error {
	if cm.remaining < cost {
		klog.V(3).Infof("compute limit %d exceeded: need %d, have %d", cm.limit, cost, cm.remaining)
		cm.remaining = 0
		return fmt.Errorf("%w: cost %d", ErrComputeExceeded, cost)
	}
	cm.remaining = safemath.SaturatingSubU64(cm.remaining, cost)
	return nil
}

func (cm *ComputeMeter) Used() uint64 {
	return cm.limit - cm.remaining
}

func (cm *ComputeMeter) Remaining() uint64 {
	return cm.remaining
}

func (cm *ComputeMeter) Limit() uint64 {
	return cm.limit
}
