package scheduler

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"astro-union/internal/dto"
)

// blockingReconcile 在 release 关闭前挂起 RunPass，用于验证关闭时序
type blockingReconcile struct {
	started  chan struct{}
	release  chan struct{}
	finished bool
}

func (m *blockingReconcile) RunPass(_ context.Context) (*dto.SyncReport, error) {
	close(m.started)
	<-m.release
	m.finished = true
	return &dto.SyncReport{}, nil
}

func (m *blockingReconcile) RunTenant(_ context.Context, _ string) (*dto.TenantSyncReport, error) {
	return &dto.TenantSyncReport{}, nil
}

func TestStop_WaitsForImmediateFirstPass(t *testing.T) {
	mock := &blockingReconcile{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := New(mock, time.Minute, zap.NewNop())

	if err := s.Start(); err != nil {
		t.Fatalf("Start 失败: %v", err)
	}

	// 等首轮对账真正开始后再触发关闭
	select {
	case <-mock.started:
	case <-time.After(time.Second):
		t.Fatal("首轮对账未在启动后立即执行")
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(mock.release)
	}()

	s.Stop()

	if !mock.finished {
		t.Error("Stop 返回时首轮对账应已结束")
	}
}
