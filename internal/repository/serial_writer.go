package repository

import (
	"context"
	"errors"
	"sync"

	"smartchair/internal/models"
)

// ErrBackendClosed 后端已关闭
var ErrBackendClosed = errors.New("history backend closed")

// ErrCorruptHistory 持久化文件无法解析（已隔离保存）
var ErrCorruptHistory = errors.New("corrupt history file")

type writeRequest struct {
	entry    models.TelemetryEntry
	snapshot []models.TelemetryEntry
	done     chan error
}

// serialWriter 单写者 goroutine，按提交顺序执行写入
// 队列不设上限：已提交的写入不会因调用方超时而丢弃，调用方返回后仍按顺序完成；
// close 会先写完队列中剩余的请求再返回
type serialWriter struct {
	mu     sync.Mutex
	queue  []writeRequest
	closed bool

	wake    chan struct{}
	stopped chan struct{}
	write   func(writeRequest) error
}

func newSerialWriter(write func(writeRequest) error) *serialWriter {
	w := &serialWriter{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
		write:   write,
	}
	go w.run()
	return w
}

func (w *serialWriter) run() {
	defer close(w.stopped)
	for {
		w.mu.Lock()
		if len(w.queue) == 0 {
			closed := w.closed
			w.mu.Unlock()
			if closed {
				return
			}
			<-w.wake
			continue
		}
		req := w.queue[0]
		w.queue[0] = writeRequest{}
		w.queue = w.queue[1:]
		w.mu.Unlock()

		req.done <- w.write(req)
	}
}

func (w *serialWriter) notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// submit 入队后等待写入结果；ctx 到期只结束等待，写入仍会执行
func (w *serialWriter) submit(ctx context.Context, entry models.TelemetryEntry, snapshot []models.TelemetryEntry) error {
	req := writeRequest{entry: entry, snapshot: snapshot, done: make(chan error, 1)}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrBackendClosed
	}
	w.queue = append(w.queue, req)
	w.mu.Unlock()
	w.notify()

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close 拒绝新的写入，等待队列写完
func (w *serialWriter) close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.notify()
	<-w.stopped
}
