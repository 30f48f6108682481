// Package jsonl 实现异步 JSONL 文件写入。
// 热路径只投递记录，编码与文件 I/O 在后台 goroutine 完成。
package jsonl

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/sugawarayuuta/sonnet"
)

// ErrClosed 写入器已关闭
var ErrClosed = errors.New("jsonl writer 已关闭")

type opKind uint8

const (
	kindRecord opKind = iota
	kindFlush
	kindClose
)

type request struct {
	kind opKind
	rec  any
	ack  chan error
}

// Counters 写入器计数
type Counters struct {
	// Written 成功写入的行数
	Written uint64 `json:"written"`
	// Dropped 缓冲区已满被丢弃的记录数
	Dropped uint64 `json:"dropped"`
	// EncodeErrors 编码或写入失败的记录数
	EncodeErrors uint64 `json:"encode_errors"`
}

// Writer 异步 JSONL 写入器（并发安全）
type Writer struct {
	path string
	reqs chan request

	// sendMu 保证关闭后不再向 reqs 投递
	sendMu    sync.RWMutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
	done      chan struct{}

	written      atomic.Uint64
	dropped      atomic.Uint64
	encodeErrors atomic.Uint64
}

// NewWriter 创建 JSONL 写入器，以追加方式打开文件
// 参数 path: 输出文件路径
// 参数 bufferSize: 待写记录队列容量
func NewWriter(path string, bufferSize int) (*Writer, error) {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("打开输出文件失败: %w", err)
	}

	w := &Writer{
		path: path,
		reqs: make(chan request, bufferSize),
		done: make(chan struct{}),
	}
	go w.loop(f)
	return w, nil
}

// Path 返回输出文件路径
func (w *Writer) Path() string {
	return w.path
}

// Write 投递一条记录，队列已满时阻塞等待
func (w *Writer) Write(rec any) error {
	w.sendMu.RLock()
	defer w.sendMu.RUnlock()
	if w.closed.Load() {
		return ErrClosed
	}
	w.reqs <- request{kind: kindRecord, rec: rec}
	return nil
}

// TryWrite 投递一条记录，队列已满时丢弃并返回 false
func (w *Writer) TryWrite(rec any) bool {
	w.sendMu.RLock()
	defer w.sendMu.RUnlock()
	if w.closed.Load() {
		return false
	}
	select {
	case w.reqs <- request{kind: kindRecord, rec: rec}:
		return true
	default:
		w.dropped.Add(1)
		return false
	}
}

// Flush 等待此前投递的记录全部落盘
func (w *Writer) Flush() error {
	w.sendMu.RLock()
	if w.closed.Load() {
		w.sendMu.RUnlock()
		return nil
	}
	ack := make(chan error, 1)
	w.reqs <- request{kind: kindFlush, ack: ack}
	w.sendMu.RUnlock()
	return <-ack
}

// Close 写出剩余记录并关闭文件，可重复调用
func (w *Writer) Close() error {
	w.closeOnce.Do(func() {
		w.sendMu.Lock()
		w.closed.Store(true)
		ack := make(chan error, 1)
		w.reqs <- request{kind: kindClose, ack: ack}
		w.sendMu.Unlock()
		w.closeErr = <-ack
	})
	<-w.done
	return w.closeErr
}

// Counters 返回计数快照
func (w *Writer) Counters() Counters {
	return Counters{
		Written:      w.written.Load(),
		Dropped:      w.dropped.Load(),
		EncodeErrors: w.encodeErrors.Load(),
	}
}

func (w *Writer) loop(f *os.File) {
	defer close(w.done)

	bw := bufio.NewWriterSize(f, 1<<20)
	for req := range w.reqs {
		switch req.kind {
		case kindRecord:
			b, err := sonnet.Marshal(req.rec)
			if err != nil {
				w.encodeErrors.Add(1)
				continue
			}
			b = append(b, '\n')
			if _, err := bw.Write(b); err != nil {
				w.encodeErrors.Add(1)
				continue
			}
			w.written.Add(1)
		case kindFlush:
			req.ack <- bw.Flush()
		case kindClose:
			err := bw.Flush()
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			req.ack <- err
			return
		}
	}
}
