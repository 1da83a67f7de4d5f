package room

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/palemoky/imposter-party/internal/protocol"
	"github.com/palemoky/imposter-party/internal/types"
)

// mirrorEntry 一个房间待写入的镜像操作，只保留最新快照
type mirrorEntry struct {
	snap      *protocol.RoomSnapshot
	standings []protocol.PlayerInfo
	remove    bool
}

// mirrorWriter 单协程按房间顺序写镜像
// 入队不阻塞；同一房间的写入严格按入队顺序落盘，删除之后不会再写回快照
type mirrorWriter struct {
	store  types.RoomStore
	logger *zap.SugaredLogger

	mu      sync.Mutex
	pending map[string]*mirrorEntry
	order   []string
	closed  bool

	wake chan struct{}
	done chan struct{}
}

func newMirrorWriter(store types.RoomStore, logger *zap.SugaredLogger) *mirrorWriter {
	w := &mirrorWriter{
		store:   store,
		logger:  logger,
		pending: make(map[string]*mirrorEntry),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w
}

// entryLocked 取得房间的待写条目
func (w *mirrorWriter) entryLocked(code string) *mirrorEntry {
	e, ok := w.pending[code]
	if !ok {
		e = &mirrorEntry{}
		w.pending[code] = e
		w.order = append(w.order, code)
	}
	return e
}

func (w *mirrorWriter) enqueue(code string, apply func(*mirrorEntry)) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.logger.Debugw("镜像已关闭，丢弃写入", "room", code)
		return
	}
	apply(w.entryLocked(code))
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// saveRoom 覆盖该房间待写的快照
func (w *mirrorWriter) saveRoom(snap *protocol.RoomSnapshot) {
	w.enqueue(snap.Code, func(e *mirrorEntry) {
		e.snap = snap
		e.remove = false
	})
}

// saveResults 记录最终排名
func (w *mirrorWriter) saveResults(code string, standings []protocol.PlayerInfo) {
	w.enqueue(code, func(e *mirrorEntry) { e.standings = standings })
}

// deleteRoom 丢弃未写入的快照并删除镜像
func (w *mirrorWriter) deleteRoom(code string) {
	w.enqueue(code, func(e *mirrorEntry) {
		e.snap = nil
		e.remove = true
	})
}

// close 写完剩余条目后退出，可重复调用
func (w *mirrorWriter) close() {
	w.mu.Lock()
	already := w.closed
	w.closed = true
	w.mu.Unlock()

	if !already {
		close(w.wake)
	}
	<-w.done
}

func (w *mirrorWriter) loop() {
	defer close(w.done)
	for range w.wake {
		w.drain()
	}
	w.drain()
}

// drain 取走当前所有待写条目并依次写入
func (w *mirrorWriter) drain() {
	for {
		w.mu.Lock()
		pending, order := w.pending, w.order
		w.pending = make(map[string]*mirrorEntry)
		w.order = nil
		w.mu.Unlock()

		if len(order) == 0 {
			return
		}
		for _, code := range order {
			w.write(code, pending[code])
		}
	}
}

func (w *mirrorWriter) write(code string, e *mirrorEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if e.standings != nil {
		if err := w.store.SaveResults(ctx, code, e.standings); err != nil {
			w.logger.Warnw("保存最终排名失败", "room", code, "error", err)
		}
	}
	switch {
	case e.remove:
		if err := w.store.DeleteRoom(ctx, code); err != nil {
			w.logger.Warnw("删除房间镜像失败", "room", code, "error", err)
		}
	case e.snap != nil:
		if err := w.store.SaveRoom(ctx, e.snap); err != nil {
			w.logger.Warnw("保存房间镜像失败", "room", code, "error", err)
		}
	}
}
