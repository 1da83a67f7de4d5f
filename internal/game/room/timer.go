package room

import "time"

// Timer 可取消的定时器
type Timer interface {
	Stop() bool
}

// Scheduler 定时器与时钟来源，测试中可替换为手动推进的实现
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
	Now() time.Time
}

type realScheduler struct{}

// RealScheduler 基于 time.AfterFunc 的调度器
func RealScheduler() Scheduler {
	return realScheduler{}
}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (realScheduler) Now() time.Time {
	return time.Now()
}

// scheduleLocked 替换当前阶段定时器，调用方须持有 r.mu
// 回调只在房间仍处于调度时的阶段和轮次时生效
func (r *Room) scheduleLocked(d time.Duration, fn func()) {
	r.stopTimerLocked()

	r.timerGen++
	gen, phase, round := r.timerGen, r.phase, r.currentRound
	r.deadline = r.deps.scheduler.Now().Add(d)
	r.timer = r.deps.scheduler.AfterFunc(d, func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		if r.closed || r.timerGen != gen || r.phase != phase || r.currentRound != round {
			return
		}
		r.timer = nil
		r.deadline = time.Time{}
		fn()
	})
}

// stopTimerLocked 停止当前阶段定时器
func (r *Room) stopTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.deadline = time.Time{}
}
