package eventbus

import (
	"sync"
	"time"
)

// dispatcher 分发器
// 固定数量 worker 消费共享队列；不同事件可在不同 worker 上并发处理，
// 同一事件的所有回调在一个 worker 内顺序执行
type dispatcher struct {
	queue     *EventQueue
	callbacks *CallbackRegistry
	stats     *Statistics
	logger    Logger
	timing    bool // 是否记录回调耗时
	workers   int
	wg        sync.WaitGroup
}

// newDispatcher 创建分发器
func newDispatcher(queue *EventQueue, callbacks *CallbackRegistry, stats *Statistics, logger Logger, workers int, timing bool) *dispatcher {
	if workers <= 0 {
		workers = DefaultWorkerCount
	}
	return &dispatcher{
		queue:     queue,
		callbacks: callbacks,
		stats:     stats,
		logger:    logger,
		timing:    timing,
		workers:   workers,
	}
}

// start 启动 worker
func (d *dispatcher) start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// wait 等待所有 worker 退出
func (d *dispatcher) wait() {
	d.wg.Wait()
}

// worker 工作协程，队列关闭后退出
func (d *dispatcher) worker(idx int) {
	defer d.wg.Done()
	for {
		ev, ok := d.queue.Dequeue()
		if !ok {
			d.logger.Debug("分发 worker 退出: worker=%d", idx)
			return
		}
		d.dispatch(ev)
	}
}

// dispatch 分发单个事件
// 在读锁内复制匹配的注册项后释放锁，再逐个调用，处理器内可安全操作注册表
func (d *dispatcher) dispatch(ev *Event) {
	matched := d.callbacks.match(ev, time.Now())

	for _, reg := range matched {
		start := time.Now()
		d.invoke(reg, ev)
		if d.timing {
			elapsed := time.Since(start)
			reg.record(elapsed)
			d.stats.CallbackExecuted(elapsed)
		} else {
			reg.record(0)
			d.stats.CallbackExecuted(0)
		}
	}

	d.stats.EventProcessed(ev.Type)
}

// invoke 调用单个回调，panic 在此边界捕获
// 回调失败只影响自身，不中断同事件的后续回调，也不影响 worker
func (d *dispatcher) invoke(reg *CallbackRegistration, ev *Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("回调执行 panic: callback=%d event=%s type=%s err=%v",
				reg.ID, ev.ID, string(ev.Type), r)
		}
	}()
	reg.handler(ev)
}
