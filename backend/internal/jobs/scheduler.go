package jobs

import (
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// WaitPriority определяет, как ожидающая горутина тратит время до завершения работы
type WaitPriority int

const (
	// WaitSleep засыпает между проверками: минимум CPU, максимум задержки
	WaitSleep WaitPriority = iota
	// WaitNormal выполняет один элемент и уступает планировщику
	WaitNormal
	// WaitRealTime крутится в цикле, выполняя элементы
	WaitRealTime
)

// sleepInterval - пауза для WaitSleep
const sleepInterval = time.Microsecond

// String возвращает имя приоритета
func (p WaitPriority) String() string {
	switch p {
	case WaitSleep:
		return "sleep"
	case WaitNormal:
		return "normal"
	case WaitRealTime:
		return "real_time"
	default:
		return "unknown"
	}
}

var ErrUnknownPriority = errors.New("jobs: unknown wait priority")

// ParseWaitPriority разбирает имя приоритета из конфигурации
func ParseWaitPriority(name string) (WaitPriority, error) {
	switch name {
	case "sleep":
		return WaitSleep, nil
	case "normal", "":
		return WaitNormal, nil
	case "real_time", "realtime":
		return WaitRealTime, nil
	default:
		return 0, fmt.Errorf("%q: %w", name, ErrUnknownPriority)
	}
}

// Work вызывается один раз для каждого индекса из [0, count)
type Work func(index int)

// pool описывает один dispatch: счетчик захвата индексов уменьшается атомарно
type pool struct {
	count    int
	claim    atomic.Int64
	progress *Progress
	work     Work
}

func newPool(count int, work Work) *pool {
	p := &pool{
		count:    count,
		progress: NewProgress(count),
		work:     work,
	}
	p.claim.Store(int64(count))
	return p
}

// completeJob захватывает и выполняет один индекс. Возвращает false, если
// свободных индексов не осталось.
func (p *pool) completeJob() bool {
	idx := p.claim.Add(-1)
	if idx < 0 {
		return false
	}
	p.work(int(idx))
	p.progress.Advance(1)
	return true
}

func (p *pool) exhausted() bool {
	return p.claim.Load() <= 0
}

// Handle представляет результат Dispatch
type Handle struct {
	pool *pool
}

// Progress возвращает общий объект прогресса
func (h *Handle) Progress() *Progress {
	return h.pool.progress
}

// Wait блокирует до завершения всех элементов. Ожидающий сам выполняет
// незахваченные элементы своего пула (кроме WaitSleep).
func (h *Handle) Wait(priority WaitPriority) {
	p := h.pool
	for !p.progress.IsDone() {
		switch priority {
		case WaitSleep:
			time.Sleep(sleepInterval)
		case WaitNormal:
			p.completeJob()
			runtime.Gosched()
		default:
			p.completeJob()
		}
	}
}

// Scheduler - фиксированный пул воркеров над очередью пулов работ
type Scheduler struct {
	workers int

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*pool
	closed bool

	wg     sync.WaitGroup
	logger *log.Logger

	dispatched atomic.Uint64
}

// NewScheduler запускает workers воркеров (runtime.NumCPU() при workers <= 0)
func NewScheduler(workers int, logger *log.Logger) *Scheduler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = log.Default()
	}

	s := &Scheduler{
		workers: workers,
		logger:  logger,
	}
	s.cond = sync.NewCond(&s.mu)

	s.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go s.worker()
	}

	s.logger.Printf("[Scheduler] started with %d workers", workers)
	return s
}

// Workers возвращает размер пула
func (s *Scheduler) Workers() int {
	return s.workers
}

// Dispatch ставит count вызовов work в очередь и сразу возвращает Handle
func (s *Scheduler) Dispatch(count int, work Work) *Handle {
	p := newPool(count, work)
	h := &Handle{pool: p}
	if count <= 0 {
		return h
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		// Пул закрыт: работа все равно выполняется, но силами вызывающего
		for p.completeJob() {
		}
		return h
	}
	s.queue = append(s.queue, p)
	s.mu.Unlock()
	s.cond.Broadcast()

	s.dispatched.Add(1)
	return h
}

// Run выполняет Dispatch и ждет завершения
func (s *Scheduler) Run(count int, work Work, priority WaitPriority) {
	s.Dispatch(count, work).Wait(priority)
}

// Dispatched возвращает число поставленных пулов
func (s *Scheduler) Dispatched() uint64 {
	return s.dispatched.Load()
}

// Close дожидается выполнения всей поставленной работы и останавливает воркеров
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()

	s.wg.Wait()
	s.logger.Printf("[Scheduler] stopped after %d dispatches", s.Dispatched())
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}

		p := s.queue[0]
		if p.exhausted() {
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()
			continue
		}
		s.mu.Unlock()

		for p.completeJob() {
		}
	}
}
