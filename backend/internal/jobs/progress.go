package jobs

import "sync/atomic"

// Progress отслеживает выполнение одного dispatch-а.
// Значение монотонно растет, а канал Done закрывается ровно один раз.
type Progress struct {
	size      int64
	completed atomic.Int64
	done      chan struct{}
}

// NewProgress создает трекер на size элементов. При size == 0 работа
// считается завершенной сразу.
func NewProgress(size int) *Progress {
	p := &Progress{
		size: int64(size),
		done: make(chan struct{}),
	}
	if size <= 0 {
		p.size = 0
		close(p.done)
	}
	return p
}

// Advance отмечает n выполненных элементов
func (p *Progress) Advance(n int) {
	if n <= 0 {
		return
	}
	v := p.completed.Add(int64(n))
	// Ровно один вызов переходит через границу size
	if v >= p.size && v-int64(n) < p.size {
		close(p.done)
	}
}

// Completed возвращает число выполненных элементов
func (p *Progress) Completed() int {
	v := p.completed.Load()
	if v > p.size {
		v = p.size
	}
	return int(v)
}

// Size возвращает общее число элементов
func (p *Progress) Size() int {
	return int(p.size)
}

// Percent возвращает прогресс в процентах [0, 100]
func (p *Progress) Percent() float64 {
	if p.size == 0 {
		return 100
	}
	return 100 * float64(p.Completed()) / float64(p.size)
}

// IsDone сообщает, завершена ли вся работа
func (p *Progress) IsDone() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Done возвращает канал, закрываемый по завершении
func (p *Progress) Done() <-chan struct{} {
	return p.done
}
