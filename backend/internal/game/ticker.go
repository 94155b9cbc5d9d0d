package game

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// ErrTickerStopped - повторный запуск остановленного тикера
var ErrTickerStopped = errors.New("ticker stopped")

// TickSystem интерфейс для всех систем симуляции
type TickSystem interface {
	Update(deltaTime time.Duration) error
	GetName() string
	GetPriority() int // Приоритет выполнения (меньше = раньше)
}

// Ticker основной менеджер цикла симуляции с фиксированным шагом
type Ticker struct {
	// Конфигурация
	targetTPS    int           // Целевая частота тиков в секунду
	tickDuration time.Duration // Длительность одного тика
	maxTickTime  time.Duration // Максимальное время на один тик

	// Состояние
	mu           sync.Mutex
	isRunning    bool
	isPaused     atomic.Bool
	tickCount    atomic.Uint64
	startTime    time.Time
	lastTickTime time.Time

	// Системы
	systems      []TickSystem
	systemsMutex sync.RWMutex

	// Мониторинг производительности
	perfMonitor *PerformanceMonitor

	// Управление
	ctx       context.Context
	cancel    context.CancelFunc
	pauseChan chan bool
	done      chan struct{}

	// Метрики
	metricsMutex    sync.Mutex
	averageTickTime time.Duration
	maxObservedTick time.Duration
	skippedTicks    uint64

	// Логирование
	logger           *log.Logger
	warningThreshold time.Duration
}

// PerformanceMonitor отслеживает производительность каждой системы
type PerformanceMonitor struct {
	systemMetrics map[string]*SystemMetrics
	mutex         sync.RWMutex

	// Настройки мониторинга
	metricsWindow     int           // Количество последних тиков для усреднения
	warningThreshold  time.Duration // Порог предупреждения для системы
	criticalThreshold time.Duration // Критический порог
}

// SystemMetrics метрики производительности системы
type SystemMetrics struct {
	Name              string
	LastExecutionTime time.Duration
	AverageTime       time.Duration
	MaxTime           time.Duration
	TotalExecutions   uint64
	Errors            uint64

	// Скользящее окно для вычисления среднего
	recentTimes  []time.Duration
	recentIndex  int
	windowFilled bool
}

// NewTicker создает тикер. Шаг симуляции timeStep задает TPS = 1/timeStep.
func NewTicker(timeStep time.Duration, logger *log.Logger) *Ticker {
	if timeStep <= 0 {
		timeStep = 20 * time.Millisecond // 50 TPS по умолчанию
	}

	if logger == nil {
		logger = log.Default()
	}

	targetTPS := int(time.Second / timeStep)
	if targetTPS <= 0 {
		targetTPS = 1
	}
	maxTickTime := timeStep * 2 // Максимум в 2 раза больше целевого времени

	ctx, cancel := context.WithCancel(context.Background())

	return &Ticker{
		targetTPS:        targetTPS,
		tickDuration:     timeStep,
		maxTickTime:      maxTickTime,
		systems:          make([]TickSystem, 0),
		perfMonitor:      NewPerformanceMonitor(50, timeStep/4), // Предупреждение при 25% от тика
		ctx:              ctx,
		cancel:           cancel,
		pauseChan:        make(chan bool, 1),
		done:             make(chan struct{}),
		logger:           logger,
		warningThreshold: timeStep / 2, // Предупреждение при 50% от времени тика
	}
}

// NewPerformanceMonitor создает новый монитор производительности
func NewPerformanceMonitor(windowSize int, warningThreshold time.Duration) *PerformanceMonitor {
	if windowSize <= 0 {
		windowSize = 1
	}
	return &PerformanceMonitor{
		systemMetrics:     make(map[string]*SystemMetrics),
		metricsWindow:     windowSize,
		warningThreshold:  warningThreshold,
		criticalThreshold: warningThreshold * 2,
	}
}

// Start запускает цикл симуляции
func (t *Ticker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.isRunning {
		return nil // Уже запущен
	}
	if t.ctx.Err() != nil {
		return ErrTickerStopped
	}

	t.isRunning = true
	t.startTime = time.Now()

	t.metricsMutex.Lock()
	t.lastTickTime = t.startTime
	t.metricsMutex.Unlock()

	t.logger.Printf("[Ticker] Запуск цикла симуляции: %d TPS (тик каждые %v)",
		t.targetTPS, t.tickDuration)

	go t.loop()

	return nil
}

// Stop останавливает цикл и ждет выхода из него
func (t *Ticker) Stop() {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return
	}
	t.isRunning = false
	t.mu.Unlock()

	t.logger.Printf("[Ticker] Остановка цикла симуляции (выполнено тиков: %d)", t.GetTickCount())

	t.cancel()
	<-t.done
}

// SetPaused приостанавливает или возобновляет цикл
func (t *Ticker) SetPaused(paused bool) {
	if t.isPaused.Swap(paused) == paused {
		return
	}

	// Доставляется только последнее состояние
	select {
	case <-t.pauseChan:
	default:
	}
	t.pauseChan <- paused

	t.logger.Printf("[Ticker] Пауза: %v", paused)
}

// IsPaused сообщает, стоит ли цикл на паузе
func (t *Ticker) IsPaused() bool {
	return t.isPaused.Load()
}

// RegisterSystem добавляет систему в цикл
func (t *Ticker) RegisterSystem(system TickSystem) {
	t.systemsMutex.Lock()
	defer t.systemsMutex.Unlock()

	// Добавляем систему
	t.systems = append(t.systems, system)

	// Сортируем по приоритету (меньше = выше приоритет)
	for i := len(t.systems) - 1; i > 0; i-- {
		if t.systems[i].GetPriority() < t.systems[i-1].GetPriority() {
			t.systems[i], t.systems[i-1] = t.systems[i-1], t.systems[i]
		} else {
			break
		}
	}

	// Инициализируем метрики для системы
	t.perfMonitor.initSystemMetrics(system.GetName())

	t.logger.Printf("[Ticker] Зарегистрирована система: %s (приоритет: %d)",
		system.GetName(), system.GetPriority())
}

// loop основной цикл
func (t *Ticker) loop() {
	defer close(t.done)

	ticker := time.NewTicker(t.tickDuration)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return

		case pause := <-t.pauseChan:
			if pause {
				// Ждем команды возобновления
				for pause {
					select {
					case <-t.ctx.Done():
						return
					case pause = <-t.pauseChan:
					}
				}
				t.metricsMutex.Lock()
				t.lastTickTime = time.Now()
				t.metricsMutex.Unlock()
			}

		case tickTime := <-ticker.C:
			t.Tick(tickTime)
		}
	}
}

// Tick выполняет один тик всех систем. Вызывается циклом, тесты вызывают
// его напрямую.
func (t *Ticker) Tick(tickTime time.Time) {
	tickStart := time.Now()

	t.metricsMutex.Lock()
	if t.lastTickTime.IsZero() {
		t.lastTickTime = tickTime.Add(-t.tickDuration)
	}
	deltaTime := tickTime.Sub(t.lastTickTime)

	// Проверяем, не слишком ли большая задержка между тиками
	if deltaTime > t.tickDuration*2 {
		t.logger.Printf("[Ticker] ПРЕДУПРЕЖДЕНИЕ: Большая задержка между тиками: %v (ожидалось: %v)",
			deltaTime, t.tickDuration)
		t.skippedTicks++
	}
	t.lastTickTime = tickTime
	t.metricsMutex.Unlock()

	t.tickCount.Add(1)

	// Выполняем все системы
	t.executeAllSystems(deltaTime)

	// Измеряем общее время тика
	totalTickTime := time.Since(tickStart)
	t.updateTickMetrics(totalTickTime)

	// Проверяем производительность
	t.checkPerformance(totalTickTime)
}

// executeAllSystems выполняет все зарегистрированные системы
func (t *Ticker) executeAllSystems(deltaTime time.Duration) {
	t.systemsMutex.RLock()
	systems := make([]TickSystem, len(t.systems))
	copy(systems, t.systems)
	t.systemsMutex.RUnlock()

	for _, system := range systems {
		t.executeSystem(system, deltaTime)
	}
}

// executeSystem выполняет одну систему с замером времени
func (t *Ticker) executeSystem(system TickSystem, deltaTime time.Duration) {
	systemStart := time.Now()
	systemName := system.GetName()

	defer func() {
		if r := recover(); r != nil {
			t.logger.Printf("[Ticker] КРИТИЧЕСКАЯ ОШИБКА в системе %s: %v", systemName, r)
			t.perfMonitor.recordError(systemName)
		}
	}()

	// Выполняем систему
	err := system.Update(deltaTime)

	executionTime := time.Since(systemStart)

	// Записываем метрики
	t.perfMonitor.recordExecution(systemName, executionTime)

	// Обрабатываем ошибки
	if err != nil {
		t.logger.Printf("[Ticker] Ошибка в системе %s: %v", systemName, err)
		t.perfMonitor.recordError(systemName)
	}
}

// GetStats возвращает статистику цикла
func (t *Ticker) GetStats() map[string]interface{} {
	t.mu.Lock()
	isRunning := t.isRunning
	startTime := t.startTime
	t.mu.Unlock()

	t.systemsMutex.RLock()
	systemsCount := len(t.systems)
	t.systemsMutex.RUnlock()

	t.metricsMutex.Lock()
	averageTickTime := t.averageTickTime
	maxObservedTick := t.maxObservedTick
	skippedTicks := t.skippedTicks
	t.metricsMutex.Unlock()

	tickCount := t.GetTickCount()
	actualTPS := 0.0
	uptime := time.Duration(0)
	if !startTime.IsZero() {
		uptime = time.Since(startTime)
		if uptime > 0 {
			actualTPS = float64(tickCount) / uptime.Seconds()
		}
	}

	return map[string]interface{}{
		"target_tps":        t.targetTPS,
		"actual_tps":        actualTPS,
		"tick_count":        tickCount,
		"uptime_seconds":    uptime.Seconds(),
		"average_tick_time": averageTickTime,
		"max_observed_tick": maxObservedTick,
		"skipped_ticks":     skippedTicks,
		"is_running":        isRunning,
		"is_paused":         t.IsPaused(),
		"systems_count":     systemsCount,
		"systems":           t.perfMonitor.GetSystemsStats(),
	}
}

// GetTickCount возвращает текущее количество тиков
func (t *Ticker) GetTickCount() uint64 {
	return t.tickCount.Load()
}

// TargetTPS возвращает целевую частоту тиков
func (t *Ticker) TargetTPS() int {
	return t.targetTPS
}

// SystemMetrics возвращает копию метрик системы
func (t *Ticker) SystemMetrics(name string) (SystemMetrics, bool) {
	return t.perfMonitor.snapshot(name)
}

// Вспомогательные методы для мониторинга производительности
func (pm *PerformanceMonitor) initSystemMetrics(systemName string) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	pm.systemMetrics[systemName] = &SystemMetrics{
		Name:        systemName,
		recentTimes: make([]time.Duration, pm.metricsWindow),
	}
}

func (pm *PerformanceMonitor) recordExecution(systemName string, executionTime time.Duration) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	metrics, exists := pm.systemMetrics[systemName]
	if !exists {
		return
	}

	metrics.LastExecutionTime = executionTime
	metrics.TotalExecutions++

	// Обновляем максимальное время
	if executionTime > metrics.MaxTime {
		metrics.MaxTime = executionTime
	}

	// Добавляем в скользящее окно
	metrics.recentTimes[metrics.recentIndex] = executionTime
	metrics.recentIndex = (metrics.recentIndex + 1) % pm.metricsWindow

	if !metrics.windowFilled && metrics.recentIndex == 0 {
		metrics.windowFilled = true
	}

	// Пересчитываем среднее время
	pm.recalculateAverage(metrics)
}

func (pm *PerformanceMonitor) recordError(systemName string) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if metrics, exists := pm.systemMetrics[systemName]; exists {
		metrics.Errors++
	}
}

func (pm *PerformanceMonitor) recalculateAverage(metrics *SystemMetrics) {
	var total time.Duration
	var count int

	limit := pm.metricsWindow
	if !metrics.windowFilled {
		limit = metrics.recentIndex
	}

	for i := 0; i < limit; i++ {
		total += metrics.recentTimes[i]
		count++
	}

	if count > 0 {
		metrics.AverageTime = total / time.Duration(count)
	}
}

func (pm *PerformanceMonitor) snapshot(systemName string) (SystemMetrics, bool) {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	metrics, exists := pm.systemMetrics[systemName]
	if !exists {
		return SystemMetrics{}, false
	}
	copied := *metrics
	copied.recentTimes = nil
	return copied, true
}

func (pm *PerformanceMonitor) GetSystemsStats() map[string]interface{} {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	systemsStats := make(map[string]interface{})

	for name, metrics := range pm.systemMetrics {
		systemsStats[name] = map[string]interface{}{
			"last_execution_time": metrics.LastExecutionTime,
			"average_time":        metrics.AverageTime,
			"max_time":            metrics.MaxTime,
			"total_executions":    metrics.TotalExecutions,
			"errors":              metrics.Errors,
		}
	}

	return systemsStats
}

func (t *Ticker) updateTickMetrics(tickTime time.Duration) {
	t.metricsMutex.Lock()
	defer t.metricsMutex.Unlock()

	if tickTime > t.maxObservedTick {
		t.maxObservedTick = tickTime
	}

	// Простое скользящее среднее
	if t.averageTickTime == 0 {
		t.averageTickTime = tickTime
	} else {
		t.averageTickTime = (t.averageTickTime*9 + tickTime) / 10
	}
}

func (t *Ticker) checkPerformance(tickTime time.Duration) {
	if tickTime > t.maxTickTime {
		t.logger.Printf("[Ticker] КРИТИЧЕСКОЕ ПРЕДУПРЕЖДЕНИЕ: Тик превысил максимальное время! %v > %v (цель: %v)",
			tickTime, t.maxTickTime, t.tickDuration)
	} else if tickTime > t.warningThreshold {
		t.logger.Printf("[Ticker] ПРЕДУПРЕЖДЕНИЕ: Медленный тик: %v (цель: %v)",
			tickTime, t.tickDuration)
	}
}
