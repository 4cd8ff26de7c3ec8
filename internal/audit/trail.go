package audit

/*
Файл trail.go реализует Audit Trail — неблокирующий сборщик событий аудита
с пакетной записью в PostgreSQL.

Ключевые особенности архитектуры:
- Non-blocking Logging: события уходят через буферизованный канал, задержки
  записи в БД не влияют на время транзакции решения.
- Batching: накопление в памяти и Bulk Insert по таймеру или при достижении
  лимита (100 событий).
- Drain Pattern & Graceful Shutdown: при остановке сервиса буфер вычитывается
  до конца, Final Flush гарантирует отсутствие потерь при перезагрузке.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StorageInterface определяет, куда физически будут сохраняться события
type StorageInterface interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []Event) error
}

type Auditor interface {
	Log(event Event)
}

type Trail struct {
	ch         chan Event
	repo       StorageInterface
	logger     *zap.Logger
	flushEvery time.Duration
	wg         sync.WaitGroup
	// Защита от Log после остановки
	isClosed int32 // Атомарный флаг (0 - открыт, 1 - закрыт)
}

func NewTrail(repo StorageInterface, logger *zap.Logger, bufferSize int, flushEvery time.Duration) *Trail {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	if flushEvery <= 0 {
		flushEvery = 500 * time.Millisecond
	}
	return &Trail{
		ch:         make(chan Event, bufferSize),
		repo:       repo,
		logger:     logger.With(zap.String("mod", "audit-trail")),
		flushEvery: flushEvery,
	}
}

func (t *Trail) Start() {
	t.wg.Add(1)
	go t.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (t *Trail) Stop() {
	atomic.StoreInt32(&t.isClosed, 1)

	// Даем крошечную паузу, чтобы текущие Log успели проскочить
	time.Sleep(10 * time.Millisecond)

	t.logger.Info("stopping audit trail: closing channel and flushing buffer...")
	close(t.ch)
	t.wg.Wait()
	t.logger.Info("audit trail stopped gracefully")
}

func (t *Trail) Log(event Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if atomic.LoadInt32(&t.isClosed) == 1 {
		t.logger.Warn("audit event dropped: trail is stopping", zap.String("id", event.ID))
		return
	}

	// Load Shedding: переполненный буфер не должен блокировать транзакции
	select {
	case t.ch <- event:
	default:
		t.logger.Error("audit_buffer_overflow",
			zap.String("actor", event.ActorUserID),
			zap.String("action", event.Action),
		)
	}
}

func (t *Trail) worker() {
	defer t.wg.Done()

	batch := make([]Event, 0, 100)
	ticker := time.NewTicker(t.flushEvery)
	defer ticker.Stop()

	flush := func() {
		if len(batch) > 0 {
			// Background: основной контекст на shutdown может быть уже закрыт
			if err := t.repo.WriteBatch(context.Background(), batch); err != nil {
				t.logger.Error("audit flush failed", zap.Error(err))
			}
			batch = batch[:0]
		}
	}

	for {
		select {
		case event, ok := <-t.ch:
			if !ok {
				flush() // Final Flush перед выходом
				return
			}
			batch = append(batch, event)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Discard — заглушка для тестов и окружений без БД
type Discard struct{}

func (Discard) Log(Event) {}
