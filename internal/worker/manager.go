package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/stampbook-app/stampbook-backend/internal/queue"
)

const (
	// DefaultWorkerCount is the default number of fan-out goroutines
	DefaultWorkerCount = 2

	// DefaultBatchSize is the number of stream messages read per batch
	DefaultBatchSize = 10

	// DefaultBlockTimeout is how long a read blocks waiting for new messages
	DefaultBlockTimeout = 5 * time.Second

	// readBackoff is the pause after a failed stream read
	readBackoff = time.Second
)

// ManagerConfig tunes the consumer pool.
type ManagerConfig struct {
	WorkerCount  int           // fan-out goroutines
	BatchSize    int64         // messages per XREADGROUP
	BlockTimeout time.Duration // block time per read
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		WorkerCount:  DefaultWorkerCount,
		BatchSize:    DefaultBatchSize,
		BlockTimeout: DefaultBlockTimeout,
	}
}

// Manager runs the pool of goroutines that drain the feed stream and apply
// fan-out through the Handler. Each goroutine reads under its own consumer
// name so Redis tracks per-consumer pending lists, which is what makes crash
// recovery possible.
type Manager struct {
	consumer queue.Consumer
	handler  *Handler
	cfg      ManagerConfig

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewManager(consumer queue.Consumer, handler *Handler, cfg ManagerConfig) *Manager {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = DefaultBlockTimeout
	}
	return &Manager{consumer: consumer, handler: handler, cfg: cfg}
}

// Start ensures the consumer group exists and launches the pool. Stop shuts
// it down.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.consumer.EnsureGroup(m.ctx, queue.StreamFeed, queue.ConsumerGroupFeed); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	for i := 1; i <= m.cfg.WorkerCount; i++ {
		m.wg.Add(1)
		go m.run(fmt.Sprintf("worker-%d", i))
	}

	log.Printf("[Manager] Started %d workers: stream=%s group=%s",
		m.cfg.WorkerCount, queue.StreamFeed, queue.ConsumerGroupFeed)
	return nil
}

// Stop cancels the pool and blocks until every goroutine has returned.
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
	log.Printf("[Manager] All workers stopped")
}

// run is one consumer goroutine: drain this consumer's pending list first
// (messages delivered before a crash but never acknowledged), then settle into
// the read loop.
func (m *Manager) run(name string) {
	defer m.wg.Done()

	log.Printf("[Worker] %s started", name)
	m.drainPending(name)

	for {
		select {
		case <-m.ctx.Done():
			log.Printf("[Worker] %s shutting down", name)
			return
		default:
		}

		messages, err := m.consumer.Read(m.ctx, queue.StreamFeed, queue.ConsumerGroupFeed,
			name, m.cfg.BatchSize, m.cfg.BlockTimeout)
		if err != nil {
			log.Printf("[Worker] %s read error: %v", name, err)
			time.Sleep(readBackoff)
			continue
		}
		if len(messages) == 0 {
			continue // block timeout, nothing new
		}

		m.dispatch(name, messages)
	}
}

func (m *Manager) drainPending(name string) {
	for {
		messages, err := m.consumer.ReadPending(m.ctx, queue.StreamFeed, queue.ConsumerGroupFeed,
			name, m.cfg.BatchSize)
		if err != nil {
			log.Printf("[Worker] %s pending read error: %v", name, err)
			return
		}
		if len(messages) == 0 {
			return
		}

		log.Printf("[Worker] %s recovering %d pending messages", name, len(messages))
		m.dispatch(name, messages)
	}
}

// dispatch hands each message to the handler and acknowledges it. Handler
// errors are acknowledged too: the cache fan-out is best effort and the next
// warm rebuilds it, so redelivering a poison message forever helps nobody.
func (m *Manager) dispatch(name string, messages []queue.Message) {
	for _, msg := range messages {
		if err := m.handler.HandleEvent(m.ctx, msg.Event); err != nil {
			log.Printf("[Worker] %s handler error: msg=%s type=%s err=%v", name, msg.ID, msg.Event.Type, err)
		}
		if err := m.consumer.Ack(m.ctx, queue.StreamFeed, queue.ConsumerGroupFeed, msg.ID); err != nil {
			log.Printf("[Worker] %s ack error: msg=%s err=%v", name, msg.ID, err)
		}
	}
}
