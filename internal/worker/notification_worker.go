package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/neighborfix/maintenance-service/internal/events"
	"github.com/neighborfix/maintenance-service/internal/service"
)

const defaultQueueSize = 256

// NotificationWorker moves feed delivery off the request path. Events are
// queued by a dispatcher handler and forwarded by a single goroutine.
type NotificationWorker struct {
	svc    *service.NotificationService
	logger *zap.Logger
	queue  chan events.Event
	wg     sync.WaitGroup
}

// StartNotificationWorker registers notification handlers and starts
// forwarding until ctx is cancelled.
func StartNotificationWorker(ctx context.Context, dispatcher events.Dispatcher, notificationService *service.NotificationService, logger *zap.Logger, queueSize int) *NotificationWorker {
	if notificationService == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	w := &NotificationWorker{
		svc:    notificationService,
		logger: logger,
		queue:  make(chan events.Event, queueSize),
	}
	notificationService.RegisterHandlers()
	if dispatcher != nil {
		dispatcher.Subscribe(events.EventAny, w.enqueue)
	}

	w.wg.Add(1)
	go w.run(ctx)
	return w
}

func (w *NotificationWorker) enqueue(_ context.Context, event events.Event) error {
	select {
	case w.queue <- event:
	default:
		w.logger.Warn("notification queue full, dropping event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)))
	}
	return nil
}

func (w *NotificationWorker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		case event := <-w.queue:
			_ = w.svc.Forward(context.WithoutCancel(ctx), event)
		}
	}
}

// drain forwards whatever was queued before shutdown.
func (w *NotificationWorker) drain() {
	for {
		select {
		case event := <-w.queue:
			_ = w.svc.Forward(context.Background(), event)
		default:
			return
		}
	}
}

// Wait blocks until the worker has stopped.
func (w *NotificationWorker) Wait() {
	if w == nil {
		return
	}
	w.wg.Wait()
}
