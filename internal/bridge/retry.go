package bridge

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// retryController schedules exactly one delayed retransmission after the
// stick reported busy (tE). A new busy signal cancels and replaces the
// outstanding timer; only the single most recent command is remembered.
type retryController struct {
	mu     sync.Mutex
	logger *zap.Logger
	delay  time.Duration
	send   func(command string)
	timer  *time.Timer
}

func newRetryController(delay time.Duration, send func(string), logger *zap.Logger) *retryController {
	return &retryController{
		logger: logger,
		delay:  delay,
		send:   send,
	}
}

// Schedule arms (or re-arms) the retry for the given command.
func (r *retryController) Schedule(command string) {
	if command == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timer != nil {
		r.timer.Stop()
	}

	r.logger.Debug("Scheduling busy retry",
		zap.String("command", command),
		zap.Duration("delay", r.delay))

	r.timer = time.AfterFunc(r.delay, func() {
		r.mu.Lock()
		r.timer = nil
		r.mu.Unlock()

		r.logger.Debug("Retrying command after stick busy", zap.String("command", command))
		r.send(command)
	})
}

// Cancel drops any armed retry, e.g. on disconnect.
func (r *retryController) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
