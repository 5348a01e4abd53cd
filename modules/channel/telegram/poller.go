package telegram

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/flemzord/gatekeep/pkg/botapi"
)

const (
	maxConsecutivePollingErrors = 5
	defaultErrorPause           = 30 * time.Second
)

// Updater is the part of the Bot API the poller calls.
type Updater interface {
	GetUpdates(ctx context.Context, req botapi.GetUpdatesRequest) ([]botapi.Update, error)
}

// Poller implements long-polling for receiving Telegram updates.
type Poller struct {
	client     Updater
	sink       Sink
	allow      *allowList
	logger     *slog.Logger
	timeout    int
	allowed    []string
	errorPause time.Duration

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewPoller creates a new Poller.
func NewPoller(client Updater, sink Sink, allow *allowList, logger *slog.Logger, cfg Config) *Poller {
	return &Poller{
		client:     client,
		sink:       sink,
		allow:      allow,
		logger:     logger,
		timeout:    cfg.PollingTimeout,
		allowed:    cfg.AllowedUpdates,
		errorPause: defaultErrorPause,
		done:       make(chan struct{}),
	}
}

// Start launches the polling loop in a goroutine.
func (p *Poller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.loop(ctx)
}

// Stop cancels the in-flight getUpdates call and waits for the loop to
// finish. It is safe to call Stop multiple times.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
	})
	<-p.done
}

// loop runs the long-polling loop until ctx is cancelled.
func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)

	var offset int
	var consecutiveErrors int

	for ctx.Err() == nil {
		updates, err := p.client.GetUpdates(ctx, botapi.GetUpdatesRequest{
			Offset:         offset,
			Timeout:        p.timeout,
			AllowedUpdates: p.allowed,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			consecutiveErrors++
			p.logger.Error("polling getUpdates failed",
				"error", err,
				"consecutive_errors", consecutiveErrors,
			)

			if consecutiveErrors >= maxConsecutivePollingErrors {
				p.logger.Warn("polling paused after consecutive errors", "pause", p.errorPause)
				timer := time.NewTimer(p.errorPause)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
				consecutiveErrors = 0
			}
			continue
		}

		consecutiveErrors = 0

		for _, u := range updates {
			offset = u.UpdateID + 1
			_ = deliver(p.sink, p.allow, p.logger, u)
		}
	}
}

// deliver filters u through the allow list and hands it to the sink. The
// sink error is returned so the webhook answers 500 and Telegram retries;
// the poller has already moved its offset and only logs it.
func deliver(sink Sink, allow *allowList, logger *slog.Logger, u botapi.Update) error {
	if !allow.allowed(u) {
		logger.Debug("update denied by allow list", "update_id", u.UpdateID)
		return nil
	}
	if err := sink(u); err != nil {
		logger.Error("failed to deliver update", "update_id", u.UpdateID, "error", err)
		return err
	}
	return nil
}
