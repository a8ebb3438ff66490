package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/trailmark/geotrack-agent/internal/queue"
	"github.com/trailmark/geotrack-agent/pkg/mqtt"
)

// SenderService drains the delivery queue, republishing buffered fixes
// oldest-first. Failed sends bump the record's retry count and back off
// exponentially; records over the retry cap are dropped.
type SenderService struct {
	// Configuration fields
	topic      string
	interval   time.Duration
	qos        int
	maxRetries int
	baseDelay  time.Duration
	maxBackoff time.Duration

	// Dependencies
	mqttClient    mqtt.MQTTClient
	deliveryQueue *queue.DeliveryQueue
	logger        zerolog.Logger

	// Internal state management
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewSenderService creates a new SenderService instance.
func NewSenderService(topic string, interval time.Duration, qos, maxRetries int,
	baseDelay, maxBackoff time.Duration, mqttClient mqtt.MQTTClient,
	deliveryQueue *queue.DeliveryQueue, logger zerolog.Logger) *SenderService {
	return &SenderService{
		topic:         topic,
		interval:      interval,
		qos:           qos,
		maxRetries:    maxRetries,
		baseDelay:     baseDelay,
		maxBackoff:    maxBackoff,
		mqttClient:    mqttClient,
		deliveryQueue: deliveryQueue,
		logger:        logger,
	}
}

// Start launches the drain loop.
func (s *SenderService) Start() error {
	if s.running {
		s.logger.Warn().Msg("SenderService is already running")
		return errors.New("sender service is already running")
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.running = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.drainQueue()
			case <-s.ctx.Done():
				s.logger.Info().Msg("SenderService is stopping")
				return
			}
		}
	}()

	s.logger.Info().
		Str("topic", s.topic).
		Dur("interval", s.interval).
		Int("max_retries", s.maxRetries).
		Msg("SenderService started")
	return nil
}

// Stop terminates the drain loop.
func (s *SenderService) Stop() error {
	if !s.running {
		s.logger.Warn().Msg("SenderService is not running")
		return errors.New("sender service is not running")
	}

	s.cancel()
	s.wg.Wait()
	s.running = false

	s.logger.Info().Msg("SenderService stopped")
	return nil
}

// drainQueue attempts one delivery pass over the pending records.
func (s *SenderService) drainQueue() {
	records := s.deliveryQueue.Snapshot()
	if len(records) == 0 {
		return
	}

	s.logger.Debug().Int("pending", len(records)).Msg("Draining delivery queue")

	for _, record := range records {
		payload, err := json.Marshal(record.Payload)
		if err != nil {
			s.logger.Error().Err(err).Str("id", record.ID).Msg("Unserializable record, dropping")
			s.deliveryQueue.Remove(record.ID)
			continue
		}

		token := s.mqttClient.Publish(s.topic, byte(s.qos), false, payload)
		token.Wait()

		if err := token.Error(); err != nil {
			s.deliveryQueue.IncrementRetry(record.ID)
			s.logger.Warn().
				Err(err).
				Str("id", record.ID).
				Int("retry_count", record.RetryCount+1).
				Msg("Failed to deliver buffered fix")

			if !s.sleep(s.backoff(record.RetryCount + 1)) {
				return
			}
			continue
		}

		s.deliveryQueue.Remove(record.ID)
	}

	if dropped := s.deliveryQueue.RemoveExceedingRetries(s.maxRetries); dropped > 0 {
		s.logger.Warn().Int("dropped", dropped).Msg("Dropped records that exhausted retries")
	}
}

// backoff computes the exponential delay for the given attempt, capped at
// maxBackoff.
func (s *SenderService) backoff(attempt int) time.Duration {
	delay := s.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= s.maxBackoff {
			return s.maxBackoff
		}
	}
	if delay > s.maxBackoff {
		return s.maxBackoff
	}
	return delay
}

// sleep waits for d unless the service is stopping; it reports whether the
// caller should keep going.
func (s *SenderService) sleep(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-s.ctx.Done():
		return false
	}
}
