package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"gorm.io/gorm"
)

// ResultEvent is broadcast whenever a result becomes visible to a student,
// whether by auto-grading, suspension or a release sweep. Downstream
// notification services fan it out to clients.
type ResultEvent struct {
	Source    string    `json:"source"`
	ExamID    string    `json:"exam_id"`
	StudentID string    `json:"student_id"`
	ResultID  string    `json:"result_id"`
	Status    string    `json:"status"`
	Total     float64   `json:"total"`
	Trigger   string    `json:"trigger"`
	SentAt    time.Time `json:"sent_at"`
}

// ResultEventPublisher publishes result lifecycle events to the brokers.
type ResultEventPublisher interface {
	ResultPublished(ctx context.Context, event ResultEvent) error
}

type resultEventPublisher struct {
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	nodeID      string
}

// NewResultEventPublisher constructs a broker-backed publisher. Either
// client may be nil; publishing degrades to whichever broker is configured
// and becomes a no-op with none.
func NewResultEventPublisher(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) ResultEventPublisher {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":results"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".results"
	}

	return &resultEventPublisher{
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "result_events").Logger(),
		nodeID:      uuid.NewString(),
	}
}

func (p *resultEventPublisher) ResultPublished(ctx context.Context, event ResultEvent) error {
	event.Source = p.nodeID
	event.SentAt = time.Now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if p.redis != nil && p.redisStream != "" {
		if err := p.redis.Publish(ctx, p.redisStream, payload).Err(); err != nil {
			return err
		}
	}

	if p.nats != nil && p.natsSubject != "" {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
