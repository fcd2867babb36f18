package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cbt-go-api/internal/dto"
	"github.com/noah-isme/cbt-go-api/internal/observability"
	"github.com/noah-isme/cbt-go-api/internal/policy"
	"github.com/noah-isme/cbt-go-api/internal/repository"
)

const (
	monitorSendBufferSize = 32
	monitorPingInterval   = 30 * time.Second
)

// MonitorPublisher pushes live exam events to teachers watching the exam.
type MonitorPublisher interface {
	Publish(ctx context.Context, event dto.MonitorEvent)
}

// MonitorConn is the subset of a websocket connection used by the monitor.
type MonitorConn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// ExamMonitorService streams attempt activity of an exam over websockets.
type ExamMonitorService interface {
	MonitorPublisher
	Authorize(ctx context.Context, principal policy.Principal, examID uint) error
	ServeConnection(conn MonitorConn, examID uint, principal policy.Principal)
	Start(ctx context.Context)
}

type examMonitorService struct {
	exams        repository.ExamRepository
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	hub          *monitorHub
	nodeID       string
}

type monitorHub struct {
	mu    sync.RWMutex
	exams map[uint]map[*monitorClient]struct{}
	log   zerolog.Logger
}

type monitorClient struct {
	conn   MonitorConn
	examID uint
	userID uint
	send   chan dto.MonitorEvent
	closed chan struct{}
	once   sync.Once
	hub    *monitorHub
	logger zerolog.Logger
}

type monitorEnvelope struct {
	Source string           `json:"source"`
	Event  dto.MonitorEvent `json:"event"`
}

// NewExamMonitorService constructs the monitor. Redis and NATS are optional fan-out transports.
func NewExamMonitorService(exams repository.ExamRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) ExamMonitorService {
	channel, subject := realtimeTopics(channelBase, "exam-monitor")

	return &examMonitorService{
		exams:        exams,
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "exam_monitor_service").Logger(),
		hub: &monitorHub{
			exams: make(map[uint]map[*monitorClient]struct{}),
			log:   logger.With().Str("component", "exam_monitor_hub").Logger(),
		},
		nodeID: uuid.NewString(),
	}
}

func (s *examMonitorService) Start(ctx context.Context) {
	if s.redis != nil && s.redisChannel != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

// Authorize checks that the principal may watch the exam. It runs before the websocket upgrade.
func (s *examMonitorService) Authorize(ctx context.Context, principal policy.Principal, examID uint) error {
	exam, err := loadExam(ctx, s.exams, examID, false)
	if err != nil {
		return err
	}
	return policy.Evaluate(principal, policy.ExamManage, examResource(exam))
}

// ServeConnection blocks until the client disconnects.
func (s *examMonitorService) ServeConnection(conn MonitorConn, examID uint, principal policy.Principal) {
	client := &monitorClient{
		conn:   conn,
		examID: examID,
		userID: principal.UserID,
		send:   make(chan dto.MonitorEvent, monitorSendBufferSize),
		closed: make(chan struct{}),
		hub:    s.hub,
		logger: s.logger,
	}

	s.hub.register(client)
	observability.MonitorClientsActive().Inc()
	defer observability.MonitorClientsActive().Dec()

	go client.writer()
	client.reader()
}

func (s *examMonitorService) Publish(ctx context.Context, event dto.MonitorEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	s.hub.broadcast(event)

	payload, err := json.Marshal(monitorEnvelope{Source: s.nodeID, Event: event})
	if err != nil {
		observability.Logger(ctx, s.logger).Warn().Err(err).Msg("failed to encode monitor event")
		return
	}
	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			observability.Logger(ctx, s.logger).Warn().Err(err).Msg("failed to publish monitor event to redis")
		}
	}
	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			observability.Logger(ctx, s.logger).Warn().Err(err).Msg("failed to publish monitor event to nats")
		}
	}
}

func (s *examMonitorService) consumeRedis(ctx context.Context) {
	relayRedis(ctx, s.redis, s.redisChannel, s.logger, relayRetryInitial, relayRetryMax, s.handleEvent)
}

func (s *examMonitorService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats monitor subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain monitor nats subscription")
		}
	}()
}

func (s *examMonitorService) handleEvent(data []byte) {
	var envelope monitorEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid monitor event")
		return
	}
	if envelope.Source == s.nodeID {
		return
	}
	s.hub.broadcast(envelope.Event)
}

func (h *monitorHub) register(client *monitorClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.exams[client.examID]; !exists {
		h.exams[client.examID] = make(map[*monitorClient]struct{})
	}
	h.exams[client.examID][client] = struct{}{}
	h.log.Debug().Uint("exam_id", client.examID).Uint("user_id", client.userID).Msg("monitor client connected")
}

func (h *monitorHub) unregister(client *monitorClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.exams[client.examID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.exams, client.examID)
		}
	}
	h.log.Debug().Uint("exam_id", client.examID).Uint("user_id", client.userID).Msg("monitor client disconnected")
}

func (h *monitorHub) clients(examID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.exams[examID])
}

func (h *monitorHub) broadcast(event dto.MonitorEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.exams[event.ExamID] {
		select {
		case client.send <- event:
		default:
			h.log.Warn().Uint("exam_id", event.ExamID).Uint("user_id", client.userID).Msg("dropping monitor event for slow client")
		}
	}
}

// reader drains inbound frames; the monitor is push-only and reading detects disconnects.
func (c *monitorClient) reader() {
	defer c.close()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logger.Debug().Err(err).Msg("monitor read loop ended")
			return
		}
	}
}

func (c *monitorClient) writer() {
	defer c.close()

	ticker := time.NewTicker(monitorPingInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-c.send:
			if err := c.conn.WriteJSON(event); err != nil {
				c.logger.Debug().Err(err).Msg("monitor write loop terminated")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.logger.Debug().Err(err).Msg("monitor ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *monitorClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.hub.unregister(c)
		_ = c.conn.Close()
	})
}
