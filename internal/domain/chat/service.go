package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/yanqian/pollenpilot/internal/domain/pollen"
	apperrors "github.com/yanqian/pollenpilot/pkg/errors"
	"github.com/yanqian/pollenpilot/pkg/metrics"
	"github.com/yanqian/pollenpilot/pkg/util"
)

// isoMillis matches JavaScript's Date.prototype.toISOString.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

const emptyCompletionReply = "Sorry, I could not process your request."

// Service exposes the chat session workflows.
type Service interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	SendMessage(ctx context.Context, sessionID string, req SendMessageRequest) (SendMessageResponse, error)
	RecordRating(ctx context.Context, req RatingRequest) (Rating, error)
	Export(ctx context.Context, sessionID string) (Export, error)
	Scenarios() []pollen.Scenario
	Flows() []FlowInfo
}

type service struct {
	cfg       Config
	store     SessionStore
	completer Completer
	counter   TokenCounter
	archiver  Archiver
	validate  *validator.Validate
	logger    *slog.Logger
	location  *time.Location
	now       func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sessionLock
}

// sessionLock is held by every in-flight turn on one session and dropped
// from the table when the last of them finishes.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewService wires up the chat domain. counter and archiver are optional.
func NewService(cfg Config, store SessionStore, completer Completer, counter TokenCounter, archiver Archiver, location *time.Location, logger *slog.Logger) Service {
	if strings.TrimSpace(cfg.ConfidenceLabel) == "" {
		cfg.ConfidenceLabel = "High"
	}
	if location == nil {
		location = util.LoadZone(util.MelbourneZone, logger)
	}
	return &service{
		cfg:       cfg,
		store:     store,
		completer: completer,
		counter:   counter,
		archiver:  archiver,
		validate:  validator.New(),
		logger:    logger.With("component", "chat.service"),
		location:  location,
		now:       time.Now,
	}
}

func (s *service) CreateSession(ctx context.Context, req CreateSessionRequest) (Session, error) {
	req.Scenario = strings.TrimSpace(req.Scenario)
	req.Flow = strings.TrimSpace(req.Flow)
	if err := s.validate.Struct(req); err != nil {
		return Session{}, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid request data", err)
	}
	messages := req.Messages
	if messages == nil {
		messages = []Message{}
	}
	session, err := s.store.CreateSession(ctx, req.Scenario, req.Flow, messages)
	if err != nil {
		return Session{}, apperrors.Wrap(apperrors.CodeStorage, "failed to create chat session", err)
	}
	s.logger.Info("chat session created", "session_id", session.ID, "scenario", session.Scenario, "flow", session.Flow)
	return session, nil
}

func (s *service) GetSession(ctx context.Context, id string) (Session, error) {
	return s.loadSession(ctx, id)
}

func (s *service) SendMessage(ctx context.Context, sessionID string, req SendMessageRequest) (SendMessageResponse, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return SendMessageResponse{}, apperrors.Wrap(apperrors.CodeInvalidInput, "message cannot be empty", nil)
	}
	inheritScenario := req.Scenario.IsZero()
	var scenario pollen.Scenario
	if !inheritScenario {
		resolved, err := s.resolveScenario(req.Scenario)
		if err != nil {
			return SendMessageResponse{}, err
		}
		scenario = resolved
	}

	unlock := s.lockSession(sessionID)
	defer unlock()

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return SendMessageResponse{}, err
	}
	if inheritScenario {
		found, ok := pollen.FindScenario(session.Scenario)
		if !ok {
			return SendMessageResponse{}, apperrors.Wrap(apperrors.CodeInvalidInput, "scenario is required", nil)
		}
		scenario = found
	}
	flow := req.Flow
	if strings.TrimSpace(string(flow)) == "" {
		flow = pollen.Flow(session.Flow)
	}

	messages := make([]Message, 0, len(session.Messages)+2)
	messages = append(messages, session.Messages...)
	messages = append(messages, Message{
		Role:      RoleUser,
		Content:   req.Message,
		Timestamp: s.timestamp(),
	})

	system := pollen.BuildSystemPrompt(scenario, flow, util.ClockTime(s.now(), s.location))
	reply, usage, source, err := s.reply(ctx, system, req.Message, scenario, flow)
	if err != nil {
		metrics.ChatTurnsFailed.WithLabelValues(apperrors.CodeLLM).Inc()
		return SendMessageResponse{}, apperrors.Wrap(apperrors.CodeLLM, "failed to process message", err)
	}

	assistant := Message{
		Role:       RoleAssistant,
		Content:    reply,
		Timestamp:  s.timestamp(),
		Confidence: s.cfg.ConfidenceLabel,
		Scenario:   scenario.Name,
	}
	if !usage.IsZero() {
		u := usage
		assistant.TokenUsage = &u
	}
	messages = append(messages, assistant)

	updated, err := s.store.UpdateSession(ctx, sessionID, messages)
	if err != nil {
		metrics.ChatTurnsFailed.WithLabelValues(apperrors.CodeStorage).Inc()
		if errors.Is(err, ErrSessionNotFound) {
			return SendMessageResponse{}, apperrors.Wrap(apperrors.CodeNotFound, "chat session not found", err)
		}
		return SendMessageResponse{}, apperrors.Wrap(apperrors.CodeStorage, "failed to process message", err)
	}

	metrics.ChatTurns.WithLabelValues(flowMetricLabel(flow), source).Inc()
	s.logger.Info("chat turn completed", "session_id", sessionID, "flow", string(flow), "scenario", scenario.Name, "source", source, "messages", len(updated.Messages))
	return SendMessageResponse{Message: assistant, Session: updated}, nil
}

// reply asks the completion service and substitutes the fallback reply when
// the credentials are rejected. Any other failure is returned as-is.
func (s *service) reply(ctx context.Context, system, userText string, scenario pollen.Scenario, flow pollen.Flow) (string, metrics.TokenUsage, string, error) {
	callCtx := ctx
	if s.cfg.CompletionTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.cfg.CompletionTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.completer.Complete(callCtx, CompletionRequest{
		SystemInstruction: system,
		UserText:          userText,
		Model:             s.cfg.Model,
		MaxOutputTokens:   s.cfg.MaxOutputTokens,
	})
	elapsed := time.Since(start).Seconds()

	if err != nil {
		if errors.Is(err, ErrCompletionUnauthorized) {
			metrics.CompletionDuration.WithLabelValues("unauthorized").Observe(elapsed)
			s.logger.Warn("completion credentials rejected, using fallback reply", "flow", string(flow), "error", err)
			text := pollen.FallbackReply(userText, scenario, flow)
			return text, s.estimateUsage(system, userText, text), metrics.SourceFallback, nil
		}
		metrics.CompletionDuration.WithLabelValues("error").Observe(elapsed)
		s.logger.Error("completion request failed", "flow", string(flow), "error", err)
		return "", metrics.TokenUsage{}, "", err
	}
	metrics.CompletionDuration.WithLabelValues("ok").Observe(elapsed)

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		text = emptyCompletionReply
	}
	usage := resp.Usage
	if usage.IsZero() {
		usage = s.estimateUsage(system, userText, text)
	}
	return text, usage, metrics.SourceCompletion, nil
}

func (s *service) RecordRating(ctx context.Context, req RatingRequest) (Rating, error) {
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.Rating = strings.TrimSpace(req.Rating)
	if err := s.validate.Struct(req); err != nil {
		return Rating{}, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid rating data", err)
	}
	rating, err := s.store.RecordRating(ctx, req.SessionID, req.MessageIndex, req.Rating)
	if err != nil {
		return Rating{}, apperrors.Wrap(apperrors.CodeStorage, "failed to record rating", err)
	}
	metrics.Ratings.WithLabelValues(rating.Rating).Inc()
	return rating, nil
}

func (s *service) Export(ctx context.Context, sessionID string) (Export, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return Export{}, err
	}
	now := s.now()
	snapshot := Export{
		SessionID:  session.ID,
		Scenario:   session.Scenario,
		Flow:       session.Flow,
		CreatedAt:  session.CreatedAt,
		Messages:   session.Messages,
		ExportedAt: now.UTC().Format(isoMillis),
	}
	if snapshot.Messages == nil {
		snapshot.Messages = []Message{}
	}
	s.archive(ctx, snapshot, now)
	return snapshot, nil
}

func (s *service) archive(ctx context.Context, snapshot Export, at time.Time) {
	if s.archiver == nil {
		return
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		s.logger.Warn("export snapshot encode failed", "session_id", snapshot.SessionID, "error", err)
		return
	}
	key := fmt.Sprintf("%spollenpilot-chat-%s-%d.json", s.cfg.ArchivePrefix, snapshot.SessionID, at.Unix())
	if err := s.archiver.Archive(ctx, key, payload); err != nil {
		s.logger.Warn("export archive failed", "session_id", snapshot.SessionID, "key", key, "error", err)
		return
	}
	s.logger.Info("export archived", "session_id", snapshot.SessionID, "key", key)
}

func (s *service) Scenarios() []pollen.Scenario {
	return pollen.Scenarios()
}

func (s *service) Flows() []FlowInfo {
	flows := pollen.Flows()
	out := make([]FlowInfo, 0, len(flows))
	for _, f := range flows {
		out = append(out, FlowInfo{Name: f, Description: f.Description()})
	}
	return out
}

// ExportFilename is the download name for a session export.
func ExportFilename(sessionID string) string {
	return "pollenpilot-chat-" + sessionID + ".json"
}

func (s *service) loadSession(ctx context.Context, id string) (Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Session{}, apperrors.Wrap(apperrors.CodeNotFound, "chat session not found", nil)
	}
	session, found, err := s.store.GetSession(ctx, id)
	if err != nil {
		return Session{}, apperrors.Wrap(apperrors.CodeStorage, "failed to load chat session", err)
	}
	if !found {
		return Session{}, apperrors.Wrap(apperrors.CodeNotFound, "chat session not found", nil)
	}
	return session, nil
}

func (s *service) resolveScenario(in pollen.Scenario) (pollen.Scenario, error) {
	if strings.TrimSpace(in.Name) == "" {
		return pollen.Scenario{}, apperrors.Wrap(apperrors.CodeInvalidInput, "scenario name is required", nil)
	}
	if in.IsNameOnly() {
		found, ok := pollen.FindScenario(in.Name)
		if !ok {
			return pollen.Scenario{}, apperrors.Wrap(apperrors.CodeInvalidInput, fmt.Sprintf("unknown scenario %q", in.Name), nil)
		}
		return found, nil
	}
	if err := s.validate.Struct(in); err != nil {
		return pollen.Scenario{}, apperrors.Wrap(apperrors.CodeInvalidInput, "invalid scenario", err)
	}
	return in, nil
}

func (s *service) estimateUsage(system, userText, reply string) metrics.TokenUsage {
	if s.counter == nil {
		return metrics.TokenUsage{}
	}
	prompt := s.counter.Count(system) + s.counter.Count(userText)
	completion := s.counter.Count(reply)
	return metrics.TokenUsage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
		Estimated:        true,
	}
}

// lockSession serialises turns on the same session within this process.
// Entries live only while a turn holds or waits on them.
func (s *service) lockSession(id string) func() {
	id = strings.TrimSpace(id)
	s.locksMu.Lock()
	if s.locks == nil {
		s.locks = make(map[string]*sessionLock)
	}
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.locksMu.Unlock()
	}
}

func (s *service) timestamp() string {
	return s.now().UTC().Format(isoMillis)
}

func flowMetricLabel(flow pollen.Flow) string {
	for _, known := range pollen.Flows() {
		if flow == known {
			return string(flow)
		}
	}
	return "other"
}
