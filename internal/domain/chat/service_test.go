package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/pollenpilot/internal/domain/pollen"
	apperrors "github.com/yanqian/pollenpilot/pkg/errors"
	"github.com/yanqian/pollenpilot/pkg/metrics"
)

func TestSendMessageSuccessAppendsBothTurns(t *testing.T) {
	store := newStubStore()
	session := seedSession(t, store, pollen.FlowActivityPlanning)
	completer := &stubCompleter{resp: CompletionResponse{
		Text:  "  Run between 6-8am tomorrow.  ",
		Usage: metrics.TokenUsage{PromptTokens: 120, CompletionTokens: 9, TotalTokens: 129},
	}}
	svc := newTestService(store, completer)

	scenario, _ := pollen.FindScenario("Southerly Relief")
	resp, err := svc.SendMessage(context.Background(), session.ID, SendMessageRequest{
		Message:  "Can I run?",
		Scenario: scenario,
		Flow:     pollen.FlowActivityPlanning,
	})
	require.NoError(t, err)

	require.Equal(t, RoleAssistant, resp.Message.Role)
	require.Equal(t, "Run between 6-8am tomorrow.", resp.Message.Content)
	require.Equal(t, "High", resp.Message.Confidence)
	require.Equal(t, "Southerly Relief", resp.Message.Scenario)
	require.Equal(t, "2024-11-06T02:30:00.000Z", resp.Message.Timestamp)
	require.NotNil(t, resp.Message.TokenUsage)
	require.Equal(t, 129, resp.Message.TokenUsage.TotalTokens)
	require.False(t, resp.Message.TokenUsage.Estimated)

	require.Len(t, resp.Session.Messages, 2)
	require.Equal(t, RoleUser, resp.Session.Messages[0].Role)
	require.Equal(t, "Can I run?", resp.Session.Messages[0].Content)
	require.Equal(t, resp.Message, resp.Session.Messages[1])

	require.Equal(t, 1, completer.calls)
	require.Equal(t, "Can I run?", completer.last.UserText)
	require.Equal(t, "claude-test", completer.last.Model)
	require.Equal(t, 800, completer.last.MaxOutputTokens)
	require.Contains(t, completer.last.SystemInstruction, "CURRENT TIME: 13:30")
	require.Contains(t, completer.last.SystemInstruction, "Current flow context: Activity Planning")
}

func TestSendMessageUnauthorizedUsesFallbackReply(t *testing.T) {
	store := newStubStore()
	session := seedSession(t, store, pollen.FlowMorningCheckIn)
	completer := &stubCompleter{err: fmt.Errorf("%w: status 401", ErrCompletionUnauthorized)}
	svc := newTestService(store, completer)

	scenario, _ := pollen.FindScenario("Classic Bad Day - Melbourne Cup Day")
	resp, err := svc.SendMessage(context.Background(), session.ID, SendMessageRequest{
		Message:  "Morning!",
		Scenario: scenario,
		Flow:     pollen.FlowMorningCheckIn,
	})
	require.NoError(t, err)

	require.Equal(t, pollen.FallbackReply("Morning!", scenario, pollen.FlowMorningCheckIn), resp.Message.Content)
	require.Equal(t, "High", resp.Message.Confidence)
	require.NotNil(t, resp.Message.TokenUsage)
	require.True(t, resp.Message.TokenUsage.Estimated)
	require.Len(t, resp.Session.Messages, 2)
}

func TestSendMessageCompletionFailurePersistsNothing(t *testing.T) {
	store := newStubStore()
	session := seedSession(t, store, pollen.FlowGeneral)
	svc := newTestService(store, &stubCompleter{err: errors.New("upstream returned 529")})

	scenario, _ := pollen.FindScenario("Deceptive Calm")
	_, err := svc.SendMessage(context.Background(), session.ID, SendMessageRequest{
		Message:  "hello",
		Scenario: scenario,
		Flow:     pollen.FlowGeneral,
	})
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, apperrors.CodeLLM))
	require.Contains(t, err.Error(), "failed to process message")

	stored, found, err := store.GetSession(context.Background(), session.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Empty(t, stored.Messages)
	require.Equal(t, 0, store.updates)
}

func TestSendMessageEmptyCompletionTextUsesApology(t *testing.T) {
	store := newStubStore()
	session := seedSession(t, store, pollen.FlowGeneral)
	svc := newTestService(store, &stubCompleter{resp: CompletionResponse{Text: "   "}})

	scenario, _ := pollen.FindScenario("Deceptive Calm")
	resp, err := svc.SendMessage(context.Background(), session.ID, SendMessageRequest{
		Message:  "hello",
		Scenario: scenario,
		Flow:     pollen.FlowGeneral,
	})
	require.NoError(t, err)
	require.Equal(t, "Sorry, I could not process your request.", resp.Message.Content)
	require.NotNil(t, resp.Message.TokenUsage)
	require.True(t, resp.Message.TokenUsage.Estimated)
}

func TestSendMessageUnknownSession(t *testing.T) {
	completer := &stubCompleter{}
	svc := newTestService(newStubStore(), completer)

	scenario, _ := pollen.FindScenario("Deceptive Calm")
	_, err := svc.SendMessage(context.Background(), "missing", SendMessageRequest{
		Message:  "hello",
		Scenario: scenario,
	})
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
	require.Equal(t, 0, completer.calls)
}

func TestSendMessageValidation(t *testing.T) {
	store := newStubStore()
	session := seedSession(t, store, pollen.FlowGeneral)
	completer := &stubCompleter{}
	svc := newTestService(store, completer)
	scenario, _ := pollen.FindScenario("Deceptive Calm")

	_, err := svc.SendMessage(context.Background(), session.ID, SendMessageRequest{Message: "   ", Scenario: scenario})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))

	_, err = svc.SendMessage(context.Background(), session.ID, SendMessageRequest{Message: "hi"})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))

	_, err = svc.SendMessage(context.Background(), session.ID, SendMessageRequest{
		Message:  "hi",
		Scenario: pollen.Scenario{Name: "Nowhere Special"},
	})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))

	bad := scenario
	bad.Humidity = 140
	_, err = svc.SendMessage(context.Background(), session.ID, SendMessageRequest{Message: "hi", Scenario: bad})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))

	require.Equal(t, 0, completer.calls)
}

func TestSendMessageResolvesNameOnlyScenarioAndSessionFlow(t *testing.T) {
	store := newStubStore()
	session := seedSession(t, store, pollen.FlowBadDayRecovery)
	completer := &stubCompleter{resp: CompletionResponse{Text: "Rinse your eyes."}}
	svc := newTestService(store, completer)

	resp, err := svc.SendMessage(context.Background(), session.ID, SendMessageRequest{
		Message:  "My eyes are itchy",
		Scenario: pollen.Scenario{Name: "thunderstorm asthma risk"},
	})
	require.NoError(t, err)
	require.Equal(t, "Thunderstorm Asthma Risk", resp.Message.Scenario)
	require.Contains(t, completer.last.SystemInstruction, "Grass pollen: 72 grains/m³ (Extreme)")
	require.Contains(t, completer.last.SystemInstruction, "Current flow context: Bad Day Recovery")
}

func TestSendMessagePreservesHistoryOrder(t *testing.T) {
	store := newStubStore()
	session := seedSession(t, store, pollen.FlowGeneral)
	svc := newTestService(store, &stubCompleter{resp: CompletionResponse{Text: "ok"}})
	scenario, _ := pollen.FindScenario("Southerly Relief")

	for i := 0; i < 3; i++ {
		_, err := svc.SendMessage(context.Background(), session.ID, SendMessageRequest{
			Message:  fmt.Sprintf("question %d", i),
			Scenario: scenario,
		})
		require.NoError(t, err)
	}

	stored, _, err := store.GetSession(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 6)
	for i := 0; i < 3; i++ {
		require.Equal(t, fmt.Sprintf("question %d", i), stored.Messages[2*i].Content)
		require.Equal(t, RoleAssistant, stored.Messages[2*i+1].Role)
	}
}

func TestSendMessageConcurrentTurnsAreSerialised(t *testing.T) {
	store := newStubStore()
	session := seedSession(t, store, pollen.FlowGeneral)
	svc := newTestService(store, &stubCompleter{resp: CompletionResponse{Text: "ok"}})
	scenario, _ := pollen.FindScenario("Southerly Relief")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.SendMessage(context.Background(), session.ID, SendMessageRequest{
				Message:  fmt.Sprintf("q%d", i),
				Scenario: scenario,
			})
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stored, _, err := store.GetSession(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, stored.Messages, 16)
	require.Zero(t, lockCount(svc))
}

func TestSendMessageUnknownSessionsLeaveNoLocks(t *testing.T) {
	completer := &stubCompleter{}
	svc := newTestService(newStubStore(), completer)
	scenario, _ := pollen.FindScenario("Deceptive Calm")

	for i := 0; i < 1000; i++ {
		_, err := svc.SendMessage(context.Background(), fmt.Sprintf("bogus-%d", i), SendMessageRequest{
			Message:  "hello",
			Scenario: scenario,
		})
		require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
	}
	require.Zero(t, lockCount(svc))
	require.Equal(t, 0, completer.calls)
}

func TestSendMessageWithoutScenarioUsesSessionScenario(t *testing.T) {
	store := newStubStore()
	session, err := store.CreateSession(context.Background(), "Southerly Relief", string(pollen.FlowGeneral), []Message{})
	require.NoError(t, err)
	completer := &stubCompleter{resp: CompletionResponse{Text: "Enjoy the cool change."}}
	svc := newTestService(store, completer)

	resp, err := svc.SendMessage(context.Background(), session.ID, SendMessageRequest{Message: "Is today ok?"})
	require.NoError(t, err)
	require.Equal(t, "Southerly Relief", resp.Message.Scenario)
	require.Contains(t, completer.last.SystemInstruction, "Grass pollen: 15 grains/m³ (Low)")

	orphan := seedSession(t, store, pollen.FlowGeneral)
	_, err = svc.SendMessage(context.Background(), orphan.ID, SendMessageRequest{Message: "Is today ok?"})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
	require.Contains(t, err.Error(), "scenario is required")
	require.NotContains(t, err.Error(), "Key: 'Scenario")

	_, err = svc.SendMessage(context.Background(), orphan.ID, SendMessageRequest{
		Message:  "Is today ok?",
		Scenario: pollen.Scenario{RiskLevel: "High"},
	})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
	require.Contains(t, err.Error(), "scenario name is required")
}

func TestSendMessageStorageFailure(t *testing.T) {
	store := newStubStore()
	session := seedSession(t, store, pollen.FlowGeneral)
	store.updateErr = errors.New("disk full")
	svc := newTestService(store, &stubCompleter{resp: CompletionResponse{Text: "ok"}})
	scenario, _ := pollen.FindScenario("Southerly Relief")

	_, err := svc.SendMessage(context.Background(), session.ID, SendMessageRequest{Message: "hi", Scenario: scenario})
	require.True(t, apperrors.IsCode(err, apperrors.CodeStorage))
}

func TestCreateSessionValidation(t *testing.T) {
	svc := newTestService(newStubStore(), &stubCompleter{})

	_, err := svc.CreateSession(context.Background(), CreateSessionRequest{Flow: "General"})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))

	session, err := svc.CreateSession(context.Background(), CreateSessionRequest{
		Scenario: "Deceptive Calm",
		Flow:     "General",
	})
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)
	require.NotNil(t, session.Messages)
	require.Empty(t, session.Messages)
}

func TestRecordRating(t *testing.T) {
	store := newStubStore()
	svc := newTestService(store, &stubCompleter{})

	rating, err := svc.RecordRating(context.Background(), RatingRequest{
		SessionID:    "any-session",
		MessageIndex: 1,
		Rating:       RatingPositive,
	})
	require.NoError(t, err)
	require.Equal(t, "any-session", rating.SessionID)
	require.Equal(t, 1, rating.MessageIndex)
	require.Equal(t, RatingPositive, rating.Rating)

	for _, req := range []RatingRequest{
		{SessionID: "s", MessageIndex: 0, Rating: "meh"},
		{SessionID: "", MessageIndex: 0, Rating: RatingNegative},
		{SessionID: "s", MessageIndex: -1, Rating: RatingNegative},
	} {
		_, err := svc.RecordRating(context.Background(), req)
		require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput), "%+v", req)
	}
	require.Len(t, store.ratings, 1)
}

func TestExportSnapshotAndArchive(t *testing.T) {
	store := newStubStore()
	session := seedSession(t, store, pollen.FlowGeneral)
	archiver := &stubArchiver{}
	svc := newTestService(store, &stubCompleter{resp: CompletionResponse{Text: "ok"}})
	svc.archiver = archiver
	svc.cfg.ArchivePrefix = "exports/"
	scenario, _ := pollen.FindScenario("Southerly Relief")

	_, err := svc.SendMessage(context.Background(), session.ID, SendMessageRequest{Message: "hi", Scenario: scenario})
	require.NoError(t, err)

	export, err := svc.Export(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, session.ID, export.SessionID)
	require.Equal(t, session.Scenario, export.Scenario)
	require.Equal(t, session.Flow, export.Flow)
	require.Len(t, export.Messages, 2)
	require.Equal(t, "2024-11-06T02:30:00.000Z", export.ExportedAt)

	require.Len(t, archiver.keys, 1)
	require.True(t, strings.HasPrefix(archiver.keys[0], "exports/pollenpilot-chat-"+session.ID))
	var archived Export
	require.NoError(t, json.Unmarshal(archiver.payloads[0], &archived))
	require.Equal(t, export.Messages, archived.Messages)

	_, err = svc.Export(context.Background(), "missing")
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestExportSurvivesArchiveFailure(t *testing.T) {
	store := newStubStore()
	session := seedSession(t, store, pollen.FlowGeneral)
	svc := newTestService(store, &stubCompleter{})
	svc.archiver = &stubArchiver{err: errors.New("bucket gone")}

	export, err := svc.Export(context.Background(), session.ID)
	require.NoError(t, err)
	require.NotNil(t, export.Messages)
}

func TestFlowsListsEveryFlow(t *testing.T) {
	svc := newTestService(newStubStore(), &stubCompleter{})
	flows := svc.Flows()
	require.Len(t, flows, len(pollen.Flows()))
	for _, f := range flows {
		require.NotEmpty(t, f.Description)
	}
	require.Len(t, svc.Scenarios(), 4)
}

func TestExportFilename(t *testing.T) {
	require.Equal(t, "pollenpilot-chat-abc.json", ExportFilename("abc"))
}

func lockCount(svc *service) int {
	svc.locksMu.Lock()
	defer svc.locksMu.Unlock()
	return len(svc.locks)
}

func newTestService(store SessionStore, completer Completer) *service {
	return &service{
		cfg: Config{
			Model:           "claude-test",
			MaxOutputTokens: 800,
			ConfidenceLabel: "High",
		},
		store:     store,
		completer: completer,
		counter:   wordCounter{},
		validate:  validator.New(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		location:  time.FixedZone("AEDT", 11*60*60),
		now: func() time.Time {
			return time.Date(2024, 11, 6, 2, 30, 0, 0, time.UTC)
		},
	}
}

func seedSession(t *testing.T, store *stubStore, flow pollen.Flow) Session {
	t.Helper()
	session, err := store.CreateSession(context.Background(), "Test Scenario", string(flow), []Message{})
	require.NoError(t, err)
	return session
}

type stubCompleter struct {
	mu    sync.Mutex
	resp  CompletionResponse
	err   error
	calls int
	last  CompletionRequest
}

func (s *stubCompleter) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.last = req
	if s.err != nil {
		return CompletionResponse{}, s.err
	}
	return s.resp, nil
}

type wordCounter struct{}

func (wordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

type stubArchiver struct {
	keys     []string
	payloads [][]byte
	err      error
}

func (s *stubArchiver) Archive(_ context.Context, key string, payload []byte) error {
	if s.err != nil {
		return s.err
	}
	s.keys = append(s.keys, key)
	s.payloads = append(s.payloads, payload)
	return nil
}

type stubStore struct {
	mu        sync.Mutex
	seq       int
	sessions  map[string]Session
	ratings   []Rating
	updates   int
	updateErr error
}

func newStubStore() *stubStore {
	return &stubStore{sessions: make(map[string]Session)}
}

func (s *stubStore) CreateSession(_ context.Context, scenario, flow string, messages []Message) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	session := Session{
		ID:        fmt.Sprintf("session-%d", s.seq),
		Scenario:  scenario,
		Flow:      flow,
		Messages:  append([]Message{}, messages...),
		CreatedAt: time.Date(2024, 11, 6, 0, 0, 0, 0, time.UTC),
	}
	s.sessions[session.ID] = session
	return session, nil
}

func (s *stubStore) GetSession(_ context.Context, id string) (Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return Session{}, false, nil
	}
	session.Messages = append([]Message{}, session.Messages...)
	return session, true, nil
}

func (s *stubStore) UpdateSession(_ context.Context, id string, messages []Message) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return Session{}, s.updateErr
	}
	session, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	s.updates++
	session.Messages = append([]Message{}, messages...)
	s.sessions[id] = session
	return session, nil
}

func (s *stubStore) RecordRating(_ context.Context, sessionID string, messageIndex int, rating string) (Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := Rating{
		ID:           fmt.Sprintf("rating-%d", len(s.ratings)+1),
		SessionID:    sessionID,
		MessageIndex: messageIndex,
		Rating:       rating,
		CreatedAt:    time.Now().UTC(),
	}
	s.ratings = append(s.ratings, r)
	return r, nil
}
