// Package coach orchestrates transcript buffering, the consent state machine
// and model-backed feedback for live conversations.
package coach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ashureev/convo-coach/internal/clock"
	"github.com/ashureev/convo-coach/internal/consent"
	"github.com/ashureev/convo-coach/internal/domain"
	"github.com/ashureev/convo-coach/internal/events"
	"github.com/ashureev/convo-coach/internal/llm"
	"github.com/ashureev/convo-coach/internal/metrics"
	"github.com/ashureev/convo-coach/internal/store"
	"github.com/ashureev/convo-coach/internal/transcript"
	"github.com/ashureev/convo-coach/internal/trigger"
	"github.com/google/uuid"
)

// ModelTuning bounds the output of each kind of model call.
type ModelTuning struct {
	NudgeMaxTokens      int
	NudgeTemperature    float32
	SummaryMaxTokens    int
	AnalysisMaxTokens   int
	AnalysisTemperature float32
}

// DefaultModelTuning returns the production defaults.
func DefaultModelTuning() ModelTuning {
	return ModelTuning{
		NudgeMaxTokens:      150,
		NudgeTemperature:    0.7,
		SummaryMaxTokens:    400,
		AnalysisMaxTokens:   300,
		AnalysisTemperature: 0,
	}
}

// Options wires a Service. Store and Gateway are required; everything else
// has a working default.
type Options struct {
	Store      store.SessionStore
	Gateway    llm.Gateway
	Buffers    *transcript.Store
	Machine    *consent.Machine
	Thresholds trigger.Thresholds
	Tuning     ModelTuning
	Clock      clock.Clock
	Metrics    *metrics.Metrics
	Publisher  events.Publisher
	ConvLog    ConversationLogger
	Logger     *slog.Logger

	FeedbackCooldown        time.Duration
	NudgeWindow             int
	RequireConsentForIngest bool
}

// Service runs every coaching operation. It is safe for concurrent use.
type Service struct {
	store      store.SessionStore
	gateway    llm.Gateway
	buffers    *transcript.Store
	machine    *consent.Machine
	thresholds trigger.Thresholds
	tuning     ModelTuning
	clock      clock.Clock
	metrics    *metrics.Metrics
	publisher  events.Publisher
	convLog    ConversationLogger
	logger     *slog.Logger
	locks      *keyedMutex

	cooldown       time.Duration
	nudgeWindow    int
	requireConsent bool
}

// NewService creates a Service, filling unset options with defaults.
func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("coach: session store is required")
	}
	if opts.Gateway == nil {
		return nil, errors.New("coach: model gateway is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Buffers == nil {
		opts.Buffers = transcript.NewStore(opts.Clock)
	}
	if opts.Machine == nil {
		opts.Machine = consent.Default()
	}
	if opts.Thresholds == (trigger.Thresholds{}) {
		opts.Thresholds = trigger.DefaultThresholds()
	}
	if opts.Tuning == (ModelTuning{}) {
		opts.Tuning = DefaultModelTuning()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Noop{}
	}
	if opts.ConvLog == nil {
		opts.ConvLog = noopConversationLogger{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NudgeWindow <= 0 {
		opts.NudgeWindow = 15
	}
	if opts.FeedbackCooldown <= 0 {
		opts.FeedbackCooldown = DefaultFeedbackCooldown
	}

	return &Service{
		store:          opts.Store,
		gateway:        opts.Gateway,
		buffers:        opts.Buffers,
		machine:        opts.Machine,
		thresholds:     opts.Thresholds,
		tuning:         opts.Tuning,
		clock:          opts.Clock,
		metrics:        opts.Metrics,
		publisher:      opts.Publisher,
		convLog:        opts.ConvLog,
		logger:         opts.Logger,
		locks:          newKeyedMutex(),
		cooldown:       opts.FeedbackCooldown,
		nudgeWindow:    opts.NudgeWindow,
		requireConsent: opts.RequireConsentForIngest,
	}, nil
}

// Buffers exposes the transcript store for the idle sweeper.
func (s *Service) Buffers() *transcript.Store {
	return s.buffers
}

// Ingest appends a batch of live segments and runs every action the trigger
// policy selects for the new buffer length. Model calls run sequentially
// after the user lock is released.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (IngestResponse, error) {
	key := domain.SessionKey{UserID: req.UserID, SessionID: req.SessionID}
	resp := IngestResponse{Updates: []domain.Update{}, SessionID: req.SessionID}

	unlock := s.locks.Lock(req.UserID)
	if s.requireConsent {
		sess, err := s.store.Get(ctx, req.UserID)
		if err != nil {
			unlock()
			return resp, fmt.Errorf("load session: %w", err)
		}
		switch {
		case sess == nil || sess.State == domain.ConsentWaiting:
			resp.Status = StatusWaitingForConsent
			resp.TotalSegments = s.buffers.Len(key)
			unlock()
			return resp, nil
		case sess.State == domain.ConsentEnded:
			resp.Status = StatusEnded
			resp.TotalSegments = s.buffers.Len(key)
			unlock()
			return resp, nil
		}
	}
	if cleared := s.buffers.ClearAllExcept(req.UserID, req.SessionID); cleared > 0 {
		s.logger.Info("Cleared stale transcript buffers", append(logAttrs(key), "cleared", cleared)...)
	}
	full := s.buffers.Append(key, req.Segments)
	unlock()

	resp.TotalSegments = len(full)
	s.metrics.SetLiveBuffers(s.buffers.Count())
	s.logInbound(key, "live_http", req.Segments)

	for _, d := range s.thresholds.Evaluate(len(full)) {
		window := full
		if d.Window > 0 {
			window = transcript.RecentWindow(full, d.Window)
		}
		update, ok := s.runAction(ctx, key, d.Kind, window)
		if !ok {
			continue
		}
		if d.Kind == domain.ActionMisinformation {
			s.consume(key, full)
		}
		resp.Updates = append(resp.Updates, update)
		s.emit(ctx, key, update)
	}

	s.logger.Debug("Ingested segments",
		append(logAttrs(key), "batch", len(req.Segments), "total", resp.TotalSegments, "updates", len(resp.Updates))...)
	return resp, nil
}

// consume drops the segments a check has already evaluated. Segments
// appended by other requests while the model was running are kept.
func (s *Service) consume(key domain.SessionKey, evaluated []domain.TranscriptSegment) {
	unlock := s.locks.Lock(key.UserID)
	defer unlock()

	if left := s.buffers.TrimPrefix(key, evaluated); left > 0 {
		s.logger.Debug("Kept segments appended during check", append(logAttrs(key), "kept", left)...)
	}
	s.metrics.SetLiveBuffers(s.buffers.Count())
}

// runAction produces one update, or false when the model had nothing to say
// or failed.
func (s *Service) runAction(ctx context.Context, key domain.SessionKey, kind domain.ActionKind, window []domain.TranscriptSegment) (domain.Update, bool) {
	var content string
	switch kind {
	case domain.ActionMisinformation:
		content = s.checkMisinformation(ctx, llm.ModeLive, window)
	case domain.ActionInsight:
		content = s.insight(ctx, window)
	case domain.ActionBooks:
		content = s.books(ctx, llm.ModeLive, window)
	default:
		s.logger.Warn("Unknown action", append(logAttrs(key), "action", kind)...)
	}
	if content == "" {
		return domain.Update{}, false
	}
	return domain.Update{
		ID:        uuid.NewString(),
		Type:      kind,
		Content:   content,
		Priority:  trigger.PriorityFor(kind),
		Timestamp: transcript.LastEnd(window),
	}, true
}

// checkMisinformation asks for a news-search question and, when there is
// one, a short debunk. Answers under five characters mean nothing to report.
func (s *Service) checkMisinformation(ctx context.Context, mode llm.Mode, window []domain.TranscriptSegment) string {
	conversation := transcript.FormatSegments(window)

	query := s.complete(ctx, domain.ActionMisinformation, s.analysisRequest(llm.NewsQueryPrompt(mode, conversation)))
	if shortAnswer(query) {
		return ""
	}

	debunk := s.complete(ctx, domain.ActionMisinformation, s.analysisRequest(llm.DebunkPrompt(mode, query.Text, conversation)))
	if shortAnswer(debunk) {
		return ""
	}
	return debunk.Text
}

func (s *Service) insight(ctx context.Context, window []domain.TranscriptSegment) string {
	out := s.complete(ctx, domain.ActionInsight, s.analysisRequest(llm.InsightPrompt(transcript.FormatSegments(window))))
	if !out.OK() {
		return ""
	}
	return truncateInsight(out.Text)
}

func (s *Service) books(ctx context.Context, mode llm.Mode, window []domain.TranscriptSegment) string {
	out := s.complete(ctx, domain.ActionBooks, s.analysisRequest(llm.BooksPrompt(mode, transcript.FormatSegments(window))))
	if !out.OK() {
		return ""
	}
	titles := llm.ParseBookTitles(out.Text)
	if len(titles) == 0 {
		return ""
	}
	return BooksPrefix + strings.Join(titles, ", ")
}

func (s *Service) analysisRequest(prompt string) llm.Request {
	return llm.Request{
		SystemPrompt:    llm.AnalystSystemPrompt,
		UserText:        prompt,
		MaxOutputTokens: s.tuning.AnalysisMaxTokens,
		Temperature:     s.tuning.AnalysisTemperature,
	}
}

// truncateInsight cuts text longer than insightLimit bytes, backing up to a
// rune boundary, and appends an ellipsis.
func truncateInsight(text string) string {
	if len(text) <= insightLimit {
		return text
	}
	cut := insightLimit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

// CheckNews runs the misinformation check on its own. The evaluated segments
// are dropped once a message is produced so they are not flagged twice.
func (s *Service) CheckNews(ctx context.Context, req IngestRequest) NewsResult {
	key := domain.SessionKey{UserID: req.UserID, SessionID: req.SessionID}

	unlock := s.locks.Lock(req.UserID)
	s.buffers.ClearAllExcept(req.UserID, req.SessionID)
	full := s.buffers.Append(key, req.Segments)
	unlock()

	s.metrics.SetLiveBuffers(s.buffers.Count())
	s.logInbound(key, "news_http", req.Segments)

	mode, window := llm.ModeLive, transcript.RecentWindow(full, s.thresholds.MisinfoWindow)
	if req.Full {
		mode, window = llm.ModeFull, full
	}
	message := s.checkMisinformation(ctx, mode, window)
	if message != "" {
		s.consume(key, full)
		s.emit(ctx, key, domain.Update{
			ID:        uuid.NewString(),
			Type:      domain.ActionMisinformation,
			Content:   message,
			Priority:  trigger.PriorityFor(domain.ActionMisinformation),
			Timestamp: transcript.LastEnd(window),
		})
	}
	return NewsResult{Message: message}
}

// LiveTranscript runs one request of the consent-gated flow. The consent
// transition and the cooldown check-and-set happen under the user lock; the
// model call happens after it is released, on a copied transcript.
//
//nolint:gocyclo // One branch per consent action keeps the state machine readable.
func (s *Service) LiveTranscript(ctx context.Context, req LiveRequest) (LiveResult, error) {
	key := domain.SessionKey{UserID: req.UserID, SessionID: req.SessionID}
	text := transcript.JoinText(req.Segments)

	unlock := s.locks.Lock(req.UserID)
	locked := true
	defer func() {
		if locked {
			unlock()
		}
	}()

	sess, err := s.store.GetOrCreate(ctx, req.UserID)
	if err != nil {
		return LiveResult{}, fmt.Errorf("load session: %w", err)
	}

	from := sess.State
	next, action := s.machine.Transition(from, text)

	if action == consent.ActionLiveFeedback && strings.TrimSpace(text) == "" {
		return LiveResult{Status: StatusNoSegments}, nil
	}

	now := s.clock.Now()
	switch action {
	case consent.ActionNone:
		return LiveResult{Status: StatusEnded}, nil

	case consent.ActionAwaitConsent:
		return LiveResult{Status: StatusWaitingForConsent}, nil

	case consent.ActionConfirm:
		sess.State = next
		sess.UpdatedAt = now
		if err := s.store.Put(ctx, sess); err != nil {
			return LiveResult{}, fmt.Errorf("save session: %w", err)
		}
		unlock()
		locked = false

		s.recordTransition(key, from, next)
		s.logInbound(key, "live_transcript", req.Segments)
		s.deliver(ctx, key, "consent_confirmed", consent.ConfirmationMessage)
		return LiveResult{Message: consent.ConfirmationMessage}, nil

	case consent.ActionSummarize:
		s.buffers.ClearAllExcept(req.UserID, req.SessionID)
		full := s.buffers.Append(key, req.Segments)
		sess.State = next
		sess.ClearCooldowns()
		sess.UpdatedAt = now
		if err := s.store.Put(ctx, sess); err != nil {
			return LiveResult{}, fmt.Errorf("save session: %w", err)
		}
		s.buffers.Remove(key)
		unlock()
		locked = false

		s.recordTransition(key, from, next)
		s.metrics.SetLiveBuffers(s.buffers.Count())
		s.logInbound(key, "live_transcript", req.Segments)
		s.logger.Info("End of conversation detected", append(logAttrs(key), "segments", len(full))...)

		out := s.complete(ctx, domain.ActionSummary, llm.Request{
			SystemPrompt:    llm.SummarySystemPrompt,
			UserText:        transcript.FormatSegments(full),
			MaxOutputTokens: s.tuning.SummaryMaxTokens,
			Temperature:     s.tuning.NudgeTemperature,
		})
		message := out.Message()
		if out.OK() {
			message = SummaryPrefix + out.Text
		}
		s.deliver(ctx, key, string(domain.ActionSummary), message)
		return LiveResult{Message: message}, nil

	case consent.ActionLiveFeedback:
		s.buffers.ClearAllExcept(req.UserID, req.SessionID)
		full := s.buffers.Append(key, req.Segments)
		if !trigger.TryFire(sess, domain.ActionLiveNudge, now, s.cooldown) {
			unlock()
			locked = false
			s.metrics.IncCooldownSuppressed(string(domain.ActionLiveNudge))
			s.logger.Debug("Live nudge suppressed by cooldown", logAttrs(key)...)
			return LiveResult{Status: StatusInCooldown}, nil
		}
		sess.UpdatedAt = now
		if err := s.store.Put(ctx, sess); err != nil {
			return LiveResult{}, fmt.Errorf("save session: %w", err)
		}
		unlock()
		locked = false

		s.metrics.SetLiveBuffers(s.buffers.Count())
		s.logInbound(key, "live_transcript", req.Segments)

		window := transcript.RecentWindow(full, s.nudgeWindow)
		out := s.complete(ctx, domain.ActionLiveNudge, llm.Request{
			SystemPrompt:    llm.CoachSystemPrompt,
			UserText:        transcript.FormatSegments(window),
			MaxOutputTokens: s.tuning.NudgeMaxTokens,
			Temperature:     s.tuning.NudgeTemperature,
		})
		message := out.Message()
		s.deliver(ctx, key, string(domain.ActionLiveNudge), message)
		return LiveResult{Message: message}, nil
	}

	return LiveResult{}, fmt.Errorf("unhandled consent action %s", action)
}

// State reports the conversation state without creating any.
func (s *Service) State(ctx context.Context, userID, sessionID string) (ConversationState, error) {
	key := domain.SessionKey{UserID: userID, SessionID: sessionID}
	state := ConversationState{
		SessionID:       sessionID,
		UserID:          userID,
		Consent:         string(domain.ConsentWaiting),
		TotalSegments:   s.buffers.Len(key),
		UpdateFrequency: s.cooldown.Seconds(),
	}

	sess, err := s.store.Get(ctx, userID)
	if err != nil {
		return state, fmt.Errorf("load session: %w", err)
	}
	if sess != nil {
		state.Consent = string(sess.State)
		if t, ok := sess.LastFiredAt(domain.ActionLiveNudge); ok {
			state.LastUpdateSent = &t
		}
	}
	state.IsActive = state.Consent != string(domain.ConsentEnded) &&
		(state.TotalSegments > 0 || state.Consent == string(domain.ConsentGiven))
	return state, nil
}

// EndConversation tears down the session: its buffer is removed and the
// user's consent and cooldown state is deleted, so the next request starts
// from waiting.
func (s *Service) EndConversation(ctx context.Context, userID, sessionID string) (EndResult, error) {
	key := domain.SessionKey{UserID: userID, SessionID: sessionID}

	unlock := s.locks.Lock(userID)
	defer unlock()

	removed := s.buffers.Remove(key)
	if err := s.store.Delete(ctx, userID); err != nil {
		return EndResult{}, fmt.Errorf("delete session: %w", err)
	}
	s.metrics.SetLiveBuffers(s.buffers.Count())
	s.logger.Info("Conversation ended", append(logAttrs(key), "buffer_removed", removed)...)

	return EndResult{Message: "Conversation ended", SessionID: sessionID}, nil
}

func (s *Service) recordTransition(key domain.SessionKey, from, to domain.ConsentState) {
	if from == to {
		return
	}
	s.metrics.IncConsentTransition(string(from), string(to))
	s.logger.Info("Consent state changed", append(logAttrs(key), "from", from, "to", to)...)
}

// emit publishes an ingest update and records it in the conversation log.
func (s *Service) emit(ctx context.Context, key domain.SessionKey, u domain.Update) {
	s.metrics.IncUpdate(string(u.Type))
	s.publish(ctx, events.Event{
		ID:        u.ID,
		UserID:    key.UserID,
		SessionID: key.SessionID,
		Type:      string(u.Type),
		Content:   u.Content,
		Priority:  string(u.Priority),
		Timestamp: u.Timestamp,
		CreatedAt: s.clock.Now().UTC(),
	})
	s.logOutbound(key, string(u.Type), u.Content)
}

// deliver publishes a consent-flow message.
func (s *Service) deliver(ctx context.Context, key domain.SessionKey, kind, message string) {
	s.metrics.IncUpdate(kind)
	s.publish(ctx, events.Event{
		ID:        uuid.NewString(),
		UserID:    key.UserID,
		SessionID: key.SessionID,
		Type:      kind,
		Content:   message,
		CreatedAt: s.clock.Now().UTC(),
	})
	s.logOutbound(key, kind, message)
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("Failed to publish update", "user_id", ev.UserID, "type", ev.Type, "error", err)
	}
}

func (s *Service) logInbound(key domain.SessionKey, channel string, segments []domain.TranscriptSegment) {
	if len(segments) == 0 {
		return
	}
	s.convLog.Log(ConversationLogEvent{
		UserID:     key.UserID,
		SessionID:  key.SessionID,
		Channel:    channel,
		Direction:  "inbound",
		EventType:  "transcript_segments",
		ContentRaw: transcript.JoinText(segments),
		Meta:       map[string]any{"segments": len(segments)},
	})
}

func (s *Service) logOutbound(key domain.SessionKey, kind, content string) {
	s.convLog.Log(ConversationLogEvent{
		UserID:     key.UserID,
		SessionID:  key.SessionID,
		Channel:    "coach",
		Direction:  "outbound",
		EventType:  kind,
		ContentRaw: content,
	})
}
