package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mzhirov/quizhall/internal/events"
	"github.com/mzhirov/quizhall/internal/models"
)

// Store is the persistence collaborator: game configuration reads and
// write-through of answer and appeal records.
type Store interface {
	GameConfig(ctx context.Context, gameID uuid.UUID) (models.GameConfig, error)
	QuestionText(ctx context.Context, gameID uuid.UUID, ref models.QuestionRef) (string, error)
	SaveAnswer(ctx context.Context, rec models.AnswerRecord) error
	SaveAnswerStatus(ctx context.Context, key models.AnswerKey, status models.AnswerStatus) error
	SaveAppeal(ctx context.Context, key models.AnswerKey) error
}

// Caller is the validated identity behind an inbound command. Resolution
// from the cookie happens in the auth collaborator before the coordinator
// is reached.
type Caller struct {
	Role   models.Role
	TeamID uuid.UUID
}

// ErrRoleNotAllowed rejects a command issued by a channel whose role does
// not carry it.
var ErrRoleNotAllowed = errors.New("command not allowed for this role")

// Config holds coordinator tuning.
type Config struct {
	// PartDurations are the default question durations per game part,
	// used when the stored game config does not override them.
	PartDurations map[models.GamePart]time.Duration
	// SessionTTL is how long a session with no live channels survives
	// before the reaper tears it down.
	SessionTTL time.Duration
	// ReapInterval is how often the reaper sweeps.
	ReapInterval time.Duration
}

// DefaultConfig returns the observed defaults: 70s chgk questions, 20s
// matrix and quiz questions.
func DefaultConfig() Config {
	return Config{
		PartDurations: map[models.GamePart]time.Duration{
			models.GamePartChgk:   70 * time.Second,
			models.GamePartMatrix: 20 * time.Second,
			models.GamePartQuiz:   20 * time.Second,
		},
		SessionTTL:   30 * time.Minute,
		ReapInterval: 5 * time.Minute,
	}
}

// Coordinator is the single serialization point per game id. It owns every
// live session, applies operator commands and answer submissions one at a
// time per game, drives time-based transitions, and answers resync queries
// from a consistent snapshot. Every successful mutation produces exactly
// one broadcast, delivered in command order.
type Coordinator struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*session

	registry  *Registry
	store     Store
	publisher events.Publisher
	ledger    *Ledger
	clk       clockwork.Clock
	cfg       Config
}

// NewCoordinator creates a coordinator with no live sessions.
func NewCoordinator(registry *Registry, store Store, publisher events.Publisher, clk clockwork.Clock, cfg Config) *Coordinator {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Coordinator{
		sessions:  make(map[uuid.UUID]*session),
		registry:  registry,
		store:     store,
		publisher: publisher,
		ledger:    NewLedger(),
		clk:       clk,
		cfg:       cfg,
	}
}

// Ledger exposes the answer ledger for read-only collaborators.
func (c *Coordinator) Ledger() *Ledger { return c.ledger }

// Handle applies one parsed command on behalf of caller. The returned
// payload, if any, is unicast back to the issuing channel; a returned
// error is likewise reported to the issuer only and never broadcast.
func (c *Coordinator) Handle(ctx context.Context, caller Caller, gameID uuid.UUID, cmd Command) (any, error) {
	if required := cmd.RequiredRole(); required != models.RoleAny && caller.Role != required {
		return nil, fmt.Errorf("%w: %s requires %s", ErrRoleNotAllowed, cmd.Action(), required)
	}

	switch cmd := cmd.(type) {
	case StartCmd:
		return nil, c.start(ctx, gameID)
	case PauseCmd:
		return nil, c.pause(ctx, gameID)
	case StopCmd:
		return nil, c.stop(ctx, gameID)
	case AddTimeCmd:
		return nil, c.addTime(ctx, gameID, time.Duration(cmd.Seconds)*time.Second)
	case ChangeQuestionCmd:
		return nil, c.changeQuestion(ctx, gameID, cmd.Ref)
	case StartBreakCmd:
		return nil, c.startBreak(ctx, gameID, time.Duration(cmd.Seconds)*time.Second)
	case StopBreakCmd:
		return nil, c.stopBreak(ctx, gameID)
	case GetQuestionCmd:
		return c.questionReply(ctx, gameID), nil
	case GetAllAppealsCmd:
		return c.appealsReply(gameID), nil
	case AnswerCmd:
		return c.submitAnswer(ctx, gameID, caller.TeamID, cmd)
	case GetTeamAnswersCmd:
		return c.teamAnswersReply(gameID, caller.TeamID), nil
	case CheckStartCmd:
		snap := c.peek(gameID)
		return CheckStartMessage{Action: "checkStart", IsStarted: snap.Phase == PhaseRunning}, nil
	case TimeCmd:
		snap := c.peek(gameID)
		return TimeMessage{Action: "time", Time: snap.RemainingRound, MaxTime: snap.TotalSeconds, IsStarted: snap.Phase == PhaseRunning}, nil
	case CheckTimeCmd:
		snap := c.peek(gameID)
		return CheckTimeMessage{Action: "checkTime", Time: snap.RemainingCeil, IsStarted: snap.Phase == PhaseRunning}, nil
	case IsOnBreakCmd:
		snap := c.peek(gameID)
		return BreakMessage{Action: "isOnBreak", Status: snap.OnBreak, Time: snap.BreakCeil}, nil
	case CheckBreakTimeCmd:
		snap := c.peek(gameID)
		return BreakTimeMessage{Action: "checkBreakTime", Time: snap.BreakCeil}, nil
	case PingCmd:
		return PongMessage{Action: "pong"}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownAction, cmd)
	}
}

// session lookup

// ensureSession returns the session for gameID, creating it on first
// operator interaction by loading the stored game configuration.
func (c *Coordinator) ensureSession(ctx context.Context, gameID uuid.UUID) (*session, error) {
	c.mu.RLock()
	s, ok := c.sessions[gameID]
	c.mu.RUnlock()
	if ok {
		return s, nil
	}

	cfg, err := c.store.GameConfig(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("load game config: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[gameID]; ok {
		return s, nil
	}
	s = newSession(cfg, c.clk, c.partDuration(cfg, models.GamePartChgk), c.clk.Now())
	c.sessions[gameID] = s

	log.Info().
		Str("game_id", gameID.String()).
		Str("title", cfg.Title).
		Msg("live session created")

	return s, nil
}

func (c *Coordinator) lookup(gameID uuid.UUID) (*session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[gameID]
	return s, ok
}

// peek returns a consistent snapshot for resync queries, or a zero
// snapshot when no session exists yet.
func (c *Coordinator) peek(gameID uuid.UUID) snapshot {
	s, ok := c.lookup(gameID)
	if !ok {
		return snapshot{Phase: PhaseIdle}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (c *Coordinator) partDuration(cfg models.GameConfig, part models.GamePart) time.Duration {
	if pc, ok := cfg.Parts[part]; ok && pc.QuestionSeconds > 0 {
		return time.Duration(pc.QuestionSeconds) * time.Second
	}
	if d, ok := c.cfg.PartDurations[part]; ok {
		return d
	}
	return c.cfg.PartDurations[models.GamePartChgk]
}

// operator commands

func (c *Coordinator) start(ctx context.Context, gameID uuid.UUID) error {
	s, err := c.ensureSession(ctx, gameID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.machine.Start(); err != nil {
		return err
	}
	s.clock.Start()
	c.armExpiryLocked(s, gameID)
	s.lastActivity = c.clk.Now()

	snap := s.snapshotLocked()
	c.broadcast(ctx, gameID, events.TypeQuestionStarted, TimeMessage{
		Action:    "time",
		Time:      snap.RemainingRound,
		MaxTime:   snap.TotalSeconds,
		IsStarted: true,
	})
	return nil
}

func (c *Coordinator) pause(ctx context.Context, gameID uuid.UUID) error {
	s, err := c.ensureSession(ctx, gameID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.machine.Pause(); err != nil {
		return err
	}
	s.clock.Pause()
	s.cancelExpiryLocked()
	s.lastActivity = c.clk.Now()

	c.broadcast(ctx, gameID, events.TypeQuestionPaused, PauseMessage{Action: "pause"})
	return nil
}

func (c *Coordinator) stop(ctx context.Context, gameID uuid.UUID) error {
	s, err := c.ensureSession(ctx, gameID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.machine.Stop(); err != nil {
		return err
	}
	s.clock.Stop()
	s.cancelExpiryLocked()
	s.lastActivity = c.clk.Now()

	c.broadcast(ctx, gameID, events.TypeQuestionStopped, StopMessage{
		Action:         "stop",
		ActiveGamePart: s.machine.Active().Part,
	})
	return nil
}

func (c *Coordinator) addTime(ctx context.Context, gameID uuid.UUID, d time.Duration) error {
	s, err := c.ensureSession(ctx, gameID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.machine.CanAddTime(); err != nil {
		return err
	}
	// Added time is additive to the remaining value.
	s.clock.Add(d)
	c.armExpiryLocked(s, gameID)
	s.lastActivity = c.clk.Now()

	snap := s.snapshotLocked()
	c.broadcast(ctx, gameID, events.TypeTimeAdded, TimeMessage{
		Action:    "time",
		Time:      snap.RemainingRound,
		MaxTime:   snap.TotalSeconds,
		IsStarted: true,
	})
	return nil
}

func (c *Coordinator) changeQuestion(ctx context.Context, gameID uuid.UUID, ref models.QuestionRef) error {
	if !ref.Part.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownGamePart, ref.Part)
	}

	s, err := c.ensureSession(ctx, gameID)
	if err != nil {
		return err
	}
	if !s.cfg.Contains(ref) {
		return fmt.Errorf("%w: part %s round %d question %d", ErrQuestionOutOfRange, ref.Part, ref.Round, ref.Question)
	}

	// Fetched outside the session lock; question text is display-only and
	// an empty fallback must not block the transition.
	text, err := c.store.QuestionText(ctx, gameID, ref)
	if err != nil {
		log.Warn().
			Err(err).
			Str("game_id", gameID.String()).
			Msg("question text unavailable")
		text = ""
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.machine.SetActiveQuestion(ref); err != nil {
		return err
	}
	s.clock.Reset(c.partDuration(s.cfg, ref.Part))
	s.cancelExpiryLocked()
	s.lastActivity = c.clk.Now()

	c.broadcast(ctx, gameID, events.TypeQuestionChanged, QuestionMessage{
		Action:         "changeQuestionNumber",
		Round:          ref.Round,
		Question:       ref.Question,
		ActiveGamePart: ref.Part,
		Text:           text,
	})
	return nil
}

func (c *Coordinator) startBreak(ctx context.Context, gameID uuid.UUID, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("break duration must be positive, got %s", d)
	}

	s, err := c.ensureSession(ctx, gameID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.machine.StartBreak(); err != nil {
		return err
	}
	// The question clock stays frozen at its present remaining value so
	// it can resume unchanged after the break.
	s.breakClock.Reset(d)
	s.breakClock.Start()
	c.armBreakLocked(s, gameID, d)
	s.lastActivity = c.clk.Now()

	c.broadcast(ctx, gameID, events.TypeBreakStarted, BreakMessage{
		Action: "isOnBreak",
		Status: true,
		Time:   int(d / time.Second),
	})
	return nil
}

func (c *Coordinator) stopBreak(ctx context.Context, gameID uuid.UUID) error {
	s, err := c.ensureSession(ctx, gameID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.machine.StopBreak(); err != nil {
		return err
	}
	s.breakClock.Stop()
	s.cancelBreakTimerLocked()
	s.lastActivity = c.clk.Now()

	c.broadcast(ctx, gameID, events.TypeBreakStopped, BreakMessage{
		Action: "isOnBreak",
		Status: false,
		Time:   0,
	})
	return nil
}

// timers

// armExpiryLocked schedules the time-expiry transition for the running
// clock. The callback is just another command: it serializes through the
// session lock and checks its generation snapshot first, so a fire armed
// for a question that has since changed is silently discarded.
func (c *Coordinator) armExpiryLocked(s *session, gameID uuid.UUID) {
	s.cancelExpiryLocked()
	gen := s.gen
	remaining := s.clock.Remaining()
	s.expiryTimer = c.clk.AfterFunc(remaining, func() {
		c.handleExpiry(gameID, gen)
	})
}

func (c *Coordinator) handleExpiry(gameID uuid.UUID, gen uint64) {
	s, ok := c.lookup(gameID)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen {
		log.Debug().
			Str("game_id", gameID.String()).
			Msg("stale expiry fire discarded")
		return
	}
	if !s.machine.Expire() {
		return
	}
	s.expiryTimer = nil
	s.gen++
	active := s.machine.Active()
	s.clock.Stop()

	c.broadcast(context.Background(), gameID, events.TypeTimeExpired, TimeExpiredMessage{
		Action:         "timeIsUp",
		ActiveGamePart: active.Part,
		RoundNumber:    active.Round,
		QuestionNumber: active.Question,
	})

	log.Info().
		Str("game_id", gameID.String()).
		Int("round", active.Round).
		Int("question", active.Question).
		Msg("question time expired")
}

func (c *Coordinator) armBreakLocked(s *session, gameID uuid.UUID, d time.Duration) {
	s.cancelBreakTimerLocked()
	gen := s.gen
	s.breakTimer = c.clk.AfterFunc(d, func() {
		c.handleBreakExpiry(gameID, gen)
	})
}

func (c *Coordinator) handleBreakExpiry(gameID uuid.UUID, gen uint64) {
	s, ok := c.lookup(gameID)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen || !s.machine.OnBreak() {
		return
	}
	if err := s.machine.StopBreak(); err != nil {
		return
	}
	s.breakTimer = nil
	s.gen++
	s.breakClock.Stop()

	c.broadcast(context.Background(), gameID, events.TypeBreakStopped, BreakMessage{
		Action: "isOnBreak",
		Status: false,
		Time:   0,
	})

	log.Info().Str("game_id", gameID.String()).Msg("break time expired")
}

// answers

func (c *Coordinator) submitAnswer(ctx context.Context, gameID, teamID uuid.UUID, cmd AnswerCmd) (any, error) {
	// Round and question default to the active pointer when omitted. The
	// ledger itself accepts late and early submissions without error.
	snap := c.peek(gameID)
	ref := snap.Active
	if cmd.Round != 0 {
		ref.Round = cmd.Round
	}
	if cmd.Question != 0 {
		ref.Question = cmd.Question
	}

	key := models.AnswerKey{
		GameID:   gameID,
		TeamID:   teamID,
		Part:     ref.Part,
		Round:    ref.Round,
		Question: ref.Question,
	}
	rec := c.ledger.Submit(key, cmd.Text, c.clk.Now())

	if err := c.store.SaveAnswer(ctx, rec); err != nil {
		log.Error().
			Err(err).
			Str("game_id", gameID.String()).
			Str("team_id", teamID.String()).
			Msg("answer write-through failed")
	}

	c.registry.SendToOperator(gameID, NewAnswerMessage{
		Action:         "newAnswer",
		TeamID:         teamID,
		ActiveGamePart: key.Part,
		RoundNumber:    key.Round,
		QuestionNumber: key.Question,
		Answer:         rec.Text,
	})
	c.publish(ctx, gameID, events.TypeAnswerSubmitted, rec)

	return AnswerAckMessage{
		Action:         "answerAck",
		RoundNumber:    key.Round,
		QuestionNumber: key.Question,
	}, nil
}

// SetAnswerStatus records the operator's accept/reject decision and
// unicasts the outcome to the affected team only. Driven by the operator
// HTTP surface rather than the live channel.
func (c *Coordinator) SetAnswerStatus(ctx context.Context, key models.AnswerKey, accepted bool) error {
	status := models.AnswerStatusRejected
	if accepted {
		status = models.AnswerStatusAccepted
	}

	rec, ok := c.ledger.SetStatus(key, status)
	if !ok {
		return fmt.Errorf("no answer submitted for team %s round %d question %d", key.TeamID, key.Round, key.Question)
	}

	if err := c.store.SaveAnswerStatus(ctx, key, status); err != nil {
		log.Error().
			Err(err).
			Str("game_id", key.GameID.String()).
			Msg("answer status write-through failed")
	}

	c.registry.SendToTeam(key.GameID, key.TeamID, StatusAnswerMessage{
		Action:         "statusAnswer",
		ActiveGamePart: key.Part,
		Answer:         rec.Text,
		RoundNumber:    key.Round,
		QuestionNumber: key.Question,
		IsAccepted:     accepted,
	})
	c.publish(ctx, key.GameID, events.TypeAnswerStatusChanged, rec)
	return nil
}

// FlagAppeal raises a team's appeal against a question and surfaces the
// refreshed appeal list to the operator.
func (c *Coordinator) FlagAppeal(ctx context.Context, key models.AnswerKey) error {
	rec, ok := c.ledger.FlagAppeal(key)
	if !ok {
		return fmt.Errorf("no answer submitted for team %s round %d question %d", key.TeamID, key.Round, key.Question)
	}

	if err := c.store.SaveAppeal(ctx, key); err != nil {
		log.Error().
			Err(err).
			Str("game_id", key.GameID.String()).
			Msg("appeal write-through failed")
	}

	c.registry.SendToOperator(key.GameID, c.appealsReply(key.GameID))
	c.publish(ctx, key.GameID, events.TypeAppealFlagged, rec)
	return nil
}

// query replies

func (c *Coordinator) questionReply(ctx context.Context, gameID uuid.UUID) QuestionMessage {
	snap := c.peek(gameID)
	msg := QuestionMessage{
		Action:         "changeQuestionNumber",
		Round:          snap.Active.Round,
		Question:       snap.Active.Question,
		ActiveGamePart: snap.Active.Part,
	}
	if !snap.Active.IsZero() {
		if text, err := c.store.QuestionText(ctx, gameID, snap.Active); err == nil {
			msg.Text = text
		}
	}
	return msg
}

func (c *Coordinator) appealsReply(gameID uuid.UUID) AppealsMessage {
	recs := c.ledger.AppealedRecords(gameID)
	msg := AppealsMessage{Action: "appeals", Appeals: make([]AppealEntry, 0, len(recs))}
	for _, rec := range recs {
		msg.Appeals = append(msg.Appeals, AppealEntry{
			TeamID:         rec.Key.TeamID,
			ActiveGamePart: rec.Key.Part,
			RoundNumber:    rec.Key.Round,
			QuestionNumber: rec.Key.Question,
			Answer:         rec.Text,
		})
	}
	return msg
}

func (c *Coordinator) teamAnswersReply(gameID, teamID uuid.UUID) TeamAnswersMessage {
	recs := c.ledger.AnswersForTeam(gameID, teamID)
	msg := TeamAnswersMessage{Action: "teamAnswers", Answers: make([]TeamAnswerEntry, 0, len(recs))}
	for _, rec := range recs {
		msg.Answers = append(msg.Answers, TeamAnswerEntry{
			ActiveGamePart: rec.Key.Part,
			RoundNumber:    rec.Key.Round,
			QuestionNumber: rec.Key.Question,
			Answer:         rec.Text,
			Status:         rec.Status,
		})
	}
	return msg
}

// lifecycle

// CloseSession tears a session down in response to an external finish or
// delete event. Answers stay in the ledger as game history unless the game
// itself was deleted.
func (c *Coordinator) CloseSession(ctx context.Context, gameID uuid.UUID, deleted bool) {
	c.mu.Lock()
	s, ok := c.sessions[gameID]
	if ok {
		delete(c.sessions, gameID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	s.mu.Lock()
	s.cancelExpiryLocked()
	s.cancelBreakTimerLocked()
	s.mu.Unlock()

	if deleted {
		c.ledger.DropGame(gameID)
	}
	c.publish(ctx, gameID, events.TypeSessionClosed, map[string]bool{"deleted": deleted})

	log.Info().
		Str("game_id", gameID.String()).
		Bool("deleted", deleted).
		Msg("live session closed")
}

// RunReaper sweeps idle sessions until ctx is cancelled. A session with no
// live channels and no command activity for the configured TTL is torn
// down; its answers survive in the ledger.
func (c *Coordinator) RunReaper(ctx context.Context) {
	ticker := c.clk.NewTicker(c.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			c.reap(ctx)
		}
	}
}

func (c *Coordinator) reap(ctx context.Context) {
	now := c.clk.Now()

	c.mu.RLock()
	var stale []uuid.UUID
	for gameID, s := range c.sessions {
		s.mu.Lock()
		idle := now.Sub(s.lastActivity)
		s.mu.Unlock()
		if idle >= c.cfg.SessionTTL && !c.registry.HasConnections(gameID) {
			stale = append(stale, gameID)
		}
	}
	c.mu.RUnlock()

	for _, gameID := range stale {
		log.Info().
			Str("game_id", gameID.String()).
			Dur("ttl", c.cfg.SessionTTL).
			Msg("reaping idle session")
		c.CloseSession(ctx, gameID, false)
	}
}

// fan-out

// broadcast queues the public payload for every channel of the game and
// mirrors it as an event. Called under the session lock, so queue order is
// command order.
func (c *Coordinator) broadcast(ctx context.Context, gameID uuid.UUID, eventType string, payload any) {
	c.registry.Broadcast(gameID, payload)
	c.publish(ctx, gameID, eventType, payload)
}

func (c *Coordinator) publish(ctx context.Context, gameID uuid.UUID, eventType string, payload any) {
	ev, err := events.New(gameID, eventType, payload)
	if err != nil {
		log.Error().Err(err).Str("game_id", gameID.String()).Msg("build event")
		return
	}
	if err := c.publisher.Publish(ctx, ev); err != nil {
		log.Error().
			Err(err).
			Str("game_id", gameID.String()).
			Str("event_type", eventType).
			Msg("event mirror publish failed")
	}
}
