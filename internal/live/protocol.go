package live

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mzhirov/quizhall/internal/models"
)

// Inbound control and query messages arrive as {action, gameId, cookie,
// ...params} on a persistent per-client channel. ParseCommand turns them
// into one of the Command variants below; the coordinator matches on the
// variant exhaustively, so an unknown action is a parse error instead of a
// silently ignored string.

// ErrUnknownAction is returned for an unrecognized inbound action. The
// message is dropped; the channel stays open.
var ErrUnknownAction = errors.New("unknown action")

// Command is one parsed inbound action.
type Command interface {
	// Action is the wire name of the command.
	Action() string
	// RequiredRole is the role a channel must carry to issue the command.
	// RoleAny marks the shared query commands.
	RequiredRole() models.Role
}

// Operator commands.
type (
	// StartCmd starts or resumes the active question clock.
	StartCmd struct{}
	// PauseCmd pauses the running question clock.
	PauseCmd struct{}
	// StopCmd stops the clock and resets it to the part default.
	StopCmd struct{}
	// AddTimeCmd extends the running clock by Seconds.
	AddTimeCmd struct{ Seconds int }
	// ChangeQuestionCmd moves the active question pointer.
	ChangeQuestionCmd struct{ Ref models.QuestionRef }
	// StartBreakCmd begins a break countdown of Seconds.
	StartBreakCmd struct{ Seconds int }
	// StopBreakCmd ends the break early.
	StopBreakCmd struct{}
	// GetQuestionCmd asks for the current active question pointer.
	GetQuestionCmd struct{}
	// GetAllAppealsCmd asks for every appealed answer of the game.
	GetAllAppealsCmd struct{}
)

// Team commands.
type (
	// AnswerCmd submits an answer. Round and Question default to the
	// active pointer when the client omits them.
	AnswerCmd struct {
		Text      string
		Round     int
		Question  int
		RoundName string
	}
	// GetTeamAnswersCmd asks for the issuing team's submitted answers.
	GetTeamAnswersCmd struct{}
	// CheckStartCmd asks whether the question clock has been started.
	CheckStartCmd struct{}
)

// Shared query commands, issued by any channel, typically right after a
// (re)connect to recover state without having seen prior broadcasts.
type (
	// TimeCmd asks for the raw remaining time value.
	TimeCmd struct{}
	// CheckTimeCmd asks for the "seconds remaining" display value.
	CheckTimeCmd struct{}
	// IsOnBreakCmd asks for the break state and break time left.
	IsOnBreakCmd struct{}
	// CheckBreakTimeCmd asks for the authoritative break time left.
	CheckBreakTimeCmd struct{ Seconds int }
	// PingCmd is the application-level keepalive.
	PingCmd struct{}
)

func (StartCmd) Action() string          { return "Start" }
func (PauseCmd) Action() string          { return "Pause" }
func (StopCmd) Action() string           { return "Stop" }
func (AddTimeCmd) Action() string        { return "+10sec" }
func (ChangeQuestionCmd) Action() string { return "changeQuestion" }
func (StartBreakCmd) Action() string     { return "breakTime" }
func (StopBreakCmd) Action() string      { return "stopBreak" }
func (GetQuestionCmd) Action() string    { return "getQuestionNumber" }
func (GetAllAppealsCmd) Action() string  { return "getAllAppeals" }
func (AnswerCmd) Action() string         { return "Answer" }
func (GetTeamAnswersCmd) Action() string { return "getTeamAnswers" }
func (CheckStartCmd) Action() string     { return "checkStart" }
func (TimeCmd) Action() string           { return "time" }
func (CheckTimeCmd) Action() string      { return "checkTime" }
func (IsOnBreakCmd) Action() string      { return "isOnBreak" }
func (CheckBreakTimeCmd) Action() string { return "checkBreakTime" }
func (PingCmd) Action() string           { return "ping" }

func (StartCmd) RequiredRole() models.Role          { return models.RoleOperator }
func (PauseCmd) RequiredRole() models.Role          { return models.RoleOperator }
func (StopCmd) RequiredRole() models.Role           { return models.RoleOperator }
func (AddTimeCmd) RequiredRole() models.Role        { return models.RoleOperator }
func (ChangeQuestionCmd) RequiredRole() models.Role { return models.RoleOperator }
func (StartBreakCmd) RequiredRole() models.Role     { return models.RoleOperator }
func (StopBreakCmd) RequiredRole() models.Role      { return models.RoleOperator }
func (GetQuestionCmd) RequiredRole() models.Role    { return models.RoleOperator }
func (GetAllAppealsCmd) RequiredRole() models.Role  { return models.RoleOperator }
func (AnswerCmd) RequiredRole() models.Role         { return models.RoleTeam }
func (GetTeamAnswersCmd) RequiredRole() models.Role { return models.RoleTeam }
func (CheckStartCmd) RequiredRole() models.Role     { return models.RoleTeam }
func (TimeCmd) RequiredRole() models.Role           { return models.RoleAny }
func (CheckTimeCmd) RequiredRole() models.Role      { return models.RoleAny }
func (IsOnBreakCmd) RequiredRole() models.Role      { return models.RoleAny }
func (CheckBreakTimeCmd) RequiredRole() models.Role { return models.RoleAny }
func (PingCmd) RequiredRole() models.Role           { return models.RoleAny }

// envelope is the superset of every inbound message shape.
type envelope struct {
	Action         string          `json:"action"`
	GameID         uuid.UUID       `json:"gameId"`
	Cookie         string          `json:"cookie"`
	QuestionNumber int             `json:"questionNumber"`
	TourNumber     int             `json:"tourNumber"`
	ActiveGamePart models.GamePart `json:"activeGamePart"`
	Time           int             `json:"time"`
	Answer         string          `json:"answer"`
	RoundNumber    int             `json:"roundNumber"`
	RoundName      string          `json:"roundName"`
}

// Inbound is one parsed inbound message.
type Inbound struct {
	GameID uuid.UUID
	Cookie string
	Cmd    Command
}

// ParseCommand parses a raw inbound message. A malformed or unknown
// message yields an error; callers drop the message without closing the
// channel.
func ParseCommand(raw []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Inbound{}, fmt.Errorf("malformed message: %w", err)
	}

	var cmd Command
	switch env.Action {
	case "Start":
		cmd = StartCmd{}
	case "Pause":
		cmd = PauseCmd{}
	case "Stop":
		cmd = StopCmd{}
	case "+10sec":
		cmd = AddTimeCmd{Seconds: 10}
	case "changeQuestion":
		cmd = ChangeQuestionCmd{Ref: models.QuestionRef{
			Part:     env.ActiveGamePart,
			Round:    env.TourNumber,
			Question: env.QuestionNumber,
		}}
	case "breakTime":
		cmd = StartBreakCmd{Seconds: env.Time}
	case "stopBreak":
		cmd = StopBreakCmd{}
	case "getQuestionNumber":
		cmd = GetQuestionCmd{}
	case "getAllAppeals":
		cmd = GetAllAppealsCmd{}
	case "Answer":
		cmd = AnswerCmd{
			Text:      env.Answer,
			Round:     env.RoundNumber,
			Question:  env.QuestionNumber,
			RoundName: env.RoundName,
		}
	case "getTeamAnswers":
		cmd = GetTeamAnswersCmd{}
	case "checkStart":
		cmd = CheckStartCmd{}
	case "time":
		cmd = TimeCmd{}
	case "checkTime":
		cmd = CheckTimeCmd{}
	case "isOnBreak":
		cmd = IsOnBreakCmd{}
	case "checkBreakTime":
		cmd = CheckBreakTimeCmd{Seconds: env.Time}
	case "ping":
		cmd = PingCmd{}
	default:
		return Inbound{}, fmt.Errorf("%w: %q", ErrUnknownAction, env.Action)
	}

	return Inbound{GameID: env.GameID, Cookie: env.Cookie, Cmd: cmd}, nil
}

// Outbound messages mirror inbound actions with server-computed
// authoritative values. Every struct carries its action tag so clients
// dispatch on a single field.

// TimeMessage answers "time" and is broadcast after Start/+10sec.
type TimeMessage struct {
	Action    string `json:"action"`
	Time      int    `json:"time"`
	MaxTime   int    `json:"maxTime"`
	IsStarted bool   `json:"isStarted"`
}

// CheckTimeMessage answers "checkTime" with the ceil-rounded display value.
type CheckTimeMessage struct {
	Action    string `json:"action"`
	Time      int    `json:"time"`
	IsStarted bool   `json:"isStarted"`
}

// QuestionMessage is broadcast on changeQuestion and answers
// getQuestionNumber.
type QuestionMessage struct {
	Action         string          `json:"action"`
	Round          int             `json:"round"`
	Question       int             `json:"question"`
	ActiveGamePart models.GamePart `json:"activeGamePart"`
	Text           string          `json:"text"`
}

// PauseMessage is broadcast on Pause.
type PauseMessage struct {
	Action string `json:"action"`
}

// StopMessage is broadcast on Stop.
type StopMessage struct {
	Action         string          `json:"action"`
	ActiveGamePart models.GamePart `json:"activeGamePart"`
}

// TimeExpiredMessage is broadcast exactly once when a running clock
// reaches zero.
type TimeExpiredMessage struct {
	Action         string          `json:"action"`
	ActiveGamePart models.GamePart `json:"activeGamePart"`
	RoundNumber    int             `json:"roundNumber"`
	QuestionNumber int             `json:"questionNumber"`
}

// BreakMessage is broadcast when a break starts or stops and answers
// "isOnBreak".
type BreakMessage struct {
	Action string `json:"action"`
	Status bool   `json:"status"`
	Time   int    `json:"time"`
}

// BreakTimeMessage answers "checkBreakTime".
type BreakTimeMessage struct {
	Action string `json:"action"`
	Time   int    `json:"time"`
}

// AnswerAckMessage is unicast to the submitting team.
type AnswerAckMessage struct {
	Action         string `json:"action"`
	RoundNumber    int    `json:"roundNumber"`
	QuestionNumber int    `json:"questionNumber"`
}

// NewAnswerMessage notifies the operator of a submitted answer. Teams
// never see each other's answers.
type NewAnswerMessage struct {
	Action         string          `json:"action"`
	TeamID         uuid.UUID       `json:"teamId"`
	ActiveGamePart models.GamePart `json:"activeGamePart"`
	RoundNumber    int             `json:"roundNumber"`
	QuestionNumber int             `json:"questionNumber"`
	Answer         string          `json:"answer"`
}

// StatusAnswerMessage is unicast to one team when the operator accepts or
// rejects its answer.
type StatusAnswerMessage struct {
	Action         string          `json:"action"`
	ActiveGamePart models.GamePart `json:"activeGamePart"`
	Answer         string          `json:"answer"`
	RoundNumber    int             `json:"roundNumber"`
	QuestionNumber int             `json:"questionNumber"`
	IsAccepted     bool            `json:"isAccepted"`
}

// AppealEntry is one appealed answer in an AppealsMessage.
type AppealEntry struct {
	TeamID         uuid.UUID       `json:"teamId"`
	ActiveGamePart models.GamePart `json:"activeGamePart"`
	RoundNumber    int             `json:"roundNumber"`
	QuestionNumber int             `json:"questionNumber"`
	Answer         string          `json:"answer"`
}

// AppealsMessage answers getAllAppeals.
type AppealsMessage struct {
	Action  string        `json:"action"`
	Appeals []AppealEntry `json:"appealByQuestionNumber"`
}

// TeamAnswerEntry is one answer in a TeamAnswersMessage.
type TeamAnswerEntry struct {
	ActiveGamePart models.GamePart     `json:"activeGamePart"`
	RoundNumber    int                 `json:"roundNumber"`
	QuestionNumber int                 `json:"questionNumber"`
	Answer         string              `json:"answer"`
	Status         models.AnswerStatus `json:"status"`
}

// TeamAnswersMessage answers getTeamAnswers.
type TeamAnswersMessage struct {
	Action  string            `json:"action"`
	Answers []TeamAnswerEntry `json:"answers"`
}

// CheckStartMessage answers checkStart.
type CheckStartMessage struct {
	Action    string `json:"action"`
	IsStarted bool   `json:"isStarted"`
}

// PongMessage answers ping.
type PongMessage struct {
	Action string `json:"action"`
}
