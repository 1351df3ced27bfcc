package live

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzhirov/quizhall/internal/models"
)

func TestParseCommand_Envelope(t *testing.T) {
	gameID := uuid.New()
	raw := fmt.Sprintf(`{"action":"Start","gameId":%q,"cookie":"tok-1"}`, gameID)

	in, err := ParseCommand([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, gameID, in.GameID)
	assert.Equal(t, "tok-1", in.Cookie)
	assert.Equal(t, StartCmd{}, in.Cmd)
}

func TestParseCommand_Actions(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Command
	}{
		{"start", `{"action":"Start"}`, StartCmd{}},
		{"pause", `{"action":"Pause"}`, PauseCmd{}},
		{"stop", `{"action":"Stop"}`, StopCmd{}},
		{"addTime", `{"action":"+10sec"}`, AddTimeCmd{Seconds: 10}},
		{
			"changeQuestion",
			`{"action":"changeQuestion","activeGamePart":"chgk","tourNumber":2,"questionNumber":3}`,
			ChangeQuestionCmd{Ref: models.QuestionRef{Part: models.GamePartChgk, Round: 2, Question: 3}},
		},
		{"startBreak", `{"action":"breakTime","time":300}`, StartBreakCmd{Seconds: 300}},
		{"stopBreak", `{"action":"stopBreak"}`, StopBreakCmd{}},
		{"getQuestion", `{"action":"getQuestionNumber"}`, GetQuestionCmd{}},
		{"getAllAppeals", `{"action":"getAllAppeals"}`, GetAllAppealsCmd{}},
		{
			"answer",
			`{"action":"Answer","answer":"moscow","roundNumber":1,"questionNumber":4,"roundName":"warmup"}`,
			AnswerCmd{Text: "moscow", Round: 1, Question: 4, RoundName: "warmup"},
		},
		{"getTeamAnswers", `{"action":"getTeamAnswers"}`, GetTeamAnswersCmd{}},
		{"checkStart", `{"action":"checkStart"}`, CheckStartCmd{}},
		{"time", `{"action":"time"}`, TimeCmd{}},
		{"checkTime", `{"action":"checkTime"}`, CheckTimeCmd{}},
		{"isOnBreak", `{"action":"isOnBreak"}`, IsOnBreakCmd{}},
		{"checkBreakTime", `{"action":"checkBreakTime","time":120}`, CheckBreakTimeCmd{Seconds: 120}},
		{"ping", `{"action":"ping"}`, PingCmd{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := ParseCommand([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, in.Cmd)
		})
	}
}

func TestParseCommand_UnknownAction(t *testing.T) {
	_, err := ParseCommand([]byte(`{"action":"selfDestruct"}`))
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestParseCommand_MalformedJSON(t *testing.T) {
	_, err := ParseCommand([]byte(`{"action":`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownAction)
}

func TestCommandRoles(t *testing.T) {
	operator := []Command{
		StartCmd{}, PauseCmd{}, StopCmd{}, AddTimeCmd{}, ChangeQuestionCmd{},
		StartBreakCmd{}, StopBreakCmd{}, GetQuestionCmd{}, GetAllAppealsCmd{},
	}
	for _, cmd := range operator {
		assert.Equal(t, models.RoleOperator, cmd.RequiredRole(), cmd.Action())
	}

	team := []Command{AnswerCmd{}, GetTeamAnswersCmd{}, CheckStartCmd{}}
	for _, cmd := range team {
		assert.Equal(t, models.RoleTeam, cmd.RequiredRole(), cmd.Action())
	}

	shared := []Command{TimeCmd{}, CheckTimeCmd{}, IsOnBreakCmd{}, CheckBreakTimeCmd{}, PingCmd{}}
	for _, cmd := range shared {
		assert.Equal(t, models.RoleAny, cmd.RequiredRole(), cmd.Action())
	}
}
