package live

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzhirov/quizhall/internal/models"
)

// testConn registers a channel without a real websocket; delivery lands in
// the send buffer, which is all these tests observe.
func testConn(r *Registry, gameID uuid.UUID, role models.Role, teamID uuid.UUID) *Conn {
	conn := &Conn{
		ID:          uuid.New().String(),
		GameID:      gameID,
		Role:        role,
		TeamID:      teamID,
		send:        make(chan []byte, 64),
		done:        make(chan struct{}),
		registry:    r,
		ConnectedAt: time.Now(),
	}
	r.register(conn)
	return conn
}

func recvPayload(t *testing.T, conn *Conn) map[string]any {
	t.Helper()
	select {
	case data := <-conn.send:
		var payload map[string]any
		require.NoError(t, json.Unmarshal(data, &payload))
		return payload
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return nil
	}
}

func assertNoPayload(t *testing.T, conn *Conn) {
	t.Helper()
	select {
	case data := <-conn.send:
		t.Fatalf("unexpected delivery: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRegistry_BroadcastReachesAllChannels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRegistry(DefaultRegistryConfig())
	go r.Run(ctx)

	gameID := uuid.New()
	operator := testConn(r, gameID, models.RoleOperator, uuid.Nil)
	team := testConn(r, gameID, models.RoleTeam, uuid.New())
	other := testConn(r, uuid.New(), models.RoleTeam, uuid.New())

	r.Broadcast(gameID, PauseMessage{Action: "pause"})

	assert.Equal(t, "pause", recvPayload(t, operator)["action"])
	assert.Equal(t, "pause", recvPayload(t, team)["action"])
	assertNoPayload(t, other)
}

func TestRegistry_SendToOperatorFiltersByRole(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRegistry(DefaultRegistryConfig())
	go r.Run(ctx)

	gameID := uuid.New()
	operator := testConn(r, gameID, models.RoleOperator, uuid.Nil)
	team := testConn(r, gameID, models.RoleTeam, uuid.New())

	r.SendToOperator(gameID, NewAnswerMessage{Action: "newAnswer", TeamID: team.TeamID})

	assert.Equal(t, "newAnswer", recvPayload(t, operator)["action"])
	assertNoPayload(t, team)
}

func TestRegistry_SendToTeamTargetsOneTeamOnly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRegistry(DefaultRegistryConfig())
	go r.Run(ctx)

	gameID := uuid.New()
	teamA := testConn(r, gameID, models.RoleTeam, uuid.New())
	teamB := testConn(r, gameID, models.RoleTeam, uuid.New())
	operator := testConn(r, gameID, models.RoleOperator, uuid.Nil)

	r.SendToTeam(gameID, teamA.TeamID, StatusAnswerMessage{Action: "statusAnswer", IsAccepted: true})

	payload := recvPayload(t, teamA)
	assert.Equal(t, "statusAnswer", payload["action"])
	assert.Equal(t, true, payload["isAccepted"])
	assertNoPayload(t, teamB)
	assertNoPayload(t, operator)
}

func TestRegistry_BroadcastOrderPreserved(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRegistry(DefaultRegistryConfig())
	go r.Run(ctx)

	gameID := uuid.New()
	team := testConn(r, gameID, models.RoleTeam, uuid.New())

	for i := 1; i <= 5; i++ {
		r.Broadcast(gameID, TimeMessage{Action: "time", Time: i})
	}

	for i := 1; i <= 5; i++ {
		payload := recvPayload(t, team)
		assert.Equal(t, float64(i), payload["time"])
	}
}

func TestRegistry_UnregisterPrunesGamePool(t *testing.T) {
	r := NewRegistry(DefaultRegistryConfig())

	gameID := uuid.New()
	conn := testConn(r, gameID, models.RoleTeam, uuid.New())
	require.True(t, r.HasConnections(gameID))

	r.unregister(conn)
	assert.False(t, r.HasConnections(gameID))

	// Unregistering twice is harmless.
	r.unregister(conn)
}

func TestRegistry_SendAfterUnregisterIsDropped(t *testing.T) {
	r := NewRegistry(DefaultRegistryConfig())

	gameID := uuid.New()
	conn := testConn(r, gameID, models.RoleTeam, uuid.New())

	// The write pump tears the channel down while a dispatch reply for the
	// same connection is still in flight; the reply must be a silent drop.
	r.unregister(conn)

	assert.NotPanics(t, func() {
		r.Send(conn, PongMessage{Action: "pong"})
	})
	select {
	case data := <-conn.send:
		t.Fatalf("unexpected delivery after teardown: %s", data)
	default:
	}
}

func TestRegistry_ConcurrentSendAndUnregister(t *testing.T) {
	r := NewRegistry(DefaultRegistryConfig())
	gameID := uuid.New()

	for i := 0; i < 100; i++ {
		conn := testConn(r, gameID, models.RoleTeam, uuid.New())

		done := make(chan struct{})
		go func() {
			defer close(done)
			for j := 0; j < 10; j++ {
				r.Send(conn, PauseMessage{Action: "pause"})
			}
		}()
		r.unregister(conn)
		<-done
	}
}

func TestRegistry_RoleAccessors(t *testing.T) {
	r := NewRegistry(DefaultRegistryConfig())

	gameID := uuid.New()
	testConn(r, gameID, models.RoleOperator, uuid.Nil)
	testConn(r, gameID, models.RoleTeam, uuid.New())
	testConn(r, gameID, models.RoleTeam, uuid.New())

	assert.Len(t, r.OperatorsOf(gameID), 1)
	assert.Len(t, r.TeamsOf(gameID), 2)
}

func TestRegistry_Stats(t *testing.T) {
	r := NewRegistry(DefaultRegistryConfig())

	gameA, gameB := uuid.New(), uuid.New()
	testConn(r, gameA, models.RoleOperator, uuid.Nil)
	testConn(r, gameA, models.RoleTeam, uuid.New())
	testConn(r, gameB, models.RoleTeam, uuid.New())

	total, perGame := r.Stats()
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, perGame[gameA.String()])
	assert.Equal(t, 1, perGame[gameB.String()])
}
