package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// duelLevel puts the player and one enemy on the same row
func duelLevel(level int) *LevelConfig {
	rules := testRules()
	return &LevelConfig{
		Level:      level,
		StageName:  fmt.Sprintf("Duel %d", level),
		EnemyCount: 1,
		Map: [][]int{
			{0, 0, 0, 0, 0},
			{1, 0, 0, 2, 0},
			{0, 0, 0, 0, 0},
		},
		Rules: &rules,
	}
}

// levelList is an in-memory LevelSource; a nil entry fails to load
type levelList []*LevelConfig

func (l levelList) LevelCount() int { return len(l) }

func (l levelList) LevelAt(i int) (*LevelConfig, error) {
	if i < 0 || i >= len(l) {
		return nil, fmt.Errorf("level %d out of range", i)
	}
	if l[i] == nil {
		return nil, errors.New("corrupt level file")
	}
	return l[i], nil
}

func quietLogger() (*logrus.Logger, *logtest.Hook) {
	return logtest.NewNullLogger()
}

func TestNewEngine(t *testing.T) {
	e, err := NewEngine(duelLevel(1))
	require.NoError(t, err)
	require.NotNil(t, e.World())

	w := e.World()
	assert.True(t, w.PlayerAlive())
	assert.Equal(t, Position{X: 0, Y: 1}, w.Player.Pos)
	assert.Equal(t, 1, w.Remaining)
	assert.False(t, e.IsGameOver())
	assert.False(t, e.IsVictory())
	assert.False(t, e.IsSettled())
	assert.Equal(t, 0, e.LevelIndex())
	assert.Equal(t, "Duel 1", e.Config().StageName)

	_, err = NewEngine(&LevelConfig{Level: 1})
	assert.Error(t, err)
}

func TestEngineStep_PlayerMoveCadence(t *testing.T) {
	level := duelLevel(1)
	level.Rules.PlayerMoveCadence = 4
	e, err := NewEngine(level)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		e.Step(Input{Direction: Down})
	}
	assert.Equal(t, Position{X: 0, Y: 1}, e.World().Player.Pos, "player must wait for its move cadence")

	e.Step(Input{Direction: Down})
	assert.Equal(t, Position{X: 0, Y: 2}, e.World().Player.Pos)
	assert.Equal(t, Down, e.World().Player.Dir)
}

func TestEngineStep_FireGatedByStartDelay(t *testing.T) {
	level := duelLevel(1)
	level.Rules.StartDelay = 5
	e, err := NewEngine(level)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		events := e.Step(Input{Fire: true})
		assert.Zero(t, countEvents(events, EventFire), "tick %d", i+1)
	}
	events := e.Step(Input{Fire: true})
	assert.Equal(t, 1, countEvents(events, EventFire))
	assert.True(t, e.World().Player.Firing)
}

func TestEngine_PlayerDestroysEnemyAndWins(t *testing.T) {
	e, err := NewEngine(duelLevel(1))
	require.NoError(t, err)

	var destroyed, victories int
	for i := 0; i < 10 && !e.IsVictory(); i++ {
		events := e.Step(Input{Fire: true})
		destroyed += countEvents(events, EventDestroy)
		victories += countEvents(events, EventVictory)
	}

	require.True(t, e.IsVictory(), "expected the player's bullet to destroy the only enemy")
	assert.Equal(t, 1, destroyed)
	assert.Equal(t, 1, victories)
	assert.Equal(t, 0, e.World().Remaining)
	assert.False(t, e.IsGameOver())
}

// Death, game over, countdown, settled, restart, end to end
func TestEngine_GameOverCountdownAndRestart(t *testing.T) {
	e, err := NewEngine(duelLevel(1))
	require.NoError(t, err)

	w := e.World()
	var enemy *EnemyTank
	for _, en := range w.Enemies {
		enemy = en
	}
	require.NotNil(t, enemy)
	enemy.Dir = Left
	require.True(t, w.Fire(&enemy.Tank))

	gameOvers := 0
	for i := 0; i < 3; i++ {
		gameOvers += countEvents(e.Step(Input{}), EventGameOver)
	}
	require.True(t, e.IsGameOver(), "expected the enemy bullet to kill the player on tick 3")
	assert.Equal(t, 1, gameOvers)
	assert.False(t, w.PlayerAlive())
	assert.Equal(t, 3+180, w.SettleAt)

	for i := 0; i < 179; i++ {
		e.Step(Input{})
	}
	assert.False(t, e.IsSettled())
	e.Step(Input{})
	require.True(t, e.IsSettled())

	// Input other than restart is ignored once settled
	tick := w.Tick
	assert.Nil(t, e.Step(Input{Direction: Up, Fire: true}))
	assert.Equal(t, tick, e.World().Tick)

	e.Step(Input{Restart: true})
	fresh := e.World()
	require.NotSame(t, w, fresh, "restart must build a new world")
	assert.False(t, fresh.GameOver)
	assert.True(t, fresh.PlayerAlive())
	assert.Equal(t, 0, fresh.Tick)
	assert.Equal(t, DefaultRules().Lives, fresh.Lives)
	assert.NotEqual(t, w.RunID, fresh.RunID)
}

func TestEngine_SinkReceivesEvents(t *testing.T) {
	e, err := NewEngine(duelLevel(1))
	require.NoError(t, err)

	var got []Event
	e.SetSink(EventSinkFunc(func(ev Event) { got = append(got, ev) }))
	returned := e.Step(Input{Fire: true})

	require.NotEmpty(t, got)
	assert.Equal(t, returned, got)
	assert.Equal(t, EventFire, got[0].Type)
	assert.Equal(t, PlayerID, got[0].Owner)

	// The sink follows the engine onto rebuilt worlds
	require.NoError(t, e.Reset())
	got = nil
	e.Step(Input{Fire: true})
	assert.NotEmpty(t, got)
}

func TestFirstLoadableLevel_SkipsFailures(t *testing.T) {
	log, hook := quietLogger()
	broken := duelLevel(2)
	broken.Map[1][0] = 0
	source := levelList{nil, broken, duelLevel(3)}

	index, config, err := FirstLoadableLevel(source, 0, log)
	require.NoError(t, err)
	assert.Equal(t, 2, index)
	assert.Equal(t, 3, config.Level)

	require.Len(t, hook.AllEntries(), 2)
	for _, entry := range hook.AllEntries() {
		assert.Equal(t, logrus.WarnLevel, entry.Level)
		assert.Contains(t, entry.Message, "skipping level")
	}
}

func TestFirstLoadableLevel_NoneLoad(t *testing.T) {
	log, _ := quietLogger()
	_, _, err := FirstLoadableLevel(levelList{nil, nil}, 0, log)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoLoadableLevel))

	_, _, err = FirstLoadableLevel(nil, 0, log)
	assert.Error(t, err)
}

func TestEngine_CampaignProgression(t *testing.T) {
	log, _ := quietLogger()
	source := levelList{duelLevel(1), nil, duelLevel(3)}
	e, err := NewEngineFromSource(source, 0, log)
	require.NoError(t, err)
	require.Equal(t, 0, e.LevelIndex())

	// Win and settle the first level with a spare life
	w := e.World()
	w.Lives = 3
	w.Win, w.Settled = true, true

	e.Step(Input{Restart: true})
	assert.Equal(t, 2, e.LevelIndex(), "the corrupt level must be skipped")
	assert.Equal(t, 3, e.Config().Level)
	assert.Equal(t, 3, e.World().Lives, "lives carry over to the next level")

	// Winning the last level starts the campaign over
	e.World().Win, e.World().Settled = true, true
	require.NoError(t, e.Restart())
	assert.Equal(t, 0, e.LevelIndex())

	// A settled game over goes back to the first level with fresh lives
	e.World().GameOver, e.World().Settled = true, true
	e.World().Lives = 0
	require.NoError(t, e.Restart())
	assert.Equal(t, 0, e.LevelIndex())
	assert.Equal(t, DefaultRules().Lives, e.World().Lives)
}

func TestEngine_RestartRespawnsWhileLivesRemain(t *testing.T) {
	level := duelLevel(1)
	level.Rules.Lives = 2
	e, err := NewEngine(level)
	require.NoError(t, err)

	e.World().Player.HP = 0
	e.Step(Input{})
	require.False(t, e.World().PlayerAlive())
	require.False(t, e.IsGameOver())

	require.NoError(t, e.Restart())
	assert.True(t, e.World().PlayerAlive())
	assert.Equal(t, 1, e.World().Lives)
}

func TestEngine_Reset(t *testing.T) {
	e, err := NewEngine(duelLevel(1))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		e.Step(Input{Direction: Down})
	}
	before := e.World()

	require.NoError(t, e.Reset())
	assert.NotSame(t, before, e.World())
	assert.Equal(t, 0, e.World().Tick)
	assert.Equal(t, Position{X: 0, Y: 1}, e.World().Player.Pos)
}
