package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/santa-draw-backend/internal/engine"
	"github.com/DoyleJ11/santa-draw-backend/internal/lobby"
)

type fakeLobby struct {
	cmds []engine.Command
	err  error
}

func (f *fakeLobby) Submit(_ context.Context, cmd engine.Command) (lobby.Outcome, error) {
	f.cmds = append(f.cmds, cmd)
	return lobby.Outcome{}, f.err
}

func TestSweepJob_SubmitsSweep(t *testing.T) {
	f := &fakeLobby{}
	sweepJob(f, 45*time.Second, zap.NewNop())()

	require.Len(t, f.cmds, 1)
	assert.Equal(t, engine.CmdSweepPresence, f.cmds[0].Type)
	assert.Equal(t, 45*time.Second, f.cmds[0].StaleAfter)

	f.err = errors.New("closed")
	sweepJob(f, time.Minute, zap.NewNop())()
	assert.Len(t, f.cmds, 2)
}

func TestStartPresenceSweep_RejectsBadSpec(t *testing.T) {
	_, err := StartPresenceSweep("every now and then", &fakeLobby{}, time.Minute, zap.NewNop())
	assert.Error(t, err)

	c, err := StartPresenceSweep("@every 30s", &fakeLobby{}, time.Minute, zap.NewNop())
	require.NoError(t, err)
	<-c.Stop().Done()
}
