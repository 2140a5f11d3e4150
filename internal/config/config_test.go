package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antoniogi/dabmpi/internal/dabcontext"
)

func writeINI(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dab.ini")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaultsForOmittedOptions(t *testing.T) {
	path := writeINI(t, "[Algorithm]\ntime = 120\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, cfg.Runtime)
	assert.Equal(t, DriverWorker, cfg.CommModel)
	assert.Equal(t, "tcp", cfg.Transport)
	assert.Equal(t, dabcontext.Maximize, cfg.Objective)
	assert.Equal(t, 20, cfg.PendingSize)
	assert.Equal(t, 50, cfg.EliteQueue)
}

func TestLoadOverridesEveryOverridableOption(t *testing.T) {
	path := writeINI(t, `
[General]
commModel = ALL2ALL
transport = libp2p
peers = 127.0.0.1:9000,127.0.0.1:9001

[Algorithm]
time = 60
objective = min
pendingSize = 8
eliteQueue = 25

[Bees]
nemployed = 2
nonlooker = 3
iterationsAbandoned = 10
probEmployedChange = 0.5
probOnlookerChange = 0.25
onlookerModFactor = 0.2
useProbMatrix = true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, All2All, cfg.CommModel)
	assert.Equal(t, "libp2p", cfg.Transport)
	assert.Equal(t, []string{"127.0.0.1:9000", "127.0.0.1:9001"}, cfg.Peers)
	assert.Equal(t, 60*time.Second, cfg.Runtime)
	assert.Equal(t, dabcontext.Minimize, cfg.Objective)
	assert.Equal(t, 8, cfg.PendingSize)
	assert.Equal(t, 25, cfg.EliteQueue)
	assert.Equal(t, 2, cfg.NEmployed)
	assert.Equal(t, 3, cfg.NOnlooker)
	assert.Equal(t, 10, cfg.IterationsAbandoned)
	assert.Equal(t, 0.5, cfg.ProbEmployedChange)
	assert.Equal(t, 0.25, cfg.ProbOnlookerChange)
	assert.Equal(t, 0.2, cfg.OnlookerModFactor)
	assert.True(t, cfg.UseProbMatrix)
}

func TestLoadFailsWithoutRequiredTimeKey(t *testing.T) {
	path := writeINI(t, "[Algorithm]\nobjective = max\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidObjective(t *testing.T) {
	path := writeINI(t, "[Algorithm]\ntime = 60\nobjective = sideways\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidTransport(t *testing.T) {
	path := writeINI(t, "[General]\ntransport = carrier-pigeon\n[Algorithm]\ntime = 60\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateRejectsNonPositiveRuntime(t *testing.T) {
	cfg := defaults()
	cfg.Runtime = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownCommModel(t *testing.T) {
	cfg := defaults()
	cfg.Runtime = time.Minute
	cfg.CommModel = "SOMETHING_ELSE"
	assert.Error(t, cfg.Validate())
}

func TestAgentConfigProjectsBeesSection(t *testing.T) {
	cfg := defaults()
	cfg.ProbEmployedChange = 0.7
	cfg.IterationsAbandoned = 15

	ac := cfg.AgentConfig()
	assert.Equal(t, 0.7, ac.ProbEmployedChange)
	assert.Equal(t, 15, ac.IterAbandoned)
}
