package cli

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"Pasture/internal/domain/models"
	"Pasture/internal/usecase"
	"Pasture/pkg/config"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	name    string
	payload models.JobPayload
}

func (f *fakeRunner) Run(_ context.Context, name string, p models.JobPayload) (interface{}, error) {
	f.name, f.payload = name, p
	return map[string]int{"processed": 1}, nil
}

func memoryConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend:\n  type: memory\n"), 0o600))
	return path
}

func run(t *testing.T, c *jobCmd, args ...string) (subcommands.ExitStatus, *fakeRunner, string) {
	t.Helper()
	fake := &fakeRunner{}
	var out bytes.Buffer
	c.out = &out
	c.connect = func(*config.Config) (JobRunner, func(), error) { return fake, func() {}, nil }

	fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	c.SetFlags(fs)
	require.NoError(t, fs.Parse(args))
	return c.Execute(context.Background(), fs), fake, out.String()
}

func TestCommandsCoverEveryJob(t *testing.T) {
	var jobs []string
	for _, c := range Commands {
		jobs = append(jobs, c.(*jobCmd).job)
	}
	assert.ElementsMatch(t, usecase.JobNames, jobs)
}

func TestSettleCommand(t *testing.T) {
	c := newJobCmd(usecase.JobSettlement, "settle", "rebuild settlement ledgers", true)
	status, fake, out := run(t, c, "-config", memoryConfig(t), "-account", "A1")
	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Equal(t, usecase.JobSettlement, fake.name)
	assert.Equal(t, models.JobPayload{AccountID: "A1"}, fake.payload)
	assert.Contains(t, out, `"processed": 1`)
}

func TestSimulateCommandPayload(t *testing.T) {
	c := newJobCmd(usecase.JobPortfolio, "simulate", "run the simulation", false)
	status, fake, _ := run(t, c, "-config", memoryConfig(t), "-symbols", "spy, qqq,,tlt")
	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Equal(t, []string{"SPY", "QQQ", "TLT"}, fake.payload.Symbols)
}

func TestProfileCommandRejectsUnknownPeriod(t *testing.T) {
	c := newJobCmd(usecase.JobProfile, "profile", "compute profiles", false)
	status, fake, _ := run(t, c, "-config", memoryConfig(t), "-period", "2W")
	assert.Equal(t, subcommands.ExitUsageError, status)
	assert.Empty(t, fake.name)

	status, fake, _ = run(t, c, "-config", memoryConfig(t), "-period", "1y")
	assert.Equal(t, subcommands.ExitSuccess, status)
	assert.Equal(t, "1Y", fake.payload.Period)
}

func TestMissingConfigIsUsageError(t *testing.T) {
	c := newJobCmd(usecase.JobHolding, "holdings", "rebuild holdings", true)
	status, _, _ := run(t, c, "-config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Equal(t, subcommands.ExitUsageError, status)
}
