// Package cli exposes the batch jobs as pasturectl subcommands.
package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"Pasture/internal/di"
	"Pasture/internal/domain/models"
	"Pasture/internal/usecase"
	"Pasture/pkg/config"

	"github.com/google/subcommands"
)

// JobRunner runs one named job. *usecase.Jobs satisfies it.
type JobRunner interface {
	Run(ctx context.Context, name string, p models.JobPayload) (interface{}, error)
}

// Commands lists every subcommand, one per job.
var Commands = []subcommands.Command{
	newJobCmd(usecase.JobSettlement, "settle", "rebuild settlement ledgers", true),
	newJobCmd(usecase.JobHolding, "holdings", "rebuild daily holdings", true),
	newJobCmd(usecase.JobPortfolio, "simulate", "run the rebalancing simulation and store the latest weights", false),
	newJobCmd(usecase.JobProfile, "profile", "compute asset risk/return profiles", false),
	newJobCmd(usecase.JobCorrelation, "correlate", "snapshot the asset correlation matrix", false),
}

type jobCmd struct {
	job      string
	name     string
	synopsis string
	accounts bool

	config  string
	account string
	period  string
	symbols string

	out     io.Writer
	connect func(cfg *config.Config) (JobRunner, func(), error)
}

func newJobCmd(job, name, synopsis string, accounts bool) *jobCmd {
	return &jobCmd{job: job, name: name, synopsis: synopsis, accounts: accounts, out: os.Stdout, connect: connectJobs}
}

func connectJobs(cfg *config.Config) (JobRunner, func(), error) {
	return di.InitializeJobs(cfg)
}

func (c *jobCmd) Name() string     { return c.name }
func (c *jobCmd) Synopsis() string { return c.synopsis }
func (c *jobCmd) Usage() string {
	if c.accounts {
		return fmt.Sprintf(`pasturectl %s [-config <path>] [-account <id>]

  %s. Every active account is processed unless -account is set.
`, c.name, capitalize(c.synopsis))
	}
	return fmt.Sprintf(`pasturectl %s [-config <path>] [-period <1M..5Y>] [-symbols A,B,C]

  %s.
`, c.name, capitalize(c.synopsis))
}

func (c *jobCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "config", "config/config.yaml", "config file path")
	if c.accounts {
		f.StringVar(&c.account, "account", "", "only this account")
		return
	}
	f.StringVar(&c.period, "period", "", "trailing window (profile and correlate)")
	f.StringVar(&c.symbols, "symbols", "", "comma separated symbols (simulate)")
}

func (c *jobCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.LoadWithEnv(c.config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	payload, err := c.payload()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	jobs, cleanup, err := c.connect(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer cleanup()

	res, err := jobs.Run(ctx, c.job, payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *jobCmd) payload() (models.JobPayload, error) {
	p := models.JobPayload{AccountID: c.account}
	if c.period != "" {
		period, err := models.ParsePeriod(c.period)
		if err != nil {
			return p, err
		}
		p.Period = string(period)
	}
	for _, s := range strings.Split(c.symbols, ",") {
		if s = strings.TrimSpace(s); s != "" {
			p.Symbols = append(p.Symbols, strings.ToUpper(s))
		}
	}
	return p, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
