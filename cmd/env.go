package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/repomindhq/repomind/internal/config"
	"github.com/repomindhq/repomind/internal/diff"
	"github.com/repomindhq/repomind/internal/gitx"
	"github.com/repomindhq/repomind/internal/journal"
	"github.com/repomindhq/repomind/internal/memdoc"
	"github.com/repomindhq/repomind/internal/providers"
	"github.com/repomindhq/repomind/internal/state"
	"github.com/repomindhq/repomind/internal/summarizer"
	"github.com/repomindhq/repomind/internal/syncer"
)

// env is the fully wired pipeline for one repository.
type env struct {
	cfg      config.Config
	repo     *gitx.Repo
	states   *state.File
	jnl      *journal.Journal
	sync     *syncer.Syncer
	debounce time.Duration
}

// buildEnv wires everything against the repository at repoPath. The
// caller owns Close.
func buildEnv() (*env, error) {
	root, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	apiKey, err := config.APIKey()
	if err != nil {
		return nil, err
	}

	repo := gitx.New(root)
	stateDir := config.StateDir(root)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, err
	}
	states := state.NewFile(stateDir)

	jnl, err := journal.Open(filepath.Join(stateDir, "journal.db"))
	if err != nil {
		return nil, fmt.Errorf("open cycle journal: %w", err)
	}

	gen := providers.NewOpenAIGenerator(apiKey, cfg.APIBase,
		providers.WithModel(cfg.Model),
		providers.WithContextWindow(cfg.ContextWindow),
		providers.WithCallsPerMinute(cfg.CallsPerMinute),
	)
	sum := summarizer.New(gen, cfg.TokenBudget)

	store := memdoc.NewStore(root, config.MemoryDocName, repo, sum)
	policy := diff.DefaultPolicy(config.StateDirName, config.MemoryDocName)

	return &env{
		cfg:      cfg,
		repo:     repo,
		states:   states,
		jnl:      jnl,
		sync:     syncer.New(repo, store, sum, states, jnl, policy, providers.ThinkingLevel(cfg.ThinkingLevel)),
		debounce: time.Duration(cfg.DebounceMS) * time.Millisecond,
	}, nil
}

func (e *env) Close() {
	if e.jnl != nil {
		if err := e.jnl.Close(); err != nil {
			slog.Warn("close journal", "error", err)
		}
	}
}
