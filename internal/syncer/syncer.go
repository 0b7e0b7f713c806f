// Package syncer runs one synchronization cycle: decide what changed
// since the watermark, summarize it, persist the memory document, and
// advance the watermark. Commit cycles move the watermark; draft cycles
// (uncommitted working-tree changes) never do.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/repomindhq/repomind/internal/diff"
	"github.com/repomindhq/repomind/internal/gitx"
	"github.com/repomindhq/repomind/internal/journal"
	"github.com/repomindhq/repomind/internal/memdoc"
	"github.com/repomindhq/repomind/internal/providers"
	"github.com/repomindhq/repomind/internal/state"
)

// ErrBusy is returned when another cycle holds the persisted lock.
var ErrBusy = errors.New("a sync cycle is already running")

// Documenter is the summarization capability the syncer needs.
type Documenter interface {
	Update(ctx context.Context, d diff.Diff, current string, level providers.ThinkingLevel) (string, error)
	InferFromStructure(ctx context.Context, fileTree []string, readme string) (string, error)
}

// Result describes what a cycle did.
type Result struct {
	Kind    string // journal.KindCommit, KindDraft, KindBootstrap, or "" when idle
	Outcome string
	From    string
	To      string
}

// Syncer coordinates one repository.
type Syncer struct {
	repo   *gitx.Repo
	store  *memdoc.Store
	doc    Documenter
	states *state.File
	jnl    *journal.Journal
	policy diff.Policy
	level  providers.ThinkingLevel
}

// New wires a syncer. jnl may be nil (journaling disabled).
func New(repo *gitx.Repo, store *memdoc.Store, doc Documenter, states *state.File, jnl *journal.Journal, policy diff.Policy, level providers.ThinkingLevel) *Syncer {
	return &Syncer{
		repo:   repo,
		store:  store,
		doc:    doc,
		states: states,
		jnl:    jnl,
		policy: policy,
		level:  level,
	}
}

// SyncOnce runs a single cycle. It acquires the persisted processing
// lock, picks the cycle kind, and always releases the lock on the way
// out, success or not. The watermark only advances after a successful
// commit-cycle write.
func (s *Syncer) SyncOnce(ctx context.Context) (Result, error) {
	st, err := s.states.Load()
	if err != nil {
		return Result{}, err
	}
	if st.IsProcessing {
		return Result{}, ErrBusy
	}
	st.IsProcessing = true
	if err := s.states.Save(st); err != nil {
		return Result{}, fmt.Errorf("acquire processing lock: %w", err)
	}
	defer func() {
		st.IsProcessing = false
		if err := s.states.Save(st); err != nil {
			slog.Error("release processing lock", "error", err)
		}
	}()

	head, err := s.repo.HeadRevision(ctx)
	if errors.Is(err, gitx.ErrNoCommits) {
		head = ""
	} else if err != nil {
		return Result{}, err
	}

	current, err := s.store.Read(ctx)
	if err != nil {
		return Result{}, err
	}

	// Cold start: no document yet. With no history either, infer one
	// from the project layout; with commits present, build it from the
	// head commit's real diff instead, falling back to structure
	// inference when that diff carries nothing substantive. Either way
	// the watermark anchors at head so earlier history never replays.
	if current == "" {
		var res Result
		if head == "" {
			res, err = s.bootstrap(ctx, head)
		} else {
			res, err = s.commitCycle(ctx, "", head, "")
			if err == nil && res.Outcome == journal.OutcomeSkipped {
				res, err = s.bootstrap(ctx, head)
			}
		}
		if err != nil {
			return res, err
		}
		st.LastProcessedRevision = head
		return res, nil
	}

	if head != "" && head != st.LastProcessedRevision {
		res, err := s.commitCycle(ctx, st.LastProcessedRevision, head, current)
		if err != nil {
			return res, err
		}
		st.LastProcessedRevision = head
		return res, nil
	}

	return s.draftCycle(ctx, head, current)
}

func (s *Syncer) bootstrap(ctx context.Context, head string) (Result, error) {
	id := s.begin(journal.KindBootstrap, "", head)
	res := Result{Kind: journal.KindBootstrap, To: head}

	files, err := s.repo.ListFiles(ctx)
	if err != nil {
		return s.fail(res, id, err)
	}
	doc, err := s.doc.InferFromStructure(ctx, files, s.readReadme())
	if err != nil {
		return s.fail(res, id, err)
	}
	if err := s.store.Write(ctx, doc); err != nil {
		return s.fail(res, id, err)
	}

	slog.Info("memory document bootstrapped", "files", len(files), "head", head)
	return s.ok(res, id, "")
}

func (s *Syncer) commitCycle(ctx context.Context, from, to, current string) (Result, error) {
	id := s.begin(journal.KindCommit, from, to)
	res := Result{Kind: journal.KindCommit, From: from, To: to}

	var raw string
	var err error
	if from == "" {
		raw, err = s.repo.DiffRevision(ctx, to)
	} else {
		raw, err = s.repo.DiffRange(ctx, from, to)
	}
	if err != nil {
		return s.fail(res, id, err)
	}

	return s.summarizeAndWrite(ctx, res, id, raw, current)
}

// draftCycle summarizes uncommitted changes. The document reflects the
// working tree, but the watermark stays put: once these changes are
// committed, the commit cycle reprocesses them against the real range.
func (s *Syncer) draftCycle(ctx context.Context, head, current string) (Result, error) {
	raw, err := s.repo.WorkingTreeDiff(ctx)
	if err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(raw) == "" {
		return Result{}, nil
	}

	id := s.begin(journal.KindDraft, head, "")
	res := Result{Kind: journal.KindDraft, From: head}
	return s.summarizeAndWrite(ctx, res, id, raw, current)
}

func (s *Syncer) summarizeAndWrite(ctx context.Context, res Result, id, raw, current string) (Result, error) {
	cleaned := diff.Clean(diff.Parse(raw), s.policy)
	if cleaned.Empty() || diff.IsCosmeticOnly(cleaned) {
		slog.Info("cycle skipped, nothing substantive", "kind", res.Kind, "from", res.From, "to", res.To)
		res.Outcome = journal.OutcomeSkipped
		s.finish(id, journal.OutcomeSkipped, "no substantive changes")
		return res, nil
	}

	updated, err := s.doc.Update(ctx, cleaned, current, s.level)
	if err != nil {
		return s.fail(res, id, err)
	}
	if err := s.store.Write(ctx, updated); err != nil {
		return s.fail(res, id, err)
	}

	slog.Info("memory document updated",
		"kind", res.Kind, "from", res.From, "to", res.To, "sections", len(cleaned.Sections))
	return s.ok(res, id, "")
}

func (s *Syncer) readReadme() string {
	for _, name := range []string{"README.md", "README", "readme.md"} {
		data, err := os.ReadFile(filepath.Join(s.repo.Root(), name))
		if err == nil {
			return string(data)
		}
	}
	return ""
}

func (s *Syncer) begin(kind, from, to string) string {
	if s.jnl == nil {
		return ""
	}
	return s.jnl.Begin(kind, from, to)
}

func (s *Syncer) finish(id, outcome, detail string) {
	if s.jnl != nil && id != "" {
		s.jnl.Finish(id, outcome, detail)
	}
}

func (s *Syncer) ok(res Result, id, detail string) (Result, error) {
	res.Outcome = journal.OutcomeOK
	s.finish(id, journal.OutcomeOK, detail)
	return res, nil
}

func (s *Syncer) fail(res Result, id string, err error) (Result, error) {
	res.Outcome = journal.OutcomeFailed
	s.finish(id, journal.OutcomeFailed, err.Error())
	return res, err
}
