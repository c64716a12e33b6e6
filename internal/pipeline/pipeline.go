// Package pipeline implements the Pipeline Controller (C13): the single
// public entry point that runs Resolve → Ensure → Prepare → Execute in
// order, times each stage, classifies whatever error surfaces into a
// PipelineError, and returns the child's exit code on success.
//
// Grounded on the teacher's internal/installer/engine/engine.go Event/Phase
// plumbing (each action reported with a start/complete/error event and a
// duration), trimmed from its multi-resource reconciliation loop down to
// this spec's single straight-through stage sequence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/terassyi/vx/internal/ensure"
	"github.com/terassyi/vx/internal/prepare"
	"github.com/terassyi/vx/internal/projectconfig"
	"github.com/terassyi/vx/internal/resolve"
	vxerrors "github.com/terassyi/vx/internal/vxerrors"
	"github.com/terassyi/vx/internal/vxexec"
)

// StageDuration records how long one pipeline stage took.
type StageDuration struct {
	Stage    string
	Duration time.Duration
}

// Metrics accumulates per-stage durations for one pipeline invocation (§4.13).
type Metrics struct {
	Stages []StageDuration
}

func (m *Metrics) record(stage string, since time.Time) {
	m.Stages = append(m.Stages, StageDuration{Stage: stage, Duration: time.Since(since)})
}

// Total returns the sum of every recorded stage duration.
func (m *Metrics) Total() time.Duration {
	var total time.Duration
	for _, s := range m.Stages {
		total += s.Duration
	}
	return total
}

// Controller wires the four stages together behind one Run call.
type Controller struct {
	Resolver *resolve.Resolver
	Ensure   *ensure.Stage
	Prepare  *prepare.Stage
	Project  *projectconfig.Config
	Timeout  time.Duration

	// OnEnsured, if set, is called with the resolved plan right after a
	// successful Ensure, before Prepare/Execute. The CLI front end uses this
	// to publish shim launchers (C14) without Run itself depending on them.
	OnEnsured func(*resolve.ResolutionPlan)
}

// NewController builds a Controller from its already-constructed stages.
func NewController(resolver *resolve.Resolver, ensureStage *ensure.Stage, prepareStage *prepare.Stage, project *projectconfig.Config) *Controller {
	return &Controller{Resolver: resolver, Ensure: ensureStage, Prepare: prepareStage, Project: project}
}

// Run resolves spec, ensures its plan is installed (plus any project
// companion tools), prepares the execution, and executes it, returning the
// child's exit code. Any stage error is classified into a *vxerrors.PipelineError
// and returned alongside an exit code of 1; an internal, unclassified error
// (a bug, not a user-facing condition any stage's taxonomy models) returns 2.
func (c *Controller) Run(ctx context.Context, spec resolve.ToolSpec, args []string) (int, Metrics, error) {
	var metrics Metrics

	start := time.Now()
	plan, err := c.Resolver.Resolve(ctx, spec)
	metrics.record("resolve", start)
	if err != nil {
		return c.fail(err)
	}
	slog.Debug("pipeline: resolved", "runtime", spec.Name, "entries", len(plan.Entries))

	start = time.Now()
	if err := c.Ensure.Ensure(ctx, plan); err != nil {
		metrics.record("ensure", start)
		return c.fail(err)
	}
	if c.OnEnsured != nil {
		c.OnEnsured(plan)
	}

	var companionPreps []prepare.CompanionResult
	if c.Project != nil {
		companions := c.Project.GetCompanionTools(plan.Root().Runtime)
		if errs := c.Ensure.EnsureCompanions(ctx, c.Resolver, companions); len(errs) > 0 {
			metrics.record("ensure", start)
			return c.fail(errors.Join(errs...))
		}
		for _, companion := range companions {
			cp, err := c.Prepare.CompanionPrep(ctx, c.Resolver, companion)
			if err != nil {
				metrics.record("ensure", start)
				return c.fail(err)
			}
			companionPreps = append(companionPreps, cp)
		}
	}
	metrics.record("ensure", start)

	start = time.Now()
	prepared, err := c.Prepare.Prepare(ctx, plan, args, companionPreps)
	metrics.record("prepare", start)
	if err != nil {
		return c.fail(err)
	}

	start = time.Now()
	result, err := vxexec.Run(ctx, vxexec.Request{
		Executable: prepared.Executable,
		Argv:       prepared.Argv,
		Cwd:        prepared.Cwd,
		EnvOverlay: prepared.EnvOverlay,
		PathPrefix: prepared.PathPrefix,
		Timeout:    c.Timeout,
	})
	metrics.record("execute", start)
	if err != nil {
		return c.fail(err)
	}

	return result.ExitCode, metrics, nil
}

// fail classifies err into a PipelineError where possible and settles on an
// exit code: 1 for anything this taxonomy models, 2 for a genuinely
// unclassified failure (§7's "reserved values above 1").
func (c *Controller) fail(err error) (int, Metrics, error) {
	if pe := classify(err); pe != nil {
		return pe.ExitCode(), Metrics{}, pe
	}
	return 2, Metrics{}, fmt.Errorf("pipeline: unclassified failure: %w", err)
}

// classify walks err's chain looking for a *PipelineError or one of the
// stage-specific error types, wrapping the latter so callers always get a
// single PipelineError shape to print from.
func classify(err error) *vxerrors.PipelineError {
	var pe *vxerrors.PipelineError
	if errors.As(err, &pe) {
		return pe
	}
	var resolveErr *vxerrors.ResolveError
	if errors.As(err, &resolveErr) {
		return vxerrors.WrapResolve(resolveErr)
	}
	var ensureErr *vxerrors.EnsureError
	if errors.As(err, &ensureErr) {
		return vxerrors.WrapEnsure(ensureErr)
	}
	var prepareErr *vxerrors.PrepareError
	if errors.As(err, &prepareErr) {
		return vxerrors.WrapPrepare(prepareErr)
	}
	var executeErr *vxerrors.ExecuteError
	if errors.As(err, &executeErr) {
		return vxerrors.WrapExecute(executeErr)
	}
	return nil
}
