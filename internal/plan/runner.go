package plan

import (
	"context"
	"fmt"
	"time"

	"github.com/eugenetaranov/t2/internal/module"
	"github.com/eugenetaranov/t2/internal/output"
	"github.com/eugenetaranov/t2/pkg/facts"
)

// Runner runs plans against one board.
type Runner struct {
	// Output handles formatted output.
	Output *output.Output

	// Board is the board steps run against.
	Board module.Board

	// Target names the board in step output.
	Target string

	// DryRun only shows what would be done without touching the board.
	DryRun bool

	// Debug prints detailed step results.
	Debug bool
}

// Result holds the result of a plan run.
type Result struct {
	// Success is true if every step completed or its failure was ignored.
	Success bool

	// Stats holds execution statistics.
	Stats *Stats

	// Vars holds the variables at the end of the run, including
	// registered results.
	Vars Vars
}

// Stats holds execution statistics.
type Stats struct {
	Steps     int
	OK        int
	Changed   int
	Failed    int
	Skipped   int
	StartTime time.Time
	EndTime   time.Time
}

// Duration returns the total execution time.
func (s *Stats) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// GetOK returns the OK count (implements output.Stats).
func (s *Stats) GetOK() int { return s.OK }

// GetChanged returns the Changed count (implements output.Stats).
func (s *Stats) GetChanged() int { return s.Changed }

// GetFailed returns the Failed count (implements output.Stats).
func (s *Stats) GetFailed() int { return s.Failed }

// GetSkipped returns the Skipped count (implements output.Stats).
func (s *Stats) GetSkipped() int { return s.Skipped }

// GetDuration returns the duration (implements output.Stats).
func (s *Stats) GetDuration() time.Duration { return s.Duration() }

// stepResult holds the result of a step execution.
type stepResult struct {
	status string // ok, changed, skipped
}

// Run executes the steps of p in order, stopping at the first failure that
// is not ignored.
func (r *Runner) Run(ctx context.Context, p *Plan) (*Result, error) {
	stats := &Stats{StartTime: time.Now()}
	vars := newVars(p.Vars)

	result := &Result{
		Success: true,
		Stats:   stats,
		Vars:    vars,
	}

	r.Output.PlanStart(p.Path)
	if p.Name != "" {
		r.Output.Section(p.Name)
	}

	if err := r.runSteps(ctx, p, vars, stats); err != nil {
		result.Success = false
		r.Output.Error("Plan failed: %v", err)
	}

	stats.EndTime = time.Now()
	r.Output.PlanEnd(stats)

	return result, nil
}

func (r *Runner) runSteps(ctx context.Context, p *Plan, vars Vars, stats *Stats) error {
	if p.GatherFacts {
		f, err := facts.Gather(ctx, r.Board.Executor())
		if err != nil {
			r.Output.StepResult("Gathering Facts", "failed", err.Error())
			return fmt.Errorf("failed to gather facts: %w", err)
		}
		vars["facts"] = f
		r.Output.StepResult("Gathering Facts", "ok", "")
	}

	for _, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		stats.Steps++

		res, err := r.runStep(ctx, vars, step)
		if err != nil {
			stats.Failed++
			if !step.IgnoreErrors {
				return fmt.Errorf("%s: %w", step, err)
			}
			r.report(step, "failed (ignored)", err.Error(), nil)
			continue
		}

		switch res.status {
		case "ok":
			stats.OK++
		case "changed":
			stats.Changed++
		case "skipped":
			stats.Skipped++
		}
	}

	return nil
}

// runStep executes a single step.
func (r *Runner) runStep(ctx context.Context, vars Vars, step *Step) (*stepResult, error) {
	if step.When != "" && !vars.evaluateCondition(step.When) {
		r.report(step, "skipped", "when condition not met", nil)
		return &stepResult{status: "skipped"}, nil
	}

	ExpandShorthand(step)

	mod, err := ResolveModule(step)
	if err != nil {
		r.report(step, "failed", err.Error(), nil)
		return nil, err
	}

	params, err := vars.interpolateParams(step.Params)
	if err != nil {
		r.report(step, "failed", err.Error(), nil)
		return nil, fmt.Errorf("failed to interpolate parameters: %w", err)
	}

	if r.DryRun {
		r.report(step, "skipped (dry run)", "", nil)
		return &stepResult{status: "skipped"}, nil
	}

	res, err := mod.Run(ctx, r.Board, params)
	if err != nil {
		if !step.IgnoreErrors {
			r.report(step, "failed", err.Error(), nil)
		}
		return nil, err
	}

	if step.Register != "" {
		vars[step.Register] = map[string]any{
			"changed": res.Changed,
			"message": res.Message,
			"data":    res.Data,
		}
	}

	status := "ok"
	if res.Changed {
		status = "changed"
	}
	r.report(step, status, res.Message, res.Data)

	return &stepResult{status: status}, nil
}

func (r *Runner) report(step *Step, status, message string, data map[string]any) {
	if r.Debug {
		r.Output.StepResultDetailed(step.String(), step.Module, r.Target, status, message, data)
		return
	}
	r.Output.StepResult(step.String(), status, message)
}
