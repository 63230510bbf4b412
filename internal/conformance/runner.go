package conformance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/astronomer/ap-airflow/internal/model"
)

// Runner executes checks one after another and collects a report. A
// failing check never stops the run.
type Runner struct {
	env *Env

	// now is swapped out in tests.
	now func() time.Time
}

// NewRunner creates a Runner for env.
func NewRunner(env *Env) *Runner {
	return &Runner{env: env, now: time.Now}
}

// Run executes checks in order.
func (r *Runner) Run(ctx context.Context, checks []Check) *model.Report {
	report := &model.Report{
		AirflowVersion: r.env.Config.AirflowVersion,
		EdgeBuild:      r.env.Config.EdgeBuild,
		StartedAt:      r.now(),
		Results:        make([]model.CheckResult, 0, len(checks)),
	}

	for _, c := range checks {
		res := r.runOne(ctx, c)
		report.Results = append(report.Results, res)
	}
	return report
}

func (r *Runner) runOne(ctx context.Context, c Check) model.CheckResult {
	log := r.env.logger().WithField("check", c.Name)
	res := model.CheckResult{Name: c.Name}

	if c.Skip != nil {
		if reason := c.Skip(r.env.Config); reason != "" {
			res.Status = model.StatusSkipped
			res.Message = reason
			log.WithField("reason", reason).Info("Skipped")
			return res
		}
	}
	if err := ctx.Err(); err != nil {
		res.Status = model.StatusSkipped
		res.Message = fmt.Sprintf("run cancelled: %v", err)
		return res
	}
	for _, t := range c.Targets {
		if !r.env.hasTarget(t) {
			res.Status = model.StatusFailed
			res.Message = fmt.Sprintf("no %s target configured", t)
			log.Error(res.Message)
			return res
		}
	}

	log.Debug("Running")
	start := r.now()
	err := c.Run(ctx, r.env)
	res.Duration = r.now().Sub(start)

	if err == nil {
		res.Status = model.StatusPassed
		log.WithField("duration", res.Duration).Info("Passed")
		return res
	}

	res.Status = model.StatusFailed
	res.Message = err.Error()
	var assertErr *model.AssertionError
	if errors.As(err, &assertErr) {
		log.WithField("duration", res.Duration).Error(res.Message)
	} else {
		log.WithFields(logrus.Fields{"duration": res.Duration, "error": err}).Error("Could not run check")
	}
	return res
}
