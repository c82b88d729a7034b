package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"taskflow/internal/logging"
	"taskflow/internal/util"
	"taskflow/internal/workflow/types"
)

// runForEach runs one clone of a per entry, each with the entry merged over a
// copy of the scope. Every clone runs regardless of the others' outcome.
func (r *Runtime) runForEach(ctx context.Context, f frame, a *types.Action, conditional bool) error {
	fe := a.Repeat.ForEach
	if fe.Entries == nil && fe.Ref != "" {
		msg := fmt.Sprintf(`"repeat.forEach" must be a list, got %q.`, fe.Ref)
		r.logActionFailed(f, a, msg)
		return actionErrorf(KindInput, a, "%s", msg)
	}

	var failed []error
	for _, entry := range fe.Entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		clone := *a
		clone.Repeat = nil
		cf := f
		cf.scope = f.scope.Clone().Merge(entry)
		if err := r.runAction(ctx, cf, &clone, conditional); err != nil {
			failed = append(failed, err)
		}
	}

	switch {
	case len(failed) == 0:
		return nil
	case len(failed) == 1:
		return failed[0]
	}
	allValidator := true
	for _, err := range failed {
		if !isValidatorFailure(err) {
			allValidator = false
			break
		}
	}
	if allValidator {
		return failed[0]
	}
	return &ActionError{
		Kind:    KindRun,
		Action:  a.Name,
		Message: fmt.Sprintf("%d of %d repeat.forEach iterations failed.", len(failed), len(fe.Entries)),
		Err:     errors.Join(failed...),
	}
}

// repeatUntilValidatorsPass retries a until its validators pass. Only
// validator failures are retried; the scope carries across attempts.
func (r *Runtime) repeatUntilValidatorsPass(ctx context.Context, f frame, a *types.Action) error {
	spec := a.Repeat.UntilValidatorsPass
	interval := time.Duration(spec.IntervalMillis()) * time.Millisecond
	maxRetries := spec.Max()

	limit := "∞"
	if maxRetries > 0 {
		limit = strconv.Itoa(maxRetries)
	}
	log := logging.WithFields(map[string]interface{}{"action": a.Name})

	clone := *a
	clone.Repeat = nil

	var policy backoff.BackOff = backoff.NewConstantBackOff(interval)
	if maxRetries > 0 {
		policy = backoff.WithMaxRetries(policy, uint64(maxRetries-1))
	}
	policy = backoff.WithContext(policy, ctx)

	r.Console.Log(fmt.Sprintf("%s   Repeating Action (%s) Attempt - 1/%s", f.indent, a.Name, limit))
	restore := r.Console.Silence()

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		if attempt > 1 {
			r.Metrics.Retried()
			log.Debug(fmt.Sprintf("Repeating Action (%s) Attempt - %d/%s", a.Name, attempt, limit), nil)
		}
		err := r.runAction(ctx, f, &clone, true)
		if err == nil || isValidatorFailure(err) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)
	restore()

	if err == nil {
		r.actionSuccessMsg(f, a)
		return nil
	}
	var ae *ActionError
	switch {
	case isValidatorFailure(err):
		err = &ActionError{
			Kind:    KindRun,
			Action:  a.Name,
			Message: fmt.Sprintf("Max retries (%d) attempted.", maxRetries),
			Err:     err,
		}
	case !errors.As(err, &ae) && ctx.Err() != nil:
		err = &ActionError{Kind: KindRun, Action: a.Name, Message: err.Error(), Err: err}
	}
	r.Console.Log(fmt.Sprintf("%s   %s   Repeating Action (%s) Attempt - %d/%s", f.indent, util.MarkFailed, a.Name, attempt, limit))
	r.logActionFailed(f, a, err.Error())
	return err
}
