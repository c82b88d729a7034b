package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"

	"taskflow/internal/actions"
	"taskflow/internal/logging"
	"taskflow/internal/metrics"
	"taskflow/internal/util"
	"taskflow/internal/workflow/parser"
	"taskflow/internal/workflow/types"
)

// RunAction runs a single action with the given starting scope. Variables it
// extracts are written into opts.Extracted when that is non-nil.
func (r *Runtime) RunAction(ctx context.Context, action *types.Action, opts RunOptions) error {
	return r.runAction(ctx, r.frame(opts), action, false)
}

// runAction is the entry for every action run: top level, conditions, repeat
// clones and retry attempts. conditional marks a run whose validator failure
// is a signal to the caller rather than an error of its own.
func (r *Runtime) runAction(ctx context.Context, f frame, action *types.Action, conditional bool) error {
	f.logDir = filepath.Join(f.logDir, fmt.Sprintf("action_sequence_%d_%s", r.seq.Next(), action.Name))
	if f.scope == nil {
		f.scope = types.Vars{}
	}

	// A repeated action is resolved per iteration; only the repeat block
	// itself is resolved up front.
	if action.Repeat != nil {
		rp, err := resolveRepeat(action.Repeat, f.scope)
		if err != nil {
			msg := fmt.Sprintf("Failed to resolve variables: %v", err)
			r.logActionFailed(f, action, msg)
			return actionErrorf(KindInput, action, "%s", msg)
		}
		a := *action
		a.Repeat = rp
		switch {
		case rp.ForEach != nil && rp.UntilValidatorsPass != nil:
			msg := `"repeat.forEach" and "repeat.untilValidatorsPass" are mutually exclusive.`
			r.logActionFailed(f, &a, msg)
			return actionErrorf(KindInput, &a, "%s", msg)
		case rp.ForEach != nil:
			return r.runForEach(ctx, f, &a, conditional)
		case rp.UntilValidatorsPass != nil:
			return r.repeatUntilValidatorsPass(ctx, f, &a)
		default:
			return actionErrorf(KindInput, &a, `No properties specified on "repeat".`)
		}
	}

	a, err := resolveAction(action, f.scope)
	if err != nil {
		msg := fmt.Sprintf("Failed to resolve variables: %v", err)
		r.logActionFailed(f, action, msg)
		return actionErrorf(KindInput, action, "%s", msg)
	}
	return r.runOnce(ctx, f, a, conditional)
}

// runOnce is a single gated attempt of an already resolved action.
func (r *Runtime) runOnce(ctx context.Context, f frame, a *types.Action, conditional bool) error {
	log := logging.WithFields(map[string]interface{}{"action": a.Name, "log_dir": f.logDir})

	met, err := r.conditionsMet(ctx, f, a)
	if err != nil {
		r.Metrics.ActionFinished(metrics.OutcomeFailed)
		return err
	}
	if !met {
		log.Debug("action skipped", nil)
		r.Console.Log(fmt.Sprintf("%s   %s   Action (%s) \"%s\"", f.indent, util.MarkSkipped, a.Name, a.Desc))
		r.Metrics.ActionFinished(metrics.OutcomeSkipped)
		return nil
	}

	log.Debug("action started", map[string]interface{}{"conditional": conditional})
	res, err := r.execute(ctx, f, a, conditional)
	if res != nil && len(res.Warnings) > 0 {
		r.Console.LogFuncWarnings(f.indent, res.Warnings)
	}
	if err == nil {
		log.Debug("action succeeded", nil)
		r.actionSuccessMsg(f, a)
		r.Metrics.ActionFinished(metrics.OutcomeSuccess)
		return nil
	}
	log.Debug("action failed", map[string]interface{}{"error": err.Error()})
	return r.handleFailure(ctx, f, a, conditional, err)
}

// conditionsMet runs each condition as a conditional action. A validator
// failure means the gate is closed; any other failure is fatal.
func (r *Runtime) conditionsMet(ctx context.Context, f frame, a *types.Action) (bool, error) {
	for _, ref := range a.Conditions {
		cond := ref.Inline
		if cond == nil {
			cond = r.helperAction(ref.Name)
			if cond == nil {
				err := actionErrorf(KindInput, a, "Condition action %q does not exist.", ref.Name)
				r.logActionFailed(f, a, err.Message)
				return false, err
			}
		}
		if err := r.runAction(ctx, f, cond, true); err != nil {
			if isValidatorFailure(err) {
				return false, nil
			}
			r.logActionFailed(f, a, err.Error())
			return false, err
		}
	}
	return true, nil
}

// execute covers running, logging, validating and extracting.
func (r *Runtime) execute(ctx context.Context, f frame, a *types.Action, conditional bool) (*types.RunResult, error) {
	if a.Action == nil || strings.TrimSpace(a.Action.Type) == "" {
		return nil, actionErrorf(KindInput, a, "You must specify an action type: %s.", typeNames())
	}
	if strings.TrimSpace(a.Action.Run) == "" {
		return nil, actionErrorf(KindInput, a, `You must specify a value for the action's "run".`)
	}
	t, ok := actions.ParseType(a.Action.Type)
	if !ok {
		return nil, actionErrorf(KindInput, a, "Unknown action type %q. Specify one of %s.", a.Action.Type, typeNames())
	}

	r.mergeArgs(a)
	if a.Args != nil {
		r.logFile(f, a.Name+".action.args.txt", a.Args, false)
	}

	start := time.Now()
	res, err := r.Executor.Execute(ctx, actions.Request{
		Type:   t,
		Run:    a.Action.Run,
		Args:   a.Args,
		Action: a,
		Config: r.Config,
	})
	r.Metrics.ObserveRun(string(t), time.Since(start))
	if res == nil {
		res = &types.RunResult{}
	}
	if err != nil {
		var inputErr *actions.InputError
		if errors.As(err, &inputErr) {
			return res, &ActionError{Kind: KindInput, Action: a.Name, Message: inputErr.Msg, Err: err}
		}
		return res, &ActionError{Kind: KindRun, Action: a.Name, Message: err.Error(), Err: err}
	}

	r.logFile(f, a.Name+".action.output.txt", res.Data, false)

	if err := r.validate(f, a, res, conditional); err != nil {
		return res, err
	}

	r.extract(f, a, res)
	r.logFile(f, a.Name+".action.extracted.txt", f.scope, false)
	return res, nil
}

// mergeArgs applies the named presets underneath the explicit args.
func (r *Runtime) mergeArgs(a *types.Action) {
	if len(a.MergeArgs) == 0 || len(r.Config.Args) == 0 {
		return
	}
	if a.Args == nil {
		a.Args = map[string]interface{}{}
	}
	for _, name := range a.MergeArgs {
		preset, ok := r.Config.Args[name]
		if !ok {
			continue
		}
		for k, v := range preset {
			if _, set := a.Args[k]; !set {
				a.Args[k] = v
			}
		}
	}
}

func (r *Runtime) validate(f frame, a *types.Action, res *types.RunResult, conditional bool) error {
	if len(a.Validators) == 0 {
		return nil
	}
	if res.Data == nil {
		res.Warnings = append(res.Warnings, "Validators are present, but this action has no output.")
		return nil
	}

	doc, err := parser.ToDocument(a)
	if err != nil {
		return &ActionError{Kind: KindValidatorUnexpected, Action: a.Name, Message: err.Error(), Err: err}
	}
	for i := range a.Validators {
		v := &a.Validators[i]
		ok, err := r.Validator.Evaluate(v.Exp, res.Data, doc)
		if err != nil {
			return &ActionError{Kind: KindValidatorUnexpected, Action: a.Name, Message: err.Error(), Err: err}
		}
		if ok {
			continue
		}

		var file string
		if r.LogOutput || !conditional {
			file = r.logFile(f, a.Name+".action.failed.validator.txt", res.Data, true)
		}
		msg := "Action Failed by Validator:\n" + v.Exp
		if file != "" {
			msg += "\n\nAction Output:\n" + file
		}
		return &ActionError{Kind: KindValidator, Action: a.Name, Message: msg, Validator: v}
	}
	return nil
}

// extract copies values out of the result into the scope.
func (r *Runtime) extract(f frame, a *types.Action, res *types.RunResult) {
	if len(a.JSONExtractor) > 0 {
		switch res.Data.(type) {
		case map[string]interface{}, []interface{}:
			keys := make([]string, 0, len(a.JSONExtractor))
			for k := range a.JSONExtractor {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, key := range keys {
				path := a.JSONExtractor[key]
				v, err := jsonPathValue(path, res.Data)
				if err != nil {
					res.Warnings = append(res.Warnings, fmt.Sprintf("JSON extractor %q could not evaluate %q: %v", key, path, err))
					continue
				}
				f.scope[key] = v
			}
		default:
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("JSON extractor present, but result data is not an object (%q)", jsonKind(res.Data)))
		}
	}

	for _, ex := range a.OutputExtractor {
		if ex.Var != "" {
			f.scope[ex.Var] = res.Data
		}
	}
}

// jsonPathValue evaluates path against data. A path that can select more
// than one location binds its first match, or nil when nothing matched.
func jsonPathValue(path string, data interface{}) (interface{}, error) {
	v, err := jsonpath.Get(path, data)
	if err != nil || !multiMatchPath(path) {
		return v, err
	}
	if list, ok := v.([]interface{}); ok {
		if len(list) == 0 {
			return nil, nil
		}
		return list[0], nil
	}
	return v, nil
}

// multiMatchPath reports whether path uses a wildcard, recursive descent,
// filter, union or slice.
func multiMatchPath(path string) bool {
	return strings.Contains(path, "*") ||
		strings.Contains(path, "..") ||
		strings.Contains(path, "?(") ||
		strings.Contains(path, ",") ||
		strings.Contains(path, ":")
}

// handleFailure prints the outcome, runs the hooks and decides whether the
// failure reaches the caller.
func (r *Runtime) handleFailure(ctx context.Context, f frame, a *types.Action, conditional bool, err error) error {
	absorbable := isKind(err, KindRun) || isValidatorFailure(err)
	absorbed := a.SuccessOnFail && absorbable

	switch {
	case conditional && isValidatorFailure(err):
		r.actionSuccessMsg(f, a)
	case absorbed:
		r.actionSuccessMsg(f, a)
	default:
		r.actionFailedMsg(f, a)
	}

	if ae, ok := err.(*ActionError); ok && ae.Kind == KindValidator && ae.Validator != nil && len(ae.Validator.OnFailure) > 0 {
		if herr := r.runValidatorOnFailure(ctx, f, ae.Validator); herr != nil {
			r.logActionFailed(f, a, "\"validator.onFailure\" exception:\n "+herr.Error())
			r.Metrics.ActionFinished(metrics.OutcomeFailed)
			return herr
		}
	}

	if isKind(err, KindRun) && a.OnError != "" {
		if herr := r.runOnError(ctx, f, a.OnError); herr != nil {
			r.logActionFailed(f, a, "\"onError\" exception:\n"+herr.Error())
			r.Metrics.ActionFinished(metrics.OutcomeFailed)
			return herr
		}
	}

	if !conditional {
		r.logActionFailed(f, a, err.Error())
	}

	if absorbed {
		r.Metrics.ActionFinished(metrics.OutcomeAbsorbed)
		return nil
	}
	r.Metrics.ActionFinished(metrics.OutcomeFailed)
	return err
}

// runValidatorOnFailure runs the validator's onFailure task list with the
// action's scope as the starting scope of each task.
func (r *Runtime) runValidatorOnFailure(ctx context.Context, f frame, v *types.Validator) error {
	tasks, err := r.namedTasks(v.OnFailure)
	if err != nil {
		return err
	}
	return r.runTaskList(ctx, f.nested(onErrorPrefix), tasks)
}

// runOnError runs the action's onError task sharing the action's scope.
func (r *Runtime) runOnError(ctx context.Context, f frame, name string) error {
	t, err := r.locateTask(name)
	if err != nil {
		return err
	}
	return r.runTask(ctx, f.nested(onErrorPrefix), name, t)
}

func (r *Runtime) actionSuccessMsg(f frame, a *types.Action) {
	r.Console.Log(fmt.Sprintf("%s   %s   Action (%s) \"%s\"", f.indent, util.MarkSuccess, a.Name, a.Desc))
	if a.OnSuccessMsg != "" {
		r.Console.LogFuncInfo(f.indent, strings.Split(a.OnSuccessMsg, "\n"))
	}
}

func (r *Runtime) actionFailedMsg(f frame, a *types.Action) {
	r.Console.Log(fmt.Sprintf("%s   %s   Action (%s) \"%s\"", f.indent, util.MarkFailed, a.Name, a.Desc))
	if a.OnErrorMsg != "" {
		r.Console.LogFuncErrors(f.indent, strings.Split(a.OnErrorMsg, "\n"))
	}
}

// logActionFailed prints the failure header with a preview of what was run.
func (r *Runtime) logActionFailed(f frame, a *types.Action, msg string) {
	run := "undefined"
	if a.Action != nil && a.Action.Run != "" {
		run = a.Action.Run
	}
	r.Console.Error("")
	r.Console.ErrorHeader(fmt.Sprintf("Action %q (run: %q desc: %q) Failed", a.Name, util.Truncate(run, 18), a.Desc))
	r.Console.LogMultiLineError(f.indent+"   ", msg)
}

func typeNames() string {
	names := make([]string, 0, len(actions.Types()))
	for _, t := range actions.Types() {
		names = append(names, fmt.Sprintf("%q", t))
	}
	return strings.Join(names, ", ")
}

func jsonKind(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int64, int32, uint, uint64:
		return "number"
	}
	return fmt.Sprintf("%T", v)
}
