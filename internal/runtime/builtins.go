// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/crescent-rt/crescent/pkg/location"
	"github.com/crescent-rt/crescent/pkg/resolve"

	"mvdan.cc/sh/v3/interp"
)

const (
	requireUsage = "usage: require <ref> | require -l <path>"
	provideUsage = "usage: provide <value>..."
	scriptUsage  = "usage: script [parent | child <name>]... [name | path | requirepath]"
)

// errNoLoader means the engine executed require before Bind.
var errNoLoader = errors.New("require is not available: engine has no loader")

// builtins returns the exec handler middleware that implements require,
// provide and script. Other commands fall through to next.
func (e *Engine) builtins(state *moduleState) func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
		return func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return next(ctx, args)
			}
			switch args[0] {
			case "require":
				return e.require(ctx, args[1:])
			case "provide":
				return provideBuiltin(ctx, state, args[1:])
			case "script":
				return e.script(ctx, args[1:])
			default:
				return next(ctx, args)
			}
		}
	}
}

// require loads a module and prints its value. Usage errors are a normal
// non-zero status; load failures halt the calling module.
func (e *Engine) require(ctx context.Context, args []string) error {
	hc := interp.HandlerCtx(ctx)

	var ref resolve.Ref
	switch {
	case len(args) == 1:
		parsed, err := resolve.ParseRef(args[0])
		if err != nil {
			fmt.Fprintf(hc.Stderr, "require: %v\n", err)
			return interp.NewExitStatus(2)
		}
		ref = parsed
	case len(args) == 2 && args[0] == "-l":
		if args[1] == "" {
			fmt.Fprintln(hc.Stderr, requireUsage)
			return interp.NewExitStatus(2)
		}
		ref = resolve.LocationRef(args[1])
	default:
		fmt.Fprintln(hc.Stderr, requireUsage)
		return interp.NewExitStatus(2)
	}

	if e.loader == nil {
		return errNoLoader
	}

	value, err := e.loader.Require(ctx, ref)
	if err != nil {
		caller, _ := location.Current(ctx)
		e.logger.Debug("require failed", "ref", ref.String(), "caller", caller, "error", err)
		return &RequireError{Ref: ref.String(), Caller: caller, Err: err}
	}
	if value != nil {
		fmt.Fprintln(hc.Stdout, value)
	}
	return nil
}

func provideBuiltin(ctx context.Context, state *moduleState, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(interp.HandlerCtx(ctx).Stderr, provideUsage)
		return interp.NewExitStatus(2)
	}
	state.provide(strings.Join(args, " "))
	return nil
}

// script walks the location tree starting at the executing module and
// prints the final location.
func (e *Engine) script(ctx context.Context, args []string) error {
	hc := interp.HandlerCtx(ctx)
	fail := func(msg string) error {
		fmt.Fprintf(hc.Stderr, "script: %s\n", msg)
		return interp.NewExitStatus(1)
	}

	h := e.tree.Here()
	render := "path"
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "parent":
			parent, ok, err := h.Parent(ctx)
			if err != nil {
				return fail(err.Error())
			}
			if !ok {
				return fail("already at the root")
			}
			h = parent
		case "child":
			if i+1 >= len(args) || args[i+1] == "" {
				fmt.Fprintln(hc.Stderr, scriptUsage)
				return interp.NewExitStatus(2)
			}
			i++
			child, err := h.Child(ctx, args[i])
			if err != nil {
				return fail(err.Error())
			}
			h = child
		case "name", "path", "requirepath":
			if i != len(args)-1 {
				fmt.Fprintln(hc.Stderr, scriptUsage)
				return interp.NewExitStatus(2)
			}
			render = args[i]
		default:
			fmt.Fprintln(hc.Stderr, scriptUsage)
			return interp.NewExitStatus(2)
		}
	}

	var (
		out string
		err error
	)
	switch render {
	case "name":
		out, err = h.Name(ctx)
	case "requirepath":
		out, err = h.RequirePath(ctx)
	default:
		out, err = h.Path(ctx)
	}
	if err != nil {
		return fail(err.Error())
	}
	fmt.Fprintln(hc.Stdout, out)
	return nil
}
