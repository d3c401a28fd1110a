package sandbox

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/dop251/goja"

	"github.com/pthm-cable/robosim/systems"
	"github.com/pthm-cable/robosim/vision"
)

// Tracer receives records passed to the script's trace() function.
type Tracer interface {
	Trace(robot systems.RobotID, tick int64, record map[string]any)
}

// ScriptOptions configures a script runtime.
type ScriptOptions struct {
	Robot       systems.RobotID
	HardTimeout time.Duration // 0 lets a call run to completion
	Tracer      Tracer
}

// Program is compiled strategy source, shareable across robots.
type Program struct {
	name string
	prog *goja.Program
}

var (
	exportDefault = regexp.MustCompile(`(?m)^(\s*)export\s+default\s+`)
	exportDecl    = regexp.MustCompile(`(?m)^(\s*)export\s+`)
)

// maxCallDepth bounds script recursion. Deeper calls fail with a stack
// overflow error instead of growing the runtime without limit.
const maxCallDepth = 1024

// prelude provides CommonJS-style export objects.
const prelude = `var module = { exports: {} }; var exports = module.exports;`

// Compile parses strategy source. A leading ES export is accepted and
// rewritten to a plain declaration.
func Compile(name, src string) (*Program, error) {
	src = exportDefault.ReplaceAllString(src, "${1}module.exports.strategy = ")
	src = exportDecl.ReplaceAllString(src, "${1}")
	prog, err := goja.Compile(name, src, false)
	if err != nil {
		return nil, fmt.Errorf("compiling %s: %w", name, err)
	}
	return &Program{name: name, prog: prog}, nil
}

// Name returns the source name given to Compile.
func (p *Program) Name() string {
	return p.name
}

// Script is a Controller backed by its own JavaScript runtime. Module-level
// variables live in that runtime, so two robots running the same Program never
// share state.
type Script struct {
	name    string
	vm      *goja.Runtime
	fn      goja.Callable
	timeout time.Duration
	tracer  Tracer
	robot   systems.RobotID
	tick    int64
}

// Instantiate creates a fresh runtime, evaluates the program and resolves its
// strategy function.
func (p *Program) Instantiate(opts ScriptOptions) (*Script, error) {
	vm := goja.New()
	vm.SetMaxCallStackSize(maxCallDepth)
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	s := &Script{name: p.name, vm: vm, timeout: opts.HardTimeout, tracer: opts.Tracer, robot: opts.Robot}

	// No wall clock inside strategies.
	if err := vm.GlobalObject().Delete("Date"); err != nil {
		return nil, fmt.Errorf("%s: restricting globals: %w", p.name, err)
	}
	if err := vm.Set("trace", s.trace); err != nil {
		return nil, fmt.Errorf("%s: installing trace: %w", p.name, err)
	}
	if _, err := vm.RunString(prelude); err != nil {
		return nil, fmt.Errorf("%s: prelude: %w", p.name, err)
	}

	err := s.guard(func() error {
		_, err := vm.RunProgram(p.prog)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: evaluating: %w", p.name, err)
	}

	fn, ok := s.resolve()
	if !ok {
		return nil, fmt.Errorf("%s: %w", p.name, ErrNoStrategy)
	}
	s.fn = fn
	return s, nil
}

// resolve finds the strategy function: module.exports.strategy, a function
// assigned to module.exports, exports.strategy, then a global strategy.
func (s *Script) resolve() (goja.Callable, bool) {
	module := s.vm.Get("module")
	if obj, ok := module.(*goja.Object); ok {
		exp := obj.Get("exports")
		if fn, ok := goja.AssertFunction(exp); ok {
			return fn, true
		}
		if eo, ok := exp.(*goja.Object); ok {
			if fn, ok := goja.AssertFunction(eo.Get("strategy")); ok {
				return fn, true
			}
		}
	}
	if eo, ok := s.vm.Get("exports").(*goja.Object); ok {
		if fn, ok := goja.AssertFunction(eo.Get("strategy")); ok {
			return fn, true
		}
	}
	// Covers function declarations and top-level let/const bindings.
	v, err := s.vm.RunString(`typeof strategy === "function" ? strategy : undefined`)
	if err != nil {
		return nil, false
	}
	return goja.AssertFunction(v)
}

// Step calls the strategy with a fresh copy of ws and converts its result.
func (s *Script) Step(ws vision.WorldState, cell *Cell) (systems.Action, error) {
	s.tick = cell.Tick
	var out goja.Value
	err := s.guard(func() error {
		var err error
		out, err = s.fn(goja.Undefined(), s.vm.ToValue(ws))
		return err
	})
	if err != nil {
		return systems.Neutral(), fmt.Errorf("%s: %w", s.name, err)
	}
	a, err := actionFromValue(out)
	if err != nil {
		return systems.Neutral(), fmt.Errorf("%s: %w", s.name, err)
	}
	return a, nil
}

// guard runs f, interrupting the runtime once the hard timeout elapses.
func (s *Script) guard(f func() error) error {
	if s.timeout <= 0 {
		return f()
	}
	timer := time.AfterFunc(s.timeout, func() {
		s.vm.Interrupt(fmt.Sprintf("exceeded %v", s.timeout))
	})
	err := f()
	timer.Stop()
	s.vm.ClearInterrupt()

	var ie *goja.InterruptedError
	if errors.As(err, &ie) {
		return fmt.Errorf("interrupted: %v", ie.Value())
	}
	return err
}

func (s *Script) trace(call goja.FunctionCall) goja.Value {
	if s.tracer == nil {
		return goja.Undefined()
	}
	rec := map[string]any{}
	if obj, ok := call.Argument(0).(*goja.Object); ok {
		if m, ok := obj.Export().(map[string]any); ok {
			rec = m
		}
	}
	s.tracer.Trace(s.robot, s.tick, rec)
	return goja.Undefined()
}

// actionFromValue accepts {motors: [m1, m2, m3, m4], kick} or
// {m1, m2, m3, m4, kick}. Missing fields are zero or false.
func actionFromValue(v goja.Value) (systems.Action, error) {
	obj, ok := v.(*goja.Object)
	if !ok || obj.ClassName() == "Array" || obj.ClassName() == "Function" {
		return systems.Neutral(), ErrBadAction
	}

	var a systems.Action
	if motors, ok := obj.Get("motors").(*goja.Object); ok {
		for i := range a.Motors {
			a.Motors[i] = number(motors.Get(strconv.Itoa(i)))
		}
	} else {
		for i := range a.Motors {
			a.Motors[i] = number(obj.Get("m" + strconv.Itoa(i+1)))
		}
	}
	if k := obj.Get("kick"); present(k) {
		a.Kick = k.ToBoolean()
	}
	return a.Clamped(), nil
}

func present(v goja.Value) bool {
	return v != nil && !goja.IsUndefined(v) && !goja.IsNull(v)
}

func number(v goja.Value) float64 {
	if !present(v) {
		return 0
	}
	f := v.ToFloat()
	if math.IsNaN(f) {
		return 0
	}
	return f
}
