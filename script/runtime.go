// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package script

import (
	"context"
	"errors"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
	"go.uber.org/zap"
)

// CAPTURE is the entry point called after a script loads, if defined.
const CAPTURE = "capture"

// Caller is the synchronous link a script drives. *client.Client
// implements it.
type Caller interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, p []byte) error
	ReadRegisters(ctx context.Context, addrs []uint16) ([]uint16, error)
	WriteRegisters(ctx context.Context, addrs []uint16, datas []uint16) error
}

// Runtime executes scripts.
type Runtime struct {
	Caller Caller
	Logger *zap.Logger // If nil, zap.L() is used.
}

// New creates a runtime driving caller.
func New(caller Caller) *Runtime {
	return &Runtime{Caller: caller}
}

func (rt *Runtime) logger() *zap.Logger {
	if rt.Logger != nil {
		return rt.Logger
	}
	return zap.L()
}

// Exec runs src. If it defines capture(), that is called with arg (None when
// arg is empty) and its result is returned; otherwise the result is None.
func (rt *Runtime) Exec(ctx context.Context, name string, src any, arg string) (result starlark.Value, err error) {
	if rt.Caller == nil {
		err = ErrCallerMissing
		return
	}

	log := rt.logger().With(zap.String("script", name))

	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			log.Info(msg)
		},
	}
	thread.SetLocal("context", ctx)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-stop:
		}
	}()

	opts := syntax.FileOptions{}
	globals, err := starlark.ExecFileOptions(&opts, thread, name, src, rt.builtins())
	if err != nil {
		err = rt.cause(ctx, err)
		return
	}

	result = starlark.None

	capture, ok := globals[CAPTURE].(starlark.Callable)
	if !ok {
		return
	}

	var args starlark.Tuple
	if fn, ok := capture.(*starlark.Function); !ok || fn.NumParams() > 0 {
		var value starlark.Value = starlark.None
		if arg != "" {
			value = starlark.String(arg)
		}
		args = starlark.Tuple{value}
	}

	log.Debug("capture", zap.String("arg", arg))
	result, err = starlark.Call(thread, capture, args, nil)
	if err != nil {
		err = rt.cause(ctx, err)
		return
	}

	return
}

// cause prefers the context's error when the thread was cancelled.
func (rt *Runtime) cause(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errors.Join(ctx.Err(), err)
	}
	return err
}

func contextOf(thread *starlark.Thread) context.Context {
	if ctx, ok := thread.Local("context").(context.Context); ok {
		return ctx
	}
	return context.Background()
}
