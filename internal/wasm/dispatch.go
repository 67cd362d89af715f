package wasm

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/woxQAQ/pdfnano-wasm/api/abi"
)

// ErrNullPointer is wrapped by a CallError when a guarded pointer-returning
// export returns the null address.
var ErrNullPointer = errors.New("guest returned a null pointer")

// Dispatcher invokes guest exports by name and interprets their return
// values. It does no locking: callers serialize access to the guest.
type Dispatcher struct {
	guest  Guest
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher for guest.
func NewDispatcher(guest Guest, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		guest:  guest,
		logger: logger.With(zap.String("component", "wasm-dispatch")),
	}
}

// Status invokes a status-returning export. A result of -1 fails with a
// CallError naming the export; any other value is returned. Exports that
// declare no result report status 0.
func (d *Dispatcher) Status(ctx context.Context, name string, args ...any) (int32, error) {
	fn, results, err := d.invoke(ctx, name, args)
	if err != nil {
		return 0, err
	}

	status, ok := liftInt(fn.ResultTypes(), results)
	if !ok {
		return 0, nil
	}
	if status == int64(abi.StatusFailure) {
		d.logger.Warn("Guest call reported failure",
			zap.String("export", name),
			zap.Int64("status", status),
		)
		return 0, &CallError{Export: name, Code: abi.StatusFailure}
	}
	return int32(status), nil
}

// Pointer invokes a pointer-returning export. The null address fails with a
// CallError wrapping ErrNullPointer.
func (d *Dispatcher) Pointer(ctx context.Context, name string, args ...any) (uint32, error) {
	ptr, err := d.Unguarded(ctx, name, args...)
	if err != nil {
		return 0, err
	}
	if ptr == abi.NullPointer {
		d.logger.Warn("Guest call returned null pointer", zap.String("export", name))
		return 0, &CallError{Export: name, Err: ErrNullPointer}
	}
	return ptr, nil
}

// Unguarded invokes an export and returns its first result as an address
// without checking any sentinel. Only traps and signature mismatches fail.
func (d *Dispatcher) Unguarded(ctx context.Context, name string, args ...any) (uint32, error) {
	_, results, err := d.invoke(ctx, name, args)
	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}
	return uint32(results[0]), nil
}

// Void invokes an export whose result, if any, carries no meaning.
func (d *Dispatcher) Void(ctx context.Context, name string, args ...any) error {
	_, _, err := d.invoke(ctx, name, args)
	return err
}

func (d *Dispatcher) invoke(ctx context.Context, name string, args []any) (Function, []uint64, error) {
	fn := d.guest.Function(name)
	if fn == nil {
		return nil, nil, &FunctionNotFoundError{ModuleName: d.guest.Name(), FunctionName: name}
	}

	stack, err := lowerArgs(name, fn.ParamTypes(), args)
	if err != nil {
		return nil, nil, err
	}

	results, err := fn.Call(ctx, stack...)
	if err != nil {
		d.logger.Warn("Guest call trapped",
			zap.String("export", name),
			zap.Error(err),
		)
		return nil, nil, &CallError{Export: name, Err: err}
	}

	if ce := d.logger.Check(zap.DebugLevel, "Guest call"); ce != nil {
		ce.Write(
			zap.String("export", name),
			zap.Int("arity", len(stack)),
			zap.Uint64s("results", results),
		)
	}

	return fn, results, nil
}
