package sql

import (
	"context"
	"encoding/json"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/augentic/yetti/host"
	"github.com/augentic/yetti/link"
	"github.com/augentic/yetti/wasi/abi"
)

// Ctx is the per-request view the sql host needs from the store
// context.
type Ctx struct {
	DB *DB
}

// CtxKey is the typed store-context slot for this capability.
var CtxKey = host.NewKey[*Ctx](Name)

// SQL is the relational capability host.
type SQL struct {
	db *DB
}

// NewHost creates the sql host over a connected handle.
func NewHost(db *DB) *SQL {
	return &SQL{db: db}
}

// Name returns the capability name.
func (h *SQL) Name() string { return Name }

// Data returns the slot accessor handed to Link.
func (h *SQL) Data() host.DataFunc { return host.Data(CtxKey) }

// Fill returns the store-context filler for this host.
func (h *SQL) Fill() host.Filler {
	return func(sc *host.StoreContext) {
		host.Put(sc, CtxKey, &Ctx{DB: h.db})
	}
}

// Link wires query/exec into the shared linker. Statement arguments
// cross the boundary as a JSON array; query results come back as a JSON
// array of objects keyed by column.
func (h *SQL) Link(l *link.Linker, data host.DataFunc) error {
	ctxOf := func(ctx context.Context) *Ctx {
		sc, _ := link.StoreFrom(ctx).(*host.StoreContext)
		if sc == nil {
			return nil
		}
		c, _ := data(sc).(*Ctx)
		return c
	}

	readArgs := func(mod api.Module, ptr, length uint32) ([]any, bool) {
		if length == 0 {
			return nil, true
		}
		raw, ok := abi.ReadBytes(mod, ptr, length)
		if !ok {
			return nil, false
		}
		var args []any
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, false
		}
		return args, true
	}

	// query(sql_ptr, sql_len, args_ptr, args_len, buf_ptr, buf_cap)
	//   -> written | needed
	queryParams, queryResults := abi.Sig(6)
	if err := l.DefineFunc(Name, link.Func{
		Name:    "query",
		Params:  queryParams,
		Results: queryResults,
		Call: api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			c := ctxOf(ctx)
			stmt, okS := abi.ReadString(mod, abi.I32(stack, 0), abi.I32(stack, 1))
			args, okA := readArgs(mod, abi.I32(stack, 2), abi.I32(stack, 3))
			if c == nil || !okS || !okA {
				abi.Return(stack, abi.StatusError)
				return
			}
			rows, err := c.DB.Query(ctx, stmt, args...)
			if err != nil {
				Logger().Debug("query failed", zap.Error(err))
				abi.Return(stack, abi.StatusError)
				return
			}
			if rows == nil {
				rows = []Row{}
			}
			encoded, err := json.Marshal(rows)
			if err != nil {
				abi.Return(stack, abi.StatusError)
				return
			}
			abi.Return(stack, abi.WriteResult(mod, abi.I32(stack, 4), abi.I32(stack, 5), encoded))
		}),
	}); err != nil {
		return err
	}

	// exec(sql_ptr, sql_len, args_ptr, args_len) -> rows affected
	execParams, execResults := abi.Sig(4)
	return l.DefineFunc(Name, link.Func{
		Name:    "exec",
		Params:  execParams,
		Results: execResults,
		Call: api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			c := ctxOf(ctx)
			stmt, okS := abi.ReadString(mod, abi.I32(stack, 0), abi.I32(stack, 1))
			args, okA := readArgs(mod, abi.I32(stack, 2), abi.I32(stack, 3))
			if c == nil || !okS || !okA {
				abi.Return(stack, abi.StatusError)
				return
			}
			affected, err := c.DB.Exec(ctx, stmt, args...)
			if err != nil {
				Logger().Debug("exec failed", zap.Error(err))
				abi.Return(stack, abi.StatusError)
				return
			}
			abi.Return(stack, affected)
		}),
	})
}
