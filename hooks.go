package accounts

import "context"

// commitHooks collects callbacks that must not become externally observable
// until the enclosing transaction durably commits. The repository manager
// plants one on the context for each RunInTx scope and fires it only when
// the transaction function and the commit both succeed; an aborted
// transaction drops the hooks on the floor.
type commitHooks struct {
	fns []func(ctx context.Context)
}

func (h *commitHooks) add(fn func(ctx context.Context)) {
	h.fns = append(h.fns, fn)
}

func (h *commitHooks) run(ctx context.Context) {
	for _, fn := range h.fns {
		fn(ctx)
	}
	h.fns = nil
}

type commitHooksKey struct{}

func withCommitHooks(ctx context.Context, hooks *commitHooks) context.Context {
	return context.WithValue(ctx, commitHooksKey{}, hooks)
}

func commitHooksFrom(ctx context.Context) (*commitHooks, bool) {
	hooks, ok := ctx.Value(commitHooksKey{}).(*commitHooks)
	return hooks, ok
}

// OnCommit schedules fn to run after the current transaction commits.
// Outside of a transaction scope fn runs immediately, which keeps callers
// honest in both paths: side effects read the same either way, they just
// wait for durability when there is something to wait for.
func OnCommit(ctx context.Context, fn func(ctx context.Context)) {
	if fn == nil {
		return
	}

	if hooks, ok := commitHooksFrom(ctx); ok {
		hooks.add(fn)
		return
	}

	fn(ctx)
}
