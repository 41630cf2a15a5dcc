package cli

import (
	"context"
	"fmt"
	"strings"
)

func (a *App) getStatus() string {
	parts := []string{string(a.currentMode())}
	if st := a.session.Status(); !st.LoggedIn {
		parts = append(parts, "signed out")
	} else if st.Subject != "" {
		parts = append([]string{st.Subject}, parts...)
	}
	if n, err := a.queue.PendingCount(context.Background()); err == nil && n > 0 {
		parts = append(parts, fmt.Sprintf("%d pending", n))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Root unlocks the saved session, starts the connectivity watcher and runs
// the REPL until the user exits.
func (a *App) Root(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to snaptrack CLI (type 'help' for commands)")

	if err := a.unlock(ctx); err != nil {
		fmt.Fprintln(a.out, describeError(err))
	}

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.getStatus, a.reader)
}
