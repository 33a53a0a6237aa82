package cmd

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/Aman-CERP/amanlaunch/internal/source"
)

// printInvoker writes the action instead of performing it, so scripts can
// pipe the target into their own opener.
func printInvoker(w io.Writer) source.Invoker {
	return source.InvokerFunc(func(_ context.Context, a source.Action) error {
		_, err := fmt.Fprintf(w, "%s\t%s\n", a.Kind, a.Target)
		return err
	})
}

// execInvoker performs actions on the host: URLs through the desktop opener,
// app command lines as detached processes, text through the clipboard.
func execInvoker() source.Invoker {
	return source.InvokerFunc(func(ctx context.Context, a source.Action) error {
		switch a.Kind {
		case source.ActionOpenURL:
			return startDetached(ctx, openerCommand(), a.Target)
		case source.ActionLaunchApp:
			fields := strings.Fields(a.Target)
			if len(fields) == 0 {
				return fmt.Errorf("empty command line")
			}
			return startDetached(ctx, fields[0], fields[1:]...)
		case source.ActionCopyText:
			return clipboard.WriteAll(a.Target)
		case source.ActionNone, "":
			return nil
		default:
			return fmt.Errorf("unsupported action kind %q", a.Kind)
		}
	})
}

func openerCommand() string {
	switch runtime.GOOS {
	case "darwin":
		return "open"
	case "windows":
		return "explorer"
	default:
		return "xdg-open"
	}
}

// startDetached starts name without waiting for it, so the launched program
// outlives amanlaunch.
func startDetached(ctx context.Context, name string, args ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := exec.Command(name, args...)
	if err := c.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}
	return c.Process.Release()
}
