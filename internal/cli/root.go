package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	apperrors "github.com/utafrali/sixty60/pkg/errors"
	"github.com/utafrali/sixty60/pkg/logger"
)

// NewRootCommand builds the sixty60 command tree. newRuntime is called once
// per invoked subcommand.
func NewRootCommand(newRuntime Factory) *cobra.Command {
	root := &cobra.Command{
		Use:   "sixty60",
		Short: "Command line client for the Checkers Sixty60 grocery platform",
		Example: `  sixty60 request-otp --phone 0821234567
  sixty60 verify-otp --phone 0821234567 --otp 1234
  sixty60 orders --compact
  sixty60 search --query milk --compact
  sixty60 add-to-basket --product-id 5d3af63cf434cf8420737e3e --qty 1`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newLoginCmd(newRuntime),
		newRequestOTPCmd(newRuntime),
		newVerifyOTPCmd(newRuntime),
		newOrdersCmd(newRuntime),
		newSearchCmd(newRuntime),
		newAddToBasketCmd(newRuntime),
		newStatusCmd(newRuntime),
	)
	return root
}

// runFunc is a command body with its runtime already built.
type runFunc func(ctx context.Context, cmd *cobra.Command, rt *Runtime) error

// withRuntime builds the runtime, tags the context with a correlation id and
// applies the command deadline around fn.
func withRuntime(newRuntime Factory, fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) (err error) {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx = logger.WithCorrelationID(ctx, uuid.NewString())

		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		if rt.Close != nil {
			defer func() {
				if cerr := rt.Close(context.WithoutCancel(ctx)); cerr != nil {
					rt.Logger.Warn("release resources", slog.String("error", cerr.Error()))
				}
			}()
		}

		if rt.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, rt.Timeout)
			defer cancel()
		}

		logger.WithContext(ctx, rt.Logger).Debug("command started", slog.String("command", cmd.Name()))
		return fn(ctx, cmd, rt)
	}
}

// Execute runs root and reports a failure as "code: message" on stderr.
// It returns the process exit code.
func Execute(ctx context.Context, root *cobra.Command, args []string) int {
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), FormatError(err))
		return 1
	}
	return 0
}

// FormatError renders err with its error code first.
func FormatError(err error) string {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr) && error(appErr) == err:
		return err.Error()
	case errors.As(err, &appErr):
		return appErr.Code + ": " + err.Error()
	case errors.Is(err, apperrors.ErrTransport):
		return "TRANSPORT_ERROR: " + err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "TIMEOUT: " + err.Error()
	default:
		return "ERROR: " + err.Error()
	}
}
