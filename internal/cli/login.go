package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/utafrali/sixty60/internal/auth"
	"github.com/utafrali/sixty60/internal/domain"
	apperrors "github.com/utafrali/sixty60/pkg/errors"
	"github.com/utafrali/sixty60/pkg/logger"
	"github.com/utafrali/sixty60/pkg/validator"
)

type phoneInput struct {
	Phone string `validate:"required"`
}

type otpInput struct {
	Phone string `validate:"required"`
	OTP   string `validate:"required,numeric,min=4,max=8"`
}

type otpFlags struct {
	phone     string
	otp       string
	reference string
}

func (f *otpFlags) register(cmd *cobra.Command, withOTP bool) {
	cmd.Flags().StringVar(&f.phone, "phone", "", "mobile number, e.g. 0821234567")
	if withOTP {
		cmd.Flags().StringVar(&f.otp, "otp", "", "one-time PIN received by SMS")
		cmd.Flags().StringVar(&f.reference, "reference", "", "OTP reference, overrides the saved one")
	}
}

// validate checks the flags of the mode they select: none for an interactive
// login, the phone to request an OTP, phone and OTP to complete one.
func (f *otpFlags) validate() error {
	switch {
	case f.phone == "" && f.otp == "":
		return nil
	case f.otp == "":
		return validator.Validate(phoneInput{Phone: f.phone})
	default:
		return validator.Validate(otpInput{Phone: f.phone, OTP: f.otp})
	}
}

func newLoginCmd(newRuntime Factory) *cobra.Command {
	var flags otpFlags
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with phone number and OTP",
		Long: `Log in and save the session.

Without flags the command prompts for the phone number and OTP.
With --phone only it requests an OTP; with --phone and --otp it completes
a login started earlier.`,
		Args: cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			return flags.validate()
		},
		RunE: withRuntime(newRuntime, func(ctx context.Context, cmd *cobra.Command, rt *Runtime) error {
			switch {
			case flags.phone == "" && flags.otp == "":
				return interactiveLogin(ctx, cmd.OutOrStdout(), rt)
			case flags.otp == "":
				return startOTP(ctx, cmd.OutOrStdout(), rt, flags.phone)
			default:
				return completeOTP(ctx, cmd.OutOrStdout(), rt, flags)
			}
		}),
	}
	flags.register(cmd, true)
	return cmd
}

func newRequestOTPCmd(newRuntime Factory) *cobra.Command {
	var flags otpFlags
	cmd := &cobra.Command{
		Use:   "request-otp",
		Short: "Send an OTP to a phone number",
		Args:  cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			return validator.Validate(phoneInput{Phone: flags.phone})
		},
		RunE: withRuntime(newRuntime, func(ctx context.Context, cmd *cobra.Command, rt *Runtime) error {
			return startOTP(ctx, cmd.OutOrStdout(), rt, flags.phone)
		}),
	}
	flags.register(cmd, false)
	return cmd
}

func newVerifyOTPCmd(newRuntime Factory) *cobra.Command {
	var flags otpFlags
	cmd := &cobra.Command{
		Use:   "verify-otp",
		Short: "Complete a login with the OTP received by SMS",
		Args:  cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			return validator.Validate(otpInput{Phone: flags.phone, OTP: flags.otp})
		},
		RunE: withRuntime(newRuntime, func(ctx context.Context, cmd *cobra.Command, rt *Runtime) error {
			return completeOTP(ctx, cmd.OutOrStdout(), rt, flags)
		}),
	}
	flags.register(cmd, true)
	return cmd
}

// startOTP expects a validated phone.
func startOTP(ctx context.Context, out io.Writer, rt *Runtime, phone string) error {
	pending, err := rt.Auth.StartOTP(ctx, phone)
	if err != nil {
		return err
	}
	if err := rt.Sessions.SavePending(ctx, pending); err != nil {
		return err
	}

	fmt.Fprintf(out, "OTP sent to %s\n", pending.Phone)
	fmt.Fprintf(out, "Reference: %s\n", pending.Reference)
	return nil
}

// completeOTP finishes the login started by request-otp. Without saved
// pending state an explicit --reference runs the whole handshake instead.
// flags are validated by the command's PreRunE.
func completeOTP(ctx context.Context, out io.Writer, rt *Runtime, flags otpFlags) error {
	state, _, err := rt.Sessions.LoadState(ctx)
	if err != nil {
		return err
	}
	pending := state.Pending()
	if flags.reference != "" {
		pending.Reference = flags.reference
	}

	var result *auth.Result
	switch {
	case pending.Ready():
		result, err = rt.Auth.CompleteOTP(ctx, pending, flags.phone, flags.otp)
	case flags.reference != "":
		result, err = rt.Auth.Login(ctx, flags.phone, flags.reference, flags.otp)
	default:
		return apperrors.Unauthorized("missing pending auth context, run request-otp first (or pass --reference)")
	}
	if err != nil {
		return err
	}
	return finishLogin(ctx, out, rt, result)
}

func interactiveLogin(ctx context.Context, out io.Writer, rt *Runtime) error {
	if rt.Prompt == nil {
		return apperrors.InvalidInput("no terminal for an interactive login, pass --phone")
	}

	phone, err := rt.Prompt.Ask("Phone number (e.g. 0821234567): ")
	if err != nil {
		return err
	}
	if err := validator.Validate(phoneInput{Phone: phone}); err != nil {
		return err
	}

	pending, err := rt.Auth.StartOTP(ctx, phone)
	if err != nil {
		return err
	}
	if err := rt.Sessions.SavePending(ctx, pending); err != nil {
		return err
	}
	fmt.Fprintf(out, "OTP sent to %s\n", pending.Phone)

	code, err := rt.Prompt.AskSecret("Enter OTP: ")
	if err != nil {
		return err
	}
	if err := validator.Validate(otpInput{Phone: pending.Phone, OTP: code}); err != nil {
		return err
	}

	result, err := rt.Auth.CompleteOTP(ctx, pending, pending.Phone, code)
	if err != nil {
		return err
	}
	return finishLogin(ctx, out, rt, result)
}

func finishLogin(ctx context.Context, out io.Writer, rt *Runtime, result *auth.Result) error {
	state := result.State()
	if err := rt.Sessions.SaveState(ctx, state); err != nil {
		return err
	}
	announce(ctx, rt, result.Session)

	fmt.Fprintf(out, "Saved auth state to %s for %s\n", rt.StateLocation, state.PhoneE164)
	return nil
}

// announce publishes session.authenticated; a failure only costs the event.
func announce(ctx context.Context, rt *Runtime, session domain.Session) {
	if rt.Events == nil {
		return
	}
	if err := rt.Events.PublishSessionAuthenticated(ctx, session); err != nil {
		logger.WithContext(ctx, rt.Logger).Warn("failed to publish session.authenticated event",
			slog.String("error", err.Error()),
		)
	}
}
