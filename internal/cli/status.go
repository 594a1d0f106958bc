package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/utafrali/sixty60/internal/auth"
	apperrors "github.com/utafrali/sixty60/pkg/errors"
	"github.com/utafrali/sixty60/pkg/health"
	"github.com/utafrali/sixty60/pkg/logger"
)

type statusView struct {
	LoggedIn       bool       `json:"loggedIn"`
	Phone          string     `json:"phone,omitempty"`
	Complete       bool       `json:"complete"`
	Missing        []string   `json:"missing,omitempty"`
	PendingOTP     bool       `json:"pendingOtp"`
	StoreCount     int        `json:"storeCount"`
	SavedAt        *time.Time `json:"savedAt,omitempty"`
	TokenExpiresAt *time.Time `json:"tokenExpiresAt,omitempty"`
	TokenExpired   bool       `json:"tokenExpired"`
	Location       string     `json:"location"`

	Dependencies *health.Report `json:"dependencies,omitempty"`
}

func newStatusCmd(newRuntime Factory) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the saved session without contacting the platform",
		Long: "Show the saved session without contacting the platform.\n" +
			"With --check, also check the session backend and Kafka brokers.",
		Args: cobra.NoArgs,
		RunE: withRuntime(newRuntime, func(ctx context.Context, cmd *cobra.Command, rt *Runtime) error {
			state, found, err := rt.Sessions.LoadState(ctx)
			if err != nil {
				return err
			}

			view := statusView{Location: rt.StateLocation}
			if found {
				view.LoggedIn = state.UserAccessToken != ""
				view.Phone = logger.Masked("phone", state.PhoneE164).Value.String()
				view.Complete = state.IsComplete()
				view.Missing = state.MissingFields()
				view.PendingOTP = state.UserAccessToken == "" && state.Pending().Ready()
				view.StoreCount = len(state.StoreIDs)
				if !state.SavedAt.IsZero() {
					savedAt := state.SavedAt
					view.SavedAt = &savedAt
				}
				if exp, ok := auth.TokenExpiry(state.UserAccessToken); ok {
					view.TokenExpiresAt = &exp
					view.TokenExpired = !rt.now().Before(exp)
				}
			}

			if check {
				if rt.Health == nil {
					return apperrors.ServiceUnavailable("dependency checks are not available")
				}
				report := rt.Health.Check(ctx)
				view.Dependencies = &report
			}
			return writeJSON(cmd.OutOrStdout(), view)
		}),
	}

	cmd.Flags().BoolVar(&check, "check", false, "check the session backend and event brokers")
	return cmd
}
