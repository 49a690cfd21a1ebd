package commands

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/zrma/go-voiceprint/capture"
	"github.com/zrma/go-voiceprint/voiceauth"
)

func newEnrollCmd(flags *rootFlags) *cobra.Command {
	var wavPath string
	cmd := &cobra.Command{
		Use:   "enroll <user>",
		Short: "Enroll a user's voice from a WAV recording",
		Long: `Compute a voice signature from the recording and store it for the user.
An existing enrollment for the same user is replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if wavPath == "" {
				return errors.New("recording is required, use --wav flag")
			}
			return withApp(cmd, flags, func(a *app) error {
				return runEnroll(cmd, a, args[0], capture.FileSource{Path: wavPath})
			})
		},
	}
	cmd.Flags().StringVarP(&wavPath, "wav", "w", "", "WAV recording of the user's voice")
	return cmd
}

func runEnroll(cmd *cobra.Command, a *app, userID string, src capture.Source) error {
	if err := a.engine.EnrollFrom(cmd.Context(), userID, src); err != nil {
		return errors.Wrapf(err, "enroll %q", userID)
	}
	printEnrolled(cmd.OutOrStdout(), userID)
	return nil
}

func newAuthenticateCmd(flags *rootFlags) *cobra.Command {
	var (
		wavPath   string
		threshold float64
	)
	cmd := &cobra.Command{
		Use:     "authenticate <user>",
		Aliases: []string{"auth", "verify"},
		Short:   "Check a WAV recording against a user's enrolled voice",
		Long: `Compare the recording's voice signature with the user's stored one.
The recording is ACCEPTED when the cosine similarity is at least the threshold.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if wavPath == "" {
				return errors.New("recording is required, use --wav flag")
			}
			return withApp(cmd, flags, func(a *app) error {
				t := a.engine.Config().Threshold
				if cmd.Flags().Changed("threshold") {
					t = threshold
				}
				return runAuthenticate(cmd, a, args[0], capture.FileSource{Path: wavPath}, t)
			})
		},
	}
	cmd.Flags().StringVarP(&wavPath, "wav", "w", "", "WAV recording to verify")
	cmd.Flags().Float64VarP(&threshold, "threshold", "t", voiceauth.DefaultThreshold, "minimum similarity to accept, overrides engine.threshold")
	return cmd
}

func runAuthenticate(cmd *cobra.Command, a *app, userID string, src capture.Source, threshold float64) error {
	res, err := a.engine.AuthenticateFromWithThreshold(cmd.Context(), userID, src, threshold)
	return reportAuthentication(cmd, userID, res, err)
}

// reportAuthentication은 미등록 사용자를 오류가 아닌 안내 메시지로 처리한다.
func reportAuthentication(cmd *cobra.Command, userID string, res voiceauth.Result, err error) error {
	if errors.Is(err, voiceauth.ErrNotEnrolled) {
		printNotEnrolled(cmd.OutOrStdout(), userID)
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "authenticate %q", userID)
	}
	printResult(cmd.OutOrStdout(), res)
	return nil
}
