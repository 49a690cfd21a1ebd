package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zrma/go-voiceprint/capture"
	"github.com/zrma/go-voiceprint/voiceauth"
)

func newInteractiveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "interactive",
		Aliases: []string{"i"},
		Short:   "Enroll and authenticate from a prompt",
		Long: `Repeatedly ask for an action, a username and a WAV recording.
Enter 'q' or end input to quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(a *app) error {
				return runInteractive(cmd, a)
			})
		},
	}
}

type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

// ask는 프롬프트를 출력하고 한 줄을 읽는다. 입력이 끝나면 false다.
func (p prompter) ask(prompt string) (string, bool) {
	fmt.Fprint(p.out, prompt)
	if !p.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.in.Text()), true
}

func runInteractive(cmd *cobra.Command, a *app) error {
	p := prompter{in: bufio.NewScanner(cmd.InOrStdin()), out: cmd.OutOrStdout()}
	fmt.Fprintln(p.out, TitleStyle.Render("Voice authentication"))

	for {
		fmt.Fprintln(p.out, "1. Enroll new user")
		fmt.Fprintln(p.out, "2. Authenticate user")
		choice, ok := p.ask("Choose option (q to quit): ")
		if !ok || strings.EqualFold(choice, "q") {
			return nil
		}
		if choice != "1" && choice != "2" {
			fmt.Fprintln(p.out, WarnStyle.Render("Invalid choice."))
			continue
		}

		userID, ok := p.ask("Enter username: ")
		if !ok {
			return nil
		}
		if userID == "" {
			fmt.Fprintln(p.out, WarnStyle.Render("Username is required."))
			continue
		}

		if choice == "2" {
			if _, err := a.engine.Signature(cmd.Context(), userID); err != nil {
				if err := reportAuthentication(cmd, userID, voiceauth.Result{}, err); err != nil {
					fmt.Fprintln(p.out, ErrorStyle.Render("Error:"), err)
				}
				continue
			}
		}

		path, ok := p.ask("Path to WAV recording: ")
		if !ok {
			return nil
		}
		src := capture.FileSource{Path: path}

		var err error
		if choice == "1" {
			err = runEnroll(cmd, a, userID, src)
		} else {
			err = runAuthenticate(cmd, a, userID, src, a.engine.Config().Threshold)
		}
		// 한 번의 실패로 세션을 끝내지 않는다.
		if err != nil {
			fmt.Fprintln(p.out, ErrorStyle.Render("Error:"), err)
		}
	}
}
