package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type credentials struct {
	email         string
	passwordStdin bool
	fullName      string
}

func newAuthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Log in, register or log out",
	}
	cmd.AddCommand(newLoginCmd(a))
	cmd.AddCommand(newRegisterCmd(a))
	cmd.AddCommand(newLogoutCmd(a))
	cmd.AddCommand(newAuthStatusCmd(a))
	return cmd
}

func addCredentialFlags(cmd *cobra.Command, c *credentials) {
	cmd.Flags().StringVar(&c.email, "email", "", "account email")
	cmd.Flags().BoolVar(&c.passwordStdin, "password-stdin", false, "read the password from the first line of stdin")
}

// readPassword returns the first line of r without its line ending.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("no password on stdin")
	}
	return line, nil
}

// resolveCredentials takes what the flags provide and prompts for the rest.
func resolveCredentials(ctx context.Context, cmd *cobra.Command, c credentials, withName bool) (email, password, fullName string, err error) {
	email, fullName = c.email, c.fullName
	if c.passwordStdin {
		if password, err = readPassword(cmd.InOrStdin()); err != nil {
			return "", "", "", err
		}
	}
	if email != "" && password != "" {
		return email, password, fullName, nil
	}
	if !canPrompt() {
		return "", "", "", errNeedsTerminal
	}
	var name *string
	if withName {
		name = &fullName
	}
	if err := promptCredentials(ctx, cmd, &email, &password, name); err != nil {
		return "", "", "", err
	}
	return email, password, fullName, nil
}

func newLoginCmd(a *app) *cobra.Command {
	var c credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := newCommandContext(cmd.Context(), "auth login")
			return cc.run(func(ctx context.Context) error {
				email, password, _, err := resolveCredentials(ctx, cmd, c, false)
				if err != nil {
					return err
				}
				if err := a.auth.Login(ctx, email, password); err != nil {
					return err //nolint:wrapcheck // AuthError carries the user-facing message
				}
				fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Logged in as "+strings.TrimSpace(email)))
				return nil
			})
		},
	}
	addCredentialFlags(cmd, &c)
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var c credentials
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long:  "Create an account. Registering does not log you in; run 'voyagepal auth login' afterwards.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := newCommandContext(cmd.Context(), "auth register")
			return cc.run(func(ctx context.Context) error {
				email, password, fullName, err := resolveCredentials(ctx, cmd, c, true)
				if err != nil {
					return err
				}
				msg, err := a.auth.Register(ctx, email, password, fullName)
				if err != nil {
					return err //nolint:wrapcheck // AuthError carries the user-facing message
				}
				fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(msg))
				fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("Run 'voyagepal auth login' to start planning."))
				return nil
			})
		},
	}
	addCredentialFlags(cmd, &c)
	cmd.Flags().StringVar(&c.fullName, "name", "", "full name")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := newCommandContext(cmd.Context(), "auth logout")
			return cc.run(func(ctx context.Context) error {
				if err := a.auth.Logout(ctx); err != nil {
					return err //nolint:wrapcheck // already wrapped by the manager
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
				return nil
			})
		},
	}
}

type authStatus struct {
	LoggedIn  bool       `json:"logged_in" yaml:"logged_in"`
	Subject   string     `json:"subject,omitempty" yaml:"subject,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	Expired   bool       `json:"expired,omitempty" yaml:"expired,omitempty"`
	APIURL    string     `json:"api_url" yaml:"api_url"`
}

func newAuthStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a session is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st := authStatus{LoggedIn: a.auth.Session().IsAuthenticated(), APIURL: a.client.BaseURL()}
			if id, ok := a.auth.Identity(); ok {
				st.Subject = id.Subject
				if !id.ExpiresAt.IsZero() {
					exp := id.ExpiresAt
					st.ExpiresAt = &exp
					st.Expired = id.Expired(time.Now())
				}
			}
			newCommandContext(cmd.Context(), "auth status").logInvoked(slog.Bool("logged_in", st.LoggedIn))

			return printer{w: cmd.OutOrStdout(), format: a.output}.emit(st, func(b *strings.Builder) {
				if !st.LoggedIn {
					b.WriteString("Not logged in.\n")
					return
				}
				line := "Logged in"
				if st.Subject != "" {
					line += " as " + st.Subject
				}
				b.WriteString(okStyle.Render(line) + "\n")
				if st.ExpiresAt != nil {
					exp := "Session expires " + st.ExpiresAt.Local().Format(time.RFC1123)
					if st.Expired {
						exp = warnStyle.Render("Session expired " + st.ExpiresAt.Local().Format(time.RFC1123) + "; log in again")
					}
					b.WriteString(exp + "\n")
				}
				field(b, "Service", st.APIURL)
			})
		},
	}
}
