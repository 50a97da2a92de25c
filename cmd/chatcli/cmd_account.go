package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/chat-ai/internal/client"
	"golang.org/x/term"
)

var (
	flagUsername string
	flagEmail    string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account; a verification mail is sent",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, err := valueOrPrompt(flagUsername, "Username: ")
		if err != nil {
			return err
		}
		email, err := valueOrPrompt(flagEmail, "Email: ")
		if err != nil {
			return err
		}
		pw, err := readPassword("Password: ")
		if err != nil {
			return err
		}
		msg, err := client.New(apiURL).Register(cmd.Context(), username, email, pw)
		if err != nil {
			return err
		}
		fmt.Println(msg)
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <token>",
	Short: "Verify an email address with the token from the verification mail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client.New(apiURL).Verify(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("Email verified. You can now log in.")
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and remember the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, err := valueOrPrompt(flagEmail, "Email: ")
		if err != nil {
			return err
		}
		pw, err := readPassword("Password: ")
		if err != nil {
			return err
		}
		st := client.NewStore(client.New(apiURL))
		sess, err := st.Login(cmd.Context(), email, pw)
		if err != nil {
			return err
		}
		if err := saveSession(sessionPath, sess); err != nil {
			return err
		}
		fmt.Printf("Logged in as %s\n", userStyle.Render(sess.Username))
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := os.Remove(sessionPath); err != nil && !os.IsNotExist(err) {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}

func init() {
	registerCmd.Flags().StringVar(&flagUsername, "username", "", "display name")
	registerCmd.Flags().StringVar(&flagEmail, "email", "", "email address")
	loginCmd.Flags().StringVar(&flagEmail, "email", "", "email address")
}

var stdin = bufio.NewReader(os.Stdin)

func valueOrPrompt(v, prompt string) (string, error) {
	if v != "" {
		return v, nil
	}
	fmt.Print(prompt)
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return valueOrPrompt("", prompt)
	}
	fmt.Print(prompt)
	b, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
