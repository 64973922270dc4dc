package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ameyrk/skystore"
	"github.com/ameyrk/skystore/config"
	"github.com/ameyrk/skystore/database"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an account",
	Long: `Create an account, prompting for the password interactively.

Examples:
  # Create a regular account
  skystore user add --email alice@example.com --username alice

  # Create a superuser
  skystore user add --email admin@example.com --username admin --superuser`,
	RunE: runUserAdd,
}

var (
	userAddEmail     string
	userAddUsername  string
	userAddSuperuser bool
)

func init() {
	userAddCmd.Flags().StringVar(&userAddEmail, "email", "", "account email (required)")
	userAddCmd.Flags().StringVar(&userAddUsername, "username", "", "account username (required)")
	userAddCmd.Flags().BoolVar(&userAddSuperuser, "superuser", false, "grant superuser access")
	_ = userAddCmd.MarkFlagRequired("email")
	_ = userAddCmd.MarkFlagRequired("username")

	userCmd.AddCommand(userAddCmd)
	rootCmd.AddCommand(userCmd)
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	password, err := promptPassword()
	if err != nil {
		return handlePromptError(err)
	}

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = db.Close() }()

	auth, err := skystore.NewAuthenticator(db.Users(), cfg.Auth.BcryptCost)
	if err != nil {
		return fmt.Errorf("create authenticator: %w", err)
	}

	user, err := auth.Register(ctx, userAddEmail, userAddUsername, password)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}

	if userAddSuperuser {
		user, err = db.Users().SetSuperuser(ctx, user.ID, true)
		if err != nil {
			return fmt.Errorf("grant superuser: %w", err)
		}
	}

	slog.Info("account created",
		"id", user.ID,
		"email", user.Email,
		"username", user.Username,
		"superuser", user.IsSuperuser,
	)
	return nil
}

func promptPassword() (string, error) {
	passwordPrompt := promptui.Prompt{
		Label: "Password",
		Mask:  '*',
		Validate: func(input string) error {
			if len(input) < skystore.MinPasswordLength {
				return fmt.Errorf("password must be at least %d characters", skystore.MinPasswordLength)
			}
			return nil
		},
	}
	password, err := passwordPrompt.Run()
	if err != nil {
		return "", err
	}

	confirmPrompt := promptui.Prompt{
		Label: "Confirm password",
		Mask:  '*',
		Validate: func(input string) error {
			if input != password {
				return errors.New("passwords do not match")
			}
			return nil
		},
	}
	if _, err := confirmPrompt.Run(); err != nil {
		return "", err
	}

	return password, nil
}

// handlePromptError handles promptui errors.
func handlePromptError(err error) error {
	if errors.Is(err, promptui.ErrInterrupt) {
		fmt.Println("Cancelled.")
		return nil
	}
	return err
}
