package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"rewind/auth"
)

// UsersCmd groups user management subcommands
type UsersCmd struct {
	Add UserAddCmd `cmd:"add" help:"Create a user account"`
	Key UserKeyCmd `cmd:"key" help:"Generate or revoke a user's API key"`
}

// UserAddCmd creates a user account
type UserAddCmd struct {
	Username string `arg:"" help:"Username (3-30 chars, letters/numbers/underscores)"`
	Password string `help:"Password for the new account" required:""`
	Admin    bool   `help:"Grant admin privileges"`
}

// Run executes the user add command
func (u *UserAddCmd) Run(cli *CLI) error {
	store, err := cli.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	user, err := auth.NewService(store).Register(context.Background(), u.Username, u.Password, u.Admin)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tADMIN")
	fmt.Fprintf(w, "%d\t%s\t%v\n", user.ID, user.Username, user.IsAdmin)
	return w.Flush()
}

// UserKeyCmd manages a user's API key
type UserKeyCmd struct {
	UserID int64 `arg:"" help:"User ID"`
	Revoke bool  `help:"Revoke the API key instead of generating one"`
}

// Run executes the user key command
func (u *UserKeyCmd) Run(cli *CLI) error {
	store, err := cli.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	service := auth.NewService(store)
	if u.Revoke {
		if err := service.RevokeAPIKey(context.Background(), u.UserID); err != nil {
			return err
		}
		fmt.Println("API key revoked")
		return nil
	}

	key, err := service.GenerateAPIKey(context.Background(), u.UserID)
	if err != nil {
		return err
	}
	fmt.Println(key)
	return nil
}
