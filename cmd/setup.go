package cmd

import (
	"context"
	"fmt"

	"rewind/auth"
)

// SetupCmd initializes the database and seeds the default admin account
type SetupCmd struct {
	AdminPassword string `help:"Password for the default admin user" default:"admin"`
}

// Run executes the setup command
func (s *SetupCmd) Run(cli *CLI) error {
	store, err := cli.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	service := auth.NewService(store)
	user, err := service.Bootstrap(context.Background(), s.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	fmt.Printf("Database ready at %s\n", cli.DBPath)
	fmt.Printf("Admin user: %s (id %d)\n", user.Username, user.ID)
	return nil
}
