package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/classrag/internal/access"
	"github.com/ziadkadry99/classrag/internal/auth"
	"github.com/ziadkadry99/classrag/internal/catalog"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage local user accounts",
}

var usersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a user account",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")
		roleStr, _ := cmd.Flags().GetString("role")
		password, _ := cmd.Flags().GetString("password")
		classes, _ := cmd.Flags().GetStringSlice("class")

		role := access.Role(roleStr)
		if !role.Valid() {
			return fmt.Errorf("invalid role %q: must be student, teacher or admin", roleStr)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, err := openDatabase(cfg)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		hash, err := auth.HashPassword(password)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}

		user, err := auth.NewStore(database).CreateUser(ctx, auth.User{
			Email:        email,
			Name:         name,
			Role:         role,
			PasswordHash: hash,
		})
		if err != nil {
			return err
		}

		cat := catalog.NewStore(database)
		for _, class := range classes {
			if err := cat.AddMembership(ctx, user.ID, class); err != nil {
				return err
			}
		}

		fmt.Printf("Created %s user %s (%s)\n", user.Role, user.Email, user.ID)
		return nil
	},
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List user accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, err := openDatabase(cfg)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		users, err := auth.NewStore(database).ListUsers(context.Background())
		if err != nil {
			return err
		}
		if len(users) == 0 {
			fmt.Println("No users found.")
			return nil
		}
		for _, u := range users {
			fmt.Printf("%-36s  %-8s  %s\n", u.ID, u.Role, u.Email)
		}
		return nil
	},
}

func init() {
	usersAddCmd.Flags().String("email", "", "email address (required)")
	usersAddCmd.Flags().String("name", "", "display name")
	usersAddCmd.Flags().String("role", string(access.RoleStudent), "role: student, teacher, admin")
	usersAddCmd.Flags().String("password", "", "password (required)")
	usersAddCmd.Flags().StringSlice("class", nil, "class group membership (repeatable)")
	usersAddCmd.MarkFlagRequired("email")
	usersAddCmd.MarkFlagRequired("password")

	usersCmd.AddCommand(usersAddCmd)
	usersCmd.AddCommand(usersListCmd)
	rootCmd.AddCommand(usersCmd)
}
