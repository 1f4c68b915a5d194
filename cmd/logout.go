// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"

	"seedfast/querygate/internal/keychain"

	"github.com/spf13/cobra"
)

var logoutKeepDB bool

// logoutCmd represents the logout command for clearing stored secrets.
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove all saved API keys and the database connection",
	Long: `The logout command removes every secret querygate stored in the OS keychain:

- Language-model API keys (anthropic and gemini)
- The database connection string, unless --keep-db is given

Environment variables and the config file are left untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		km, err := keychain.GetManager()
		if err != nil {
			return err
		}
		providers := make([]string, 0, len(apiKeyEnv))
		for p := range apiKeyEnv {
			providers = append(providers, p)
		}
		if logoutKeepDB {
			for _, p := range providers {
				if err := km.ClearAPIKey(p); err != nil {
					return err
				}
			}
		} else if err := km.ClearAll(providers...); err != nil {
			return err
		}

		fmt.Println("✅ All saved credentials have been removed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
	logoutCmd.Flags().BoolVar(&logoutKeepDB, "keep-db", false, "Keep the saved database connection")
}
