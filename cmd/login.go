// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"seedfast/querygate/internal/config"
	"seedfast/querygate/internal/httperrors"
	"seedfast/querygate/internal/keychain"
	"seedfast/querygate/internal/llm"
	"seedfast/querygate/internal/terminal"

	"github.com/spf13/cobra"
)

var (
	loginProvider string
	loginVerify   bool
)

// loginCmd stores a language-model API key in the OS keychain.
var loginCmd = &cobra.Command{
	Use:     "login",
	Aliases: []string{"auth"},
	Short:   "Store the language-model API key in the OS keychain",
	Long: `The login command prompts for the API key of the configured language-model
provider (anthropic or gemini) and stores it in the OS keychain. Keys given in
ANTHROPIC_API_KEY or GEMINI_API_KEY take precedence over the stored key.

With --provider the provider also becomes the default in the config file.
With --verify (the default) a one-word test prompt is sent before the key is saved.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		provider := loginProvider
		if provider == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			provider = cfg.LLM.Provider
		}
		if _, ok := apiKeyEnv[provider]; !ok {
			return fmt.Errorf("unknown provider %q (use anthropic or gemini)", provider)
		}

		key, err := terminal.ReadSecret(fmt.Sprintf("Enter %s API key: ", provider))
		if err != nil {
			return err
		}
		if key == "" {
			return errors.New("API key is required")
		}

		if loginVerify {
			stop := startInlineSpinner(os.Stdout, "Verifying key", spinnerFrames, 120*time.Millisecond)
			err := checkAPIKey(cmd.Context(), provider, key, verifyAPIKey)
			stop()
			if err != nil {
				return err
			}
		}

		km, err := keychain.GetManager()
		if err != nil {
			fmt.Println("❌ Secure storage is not available on this system.")
			fmt.Printf("   Set %s instead.\n", apiKeyEnv[provider][0])
			return err
		}
		if err := km.SaveAPIKey(provider, key); err != nil {
			return err
		}
		fmt.Printf("✅ %s API key saved to the OS keychain\n", provider)

		if loginProvider != "" {
			if err := updateConfig(func(c *config.Config) { c.LLM.Provider = provider }); err != nil {
				fmt.Printf("⚠️  Could not record %s as the default provider: %v\n", provider, err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVar(&loginProvider, "provider", "", "Provider: anthropic or gemini (default from config)")
	loginCmd.Flags().BoolVar(&loginVerify, "verify", true, "Send a test prompt before saving the key")
}

// checkAPIKey runs verify and explains a failure on stdout.
func checkAPIKey(ctx context.Context, provider, key string, verify func(context.Context, string, string) error) error {
	if err := verify(ctx, provider, key); err != nil {
		return httperrors.FormatNetworkError(err, "the "+provider+" API", "verifying the key")
	}
	return nil
}

// verifyAPIKey sends a minimal prompt with key.
func verifyAPIKey(ctx context.Context, provider, key string) error {
	var p llm.Provider
	switch provider {
	case "anthropic":
		p = llm.NewAnthropicProvider(key, "", 16)
	case "gemini":
		g, err := llm.NewGeminiProvider(ctx, key, "", 16)
		if err != nil {
			return err
		}
		p = g
	}
	_, err := llm.NewClient(p, 30*time.Second, nil).Complete(ctx, llm.Prompt{
		Task:        "verify",
		Instruction: "Reply with the single word OK.",
	})
	return err
}
