// Package main provides the entry point for the sentinel-admin CLI tool.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/perimetra/sentinel/pkg/utils"
)

var rootCmd = &cobra.Command{
	Use:   "sentinel-admin",
	Short: "Admin CLI for the Sentinel security monitoring service",
	Long: `sentinel-admin performs operator tasks for the Sentinel service,
such as minting admin tokens for the key-management API and generating
configuration secrets.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin JWT for the /api/v1/admin routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, _ := cmd.Flags().GetString("secret")
			if secret == "" {
				secret = os.Getenv("SENTINEL_ADMIN_AUTH_JWT_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("a signing secret is required (--secret or SENTINEL_ADMIN_AUTH_JWT_SECRET)")
			}
			subject, _ := cmd.Flags().GetString("subject")
			issuer, _ := cmd.Flags().GetString("issuer")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			now := time.Now()
			claims := jwt.MapClaims{
				"sub": subject,
				"iat": now.Unix(),
				"exp": now.Add(ttl).Unix(),
			}
			if issuer != "" {
				claims["iss"] = issuer
			}

			signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Println(signed)
			return nil
		},
	}
	tokenCmd.Flags().String("secret", "", "HS256 signing secret (falls back to SENTINEL_ADMIN_AUTH_JWT_SECRET)")
	tokenCmd.Flags().String("subject", "admin", "Subject claim for the token")
	tokenCmd.Flags().String("issuer", "", "Issuer claim, must match admin_auth.issuer when set")
	tokenCmd.Flags().Duration("ttl", time.Hour, "Token lifetime")

	secretCmd := &cobra.Command{
		Use:   "secret",
		Short: "Generate a random secret for signing config values",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(utils.NewSecret())
		},
	}

	rootCmd.AddCommand(tokenCmd, secretCmd)
}
