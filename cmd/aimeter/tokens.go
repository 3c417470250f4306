package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/glowdesk/aimeter/adapters/hasher"
	"github.com/glowdesk/aimeter/adapters/idgen"
	"github.com/glowdesk/aimeter/adapters/random"
	"github.com/glowdesk/aimeter/adapters/sqlite"
	"github.com/glowdesk/aimeter/ports"
	"github.com/spf13/cobra"
)

const (
	tokenPrefixLen = 8
	tokenSecretLen = 32
)

var tokensCmd = &cobra.Command{
	Use:   "tokens",
	Short: "Manage API tokens",
	Long: `Manage aimeter API tokens.

Tokens bound to a user act for that user only. Tokens without a user
are service tokens: they may act for any user named via the
X-Acting-User header.

Examples:
  aimeter tokens list
  aimeter tokens create --user=user_123 --name="mobile app"
  aimeter tokens create --name="backend service"
  aimeter tokens revoke tok_abc123`,
}

var tokensListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API tokens",
	RunE:  runTokensList,
}

var tokensCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new API token",
	RunE:  runTokensCreate,
}

var tokensRevokeCmd = &cobra.Command{
	Use:   "revoke <token-id>",
	Short: "Revoke an API token",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokensRevoke,
}

var (
	tokenUserID string
	tokenName   string
)

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.AddCommand(tokensListCmd)
	tokensCmd.AddCommand(tokensCreateCmd)
	tokensCmd.AddCommand(tokensRevokeCmd)

	tokensCreateCmd.Flags().StringVar(&tokenUserID, "user", "", "bind the token to a user (empty = service token)")
	tokensCreateCmd.Flags().StringVar(&tokenName, "name", "", "token name (optional)")
}

func runTokensList(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	tokenStore := sqlite.NewTokenStore(db)
	tokens, err := tokenStore.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list tokens: %w", err)
	}

	if len(tokens) == 0 {
		fmt.Println("No API tokens found.")
		fmt.Println()
		fmt.Println("Create one with: aimeter tokens create --user=<user-id>")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPREFIX\tUSER\tNAME\tSTATUS\tCREATED")
	fmt.Fprintln(w, "--\t------\t----\t----\t------\t-------")

	for _, t := range tokens {
		status := "active"
		if t.RevokedAt != nil {
			status = "revoked"
		}
		user := t.UserID
		if user == "" {
			user = "(service)"
		}
		created := t.CreatedAt.Format("2006-01-02")
		fmt.Fprintf(w, "%s\t%s...\t%s\t%s\t%s\t%s\n", t.ID, t.Prefix, user, t.Name, status, created)
	}

	w.Flush()
	return nil
}

func runTokensCreate(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	rng := random.Crypto{}
	prefix, err := rng.String(tokenPrefixLen)
	if err != nil {
		return fmt.Errorf("failed to generate prefix: %w", err)
	}
	secret, err := rng.String(tokenSecretLen)
	if err != nil {
		return fmt.Errorf("failed to generate secret: %w", err)
	}

	hash, err := hasher.NewBcrypt(0).Hash(secret)
	if err != nil {
		return fmt.Errorf("failed to hash secret: %w", err)
	}

	token := ports.Token{
		ID:         idgen.UUID{}.New(),
		Prefix:     prefix,
		SecretHash: hash,
		UserID:     tokenUserID,
		Name:       tokenName,
		CreatedAt:  time.Now().UTC(),
	}

	tokenStore := sqlite.NewTokenStore(db)
	if err := tokenStore.Create(context.Background(), token); err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}

	kind := "service token"
	if tokenUserID != "" {
		kind = fmt.Sprintf("token for user %s", tokenUserID)
	}
	fmt.Printf("Created %s\n", kind)
	fmt.Println()
	fmt.Println("API token (save this, shown once):")
	fmt.Printf("  am_%s_%s\n", prefix, secret)
	fmt.Println()
	fmt.Printf("Token ID: %s\n", token.ID)

	return nil
}

func runTokensRevoke(cmd *cobra.Command, args []string) error {
	tokenID := args[0]

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	tokenStore := sqlite.NewTokenStore(db)
	if err := tokenStore.Revoke(context.Background(), tokenID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	fmt.Printf("Revoked token: %s\n", tokenID)
	return nil
}
