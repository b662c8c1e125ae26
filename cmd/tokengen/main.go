// Package main mints and inspects access tokens for local testing. It signs
// with JWT_SECRET and JWT_ISSUER from the environment, which default to the
// development values. The authentication middleware re-reads the subject, so
// minted tokens only work for users that exist in the target store.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	jwttoken "warden/internal/jwt_token"
	"warden/internal/platform/config"
	id "warden/pkg/domain"
)

type tokenOutput struct {
	Token     string         `json:"token"`
	Type      string         `json:"type"`
	ExpiresIn string         `json:"expires_in"`
	Claims    map[string]any `json:"claims,omitempty"`
}

func main() {
	accessCmd := flag.NewFlagSet("access", flag.ExitOnError)
	accessUserID := accessCmd.String("user-id", "", "User ID (UUID). Generated if empty.")
	accessAdmin := accessCmd.Bool("admin", false, "Set the isAdmin claim")
	accessTTL := accessCmd.Duration("ttl", 0, "Token time-to-live. Defaults to JWT_EXPIRATION.")
	accessJSON := accessCmd.Bool("json", false, "Output as JSON")

	decodeCmd := flag.NewFlagSet("decode", flag.ExitOnError)
	decodeJSON := decodeCmd.Bool("json", false, "Output as JSON")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fail(err)
	}

	switch os.Args[1] {
	case "access":
		accessCmd.Parse(os.Args[2:]) //nolint:errcheck // ExitOnError
		ttl := *accessTTL
		if ttl <= 0 {
			ttl = cfg.JWT.Expiration
		}
		generateAccessToken(cfg, *accessUserID, *accessAdmin, ttl, *accessJSON)
	case "decode":
		decodeCmd.Parse(os.Args[2:]) //nolint:errcheck // ExitOnError
		if decodeCmd.NArg() != 1 {
			fail(fmt.Errorf("decode expects exactly one token argument"))
		}
		decodeToken(cfg, decodeCmd.Arg(0), *decodeJSON)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - mint access tokens for local testing

Usage:
  tokengen access [-user-id UUID] [-admin] [-ttl 1h] [-json]
  tokengen decode [-json] TOKEN

Environment:
  JWT_SECRET   signing key (default: development key)
  JWT_ISSUER   iss claim (default: warden)

Example:
  TOKEN=$(tokengen access -user-id 6f1c... -admin)
  curl -H "Authorization: Bearer $TOKEN" localhost:8080/v1/auth/users`)
}

func generateAccessToken(cfg config.Server, rawUserID string, admin bool, ttl time.Duration, jsonOutput bool) {
	userID := id.NewUserID()
	if rawUserID != "" {
		parsed, err := id.ParseUserID(rawUserID)
		if err != nil {
			fail(fmt.Errorf("invalid user-id: %w", err))
		}
		userID = parsed
	}

	svc := jwttoken.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, ttl)
	token, err := svc.IssueAccessToken(context.Background(), userID, admin)
	if err != nil {
		fail(err)
	}

	if jsonOutput {
		printJSON(tokenOutput{
			Token:     token,
			Type:      "Bearer",
			ExpiresIn: ttl.String(),
			Claims:    map[string]any{"user_id": userID.String(), "is_admin": admin, "iss": cfg.JWT.Issuer},
		})
		return
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "User ID:    %s\nAdmin:      %t\nExpires In: %s\n", userID, admin, ttl)
}

func decodeToken(cfg config.Server, token string, jsonOutput bool) {
	svc := jwttoken.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiration)
	claims, err := svc.ValidateToken(token)
	if err != nil {
		fail(err)
	}
	if jsonOutput {
		printJSON(claims)
		return
	}
	fmt.Printf("User ID:    %s\n", claims.UserID)
	fmt.Printf("Admin:      %t\n", claims.IsAdmin)
	fmt.Printf("Issuer:     %s\n", claims.Issuer)
	if claims.ExpiresAt != nil {
		fmt.Printf("Expires At: %s\n", claims.ExpiresAt.Time.Format(time.RFC3339))
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
