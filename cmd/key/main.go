package main

import (
	"fmt"
	"os"
	"time"

	"bus-boarding/internal/cli"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

func main() {
	var (
		userID = pflag.String("user-id", "", "UUID of the user or device (subject); random when empty")
		email  = pflag.String("email", "", "Email claim")
		role   = pflag.String("role", "DEVICE", "Role: RIDER | DEVICE | ADMIN")
		secret = pflag.String("secret", os.Getenv("JWT_SECRET"), "JWT HMAC secret (HS256), defaults to $JWT_SECRET")
		ttl    = pflag.Duration("ttl", 24*time.Hour, "Token lifetime")
	)
	pflag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "usage: key --secret='<secret>' [--role=DEVICE] [--user-id=<uuid>] [--ttl=24h]")
		os.Exit(2)
	}
	if *userID == "" {
		*userID = uuid.NewString()
	}

	token, claims, err := cli.GenerateUserToken(*secret, *ttl, *userID, *email, *role)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	fmt.Println("TOKEN:")
	fmt.Println(token)
	fmt.Println("\nCLAIMS:")
	fmt.Printf("  sub:  %s\n", claims.Subject)
	fmt.Printf("  role: %s\n", claims.Role)
	fmt.Printf("  iat:  %s\n", claims.IssuedAt.Time.UTC().Format(time.RFC3339))
	fmt.Printf("  exp:  %s\n", claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
}
