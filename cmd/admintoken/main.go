// Command admintoken prints a signed bearer token for the payment admin
// endpoints. The signing secret is read from JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pulseiq/payments/internal/auth"
)

func main() {
	subject := flag.String("subject", "", "operator identity recorded in the token (required)")
	ttl := flag.Duration("ttl", auth.DefaultAdminTokenExpiry, "token lifetime")
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "admintoken: -subject is required")
		flag.Usage()
		os.Exit(2)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "admintoken: JWT_SECRET is not set")
		os.Exit(1)
	}

	token, err := issue(secret, *subject, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "admintoken:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func issue(secret, subject string, ttl time.Duration) (string, error) {
	return auth.NewTokenService(secret, "").IssueAdminToken(subject, ttl)
}
