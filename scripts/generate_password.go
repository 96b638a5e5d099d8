// Command generate_password prints a bcrypt hash for seeding admin rows by hand.
//
//	go run scripts/generate_password.go -cost 12 <password>
package main

import (
	"flag"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/pkg/auth"
)

func main() {
	cost := flag.Int("cost", 12, "bcrypt cost")
	flag.Parse()

	if flag.NArg() != 1 {
		logrus.Fatal("Usage: go run scripts/generate_password.go [-cost n] <password>")
	}
	password := flag.Arg(0)

	cfg := &config.Config{Security: config.SecurityConfig{BcryptCost: *cost}}
	pm := auth.NewPasswordManager(cfg)

	hash, err := pm.HashPassword(password)
	if err != nil {
		logrus.Fatalf("Error generating hash: %v", err)
	}

	if err := pm.VerifyPassword(password, hash); err != nil {
		logrus.Fatalf("Hash verification failed: %v", err)
	}

	fmt.Println(hash)
}
