// Command keygen prints the anon and service-role API keys for the JWT_SECRET
// in the environment (or .env). Put the anon key in PARTSHOP_ANON_KEY; keep
// the service key server side.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"partshop/internal/policy"
	"partshop/internal/services"
)

func main() {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("KEY_TTL", 0) // 0 issues keys that never expire
	v.AutomaticEnv()

	secret := v.GetString("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "keygen: JWT_SECRET is required")
		os.Exit(1)
	}

	keys := services.NewAuthService(nil, nil, nil, secret, 0, nil)
	for _, role := range []policy.Role{policy.RoleAnon, policy.RoleService} {
		key, err := keys.IssueRoleKey(role, v.GetDuration("KEY_TTL"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "keygen: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s=%s\n", role, key)
	}
}
