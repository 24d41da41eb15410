// tokengen выпускает access-токен для локальной отладки ws и HTTP.
//
//	CONFIG_PATH=./config/config.yaml go run ./cmd/tokengen -user alice
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cwrk-planet/chat-service/config"
	"github.com/cwrk-planet/chat-service/internal/security"
)

func main() {
	userID := flag.String("user", "", "user id to put into the token (required)")
	ttl := flag.Duration("ttl", 0, "token lifetime; defaults to auth.accessTTL")
	flag.Parse()

	if *userID == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	keys, err := security.LoadKeys(security.KeyConfig{
		Alg:            cfg.Auth.Alg,
		Secret:         cfg.Auth.Secret,
		PrivateKeyPath: cfg.Auth.PrivateKeyPath,
		PublicKeyPath:  cfg.Auth.PublicKeyPath,
	})
	if err != nil {
		log.Fatalf("load keys: %v", err)
	}

	lifetime := cfg.Auth.AccessTTL
	if *ttl > 0 {
		lifetime = *ttl
	}
	signer := security.NewJWTSigner(keys, security.Options{
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	}, lifetime)

	token, err := signer.SignAccessToken(*userID, time.Now())
	if err != nil {
		log.Fatalf("sign: %v", err)
	}
	fmt.Println(token)
}
