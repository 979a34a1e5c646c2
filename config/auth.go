package config

import (
	"log/slog"
	"os"
)

// JwtKey signs and verifies session tokens. It must survive restarts, so it
// always comes from the environment in real deployments.
var JwtKey []byte

func InitAuth() {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		slog.Warn("JWT_SECRET is not set, using an insecure development key")
		secret = "agentspace-dev-secret"
	}
	JwtKey = []byte(secret)
}
