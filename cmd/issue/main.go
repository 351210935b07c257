// issue creates a gateway session for one backend through the same Issuer the HTTP API uses and
// prints {"authToken","sessionId"} to stdout. Configuration comes from the environment like the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dcv-session-gateway/internal/app"
	"dcv-session-gateway/internal/config"
	"dcv-session-gateway/internal/logger"
	"dcv-session-gateway/internal/session/service"
)

type output struct {
	AuthToken string `json:"authToken"`
	SessionID string `json:"sessionId"`
}

func main() {
	backendID := flag.String("backend", "", "Backend (instance) id to issue a session for")
	flag.Parse()
	if *backendID == "" {
		fmt.Fprintln(os.Stderr, "usage: issue -backend <id>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.SessionStore == config.StoreMemory {
		fmt.Fprintln(os.Stderr, "SESSION_STORE=memory: a session issued by this process is not visible to the server")
		os.Exit(1)
	}
	// Logs go to stderr so stdout carries only the JSON result.
	log := logger.NewWithOutput(cfg.LogLevel, cfg.Env, zapcore.AddSync(os.Stderr))

	ctx := context.Background()
	if err := run(ctx, cfg, log, *backendID); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, backendID string) error {
	deps, err := app.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("dependencies: %w", err)
	}
	defer func() { _ = deps.Close() }()

	issuer := service.NewIssuer(deps.Store, deps.Directory, deps.Eligibility, deps.Codec, cfg.Lifetime(), service.Observers{Logger: log})
	res, err := issuer.Issue(ctx, backendID)
	if err != nil {
		log.Debug("issue failed", zap.Error(err))
		return fmt.Errorf("issue: %s", service.Message(err))
	}
	return json.NewEncoder(os.Stdout).Encode(output{AuthToken: res.Token, SessionID: res.SessionID})
}
