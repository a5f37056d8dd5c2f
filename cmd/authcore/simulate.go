package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/metrics/export/internaldefs"
	"github.com/MrEthical07/authcore/store/memory"
	"github.com/MrEthical07/authcore/store/postgres"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

type simulateOptions struct {
	Email       string
	Password    string
	NewPassword string
	Attempts    int
	Audit       bool
}

// NewSimulateCmd creates the simulate subcommand.
func NewSimulateCmd() *cobra.Command {
	opts := simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a login scenario against the engine",
		Long: `Provision an owner account, log in, hammer the login endpoint with a wrong
password from one client until it is throttled, then recover the account
through a password reset. Without --redis-addr an in-process miniredis is
used; without --database-url accounts are kept in memory.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return runSimulation(cmd.Context(), cfg, opts, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Email, "email", "owner@example.com", "account email")
	f.StringVar(&opts.Password, "password", "Correct-Horse-9-Battery", "initial password")
	f.StringVar(&opts.NewPassword, "new-password", "Brand-New-Pass-42", "password set through the reset")
	f.IntVar(&opts.Attempts, "attempts", 0, "wrong-password attempts; 0 means one past the rate limit")
	f.BoolVar(&opts.Audit, "audit", false, "stream audit events as JSON lines to stderr")
	return cmd
}

func runSimulation(ctx context.Context, cfg appConfig, opts simulateOptions, out io.Writer) error {
	logger := cfg.logger()

	if err := cfg.loadKeys(); err != nil {
		if cfg.Auth.Session.SigningMethod != "ed25519" {
			return err
		}
		pub, priv, gerr := ed25519.GenerateKey(rand.Reader)
		if gerr != nil {
			return oops.Code("KEYGEN_FAILED").Wrap(gerr)
		}
		cfg.Auth.Session.PrivateKey = priv
		cfg.Auth.Session.PublicKey = pub
		logger.Info("using an ephemeral signing key", "reason", err.Error())
	}
	cfg.Auth.Metrics.Enabled = true
	cfg.Auth.Audit.Enabled = opts.Audit

	rdb, cleanup, err := openRedis(cfg.Redis.Addr, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	builder := authcore.New().WithConfig(cfg.Auth).WithRedis(rdb).WithLogger(logger)
	if cfg.Database.URL != "" {
		store, err := postgres.Open(ctx, cfg.Database.URL, cfg.Auth)
		if err != nil {
			return err
		}
		defer store.Close()
		builder = store.Configure(builder)
	} else {
		builder = builder.WithAccountStore(memory.NewAccountStore())
	}
	if opts.Audit {
		builder = builder.WithAuditSink(authcore.NewJSONWriterSink(os.Stderr))
	}

	engine, err := builder.Build()
	if err != nil {
		return oops.Code("ENGINE_BUILD_FAILED").Wrap(err)
	}
	defer engine.Close()

	return simulate(ctx, engine, cfg.Auth, opts, out)
}

func openRedis(addr string, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		logger.Info("using redis", "addr", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, oops.Code("REDIS_START_FAILED").Wrap(err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	logger.Info("using miniredis", "addr", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func simulate(ctx context.Context, engine *authcore.Engine, cfg authcore.Config, opts simulateOptions, out io.Writer) error {
	attacker := authcore.ClientContext{IP: "203.0.113.7", UserAgent: "curl/8.5.0"}
	owner := authcore.ClientContext{
		IP:        "198.51.100.20",
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	}

	acct, err := engine.CreateAccount(ctx, authcore.CreateAccountRequest{
		Email:    opts.Email,
		Password: opts.Password,
		Name:     "Simulated Owner",
		Role:     authcore.RoleOwner,
	})
	if err != nil {
		return oops.Code("SIMULATION_FAILED").With("step", "create account").Wrap(err)
	}
	fmt.Fprintf(out, "created %s account %s (%s)\n", acct.Role, acct.Email, acct.ID)

	res, err := engine.Authenticate(ctx, opts.Email, opts.Password, owner)
	if err != nil {
		return oops.Code("SIMULATION_FAILED").With("step", "first login").Wrap(err)
	}
	fmt.Fprintf(out, "login ok: risk=%s action=%s device=%s expires=%s\n",
		res.Risk.Risk, res.Risk.Action, res.Risk.DeviceType, res.Session.ExpiresAt.Format("15:04:05"))

	if _, err := engine.ValidateSession(ctx, res.Session.Token); err != nil {
		return oops.Code("SIMULATION_FAILED").With("step", "validate session").Wrap(err)
	}

	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = cfg.RateLimit.Threshold + 1
	}
	for i := 1; i <= attempts; i++ {
		_, err := engine.Authenticate(ctx, opts.Email, "not-the-password", attacker)
		var throttle *authcore.ThrottleError
		switch {
		case errors.As(err, &throttle):
			fmt.Fprintf(out, "attempt %d: %v (%q)\n", i, throttle, authcore.LoginErrorMessage(err))
		case err != nil:
			fmt.Fprintf(out, "attempt %d: %q\n", i, authcore.LoginErrorMessage(err))
		default:
			return oops.Code("SIMULATION_FAILED").With("attempt", i).Errorf("wrong password was accepted")
		}
	}

	reset, err := engine.RequestPasswordReset(ctx, opts.Email)
	if err != nil || reset.Notification == nil {
		return oops.Code("SIMULATION_FAILED").With("step", "request reset").Errorf("no reset notification: %v", err)
	}
	token := reset.Notification.Data["token"]
	fmt.Fprintf(out, "reset notification for %s expires %s\n", reset.Notification.To, reset.Notification.Data["expires_at"])

	if err := engine.ResetPassword(ctx, token, opts.NewPassword); err != nil {
		return oops.Code("SIMULATION_FAILED").With("step", "reset password").Wrap(err)
	}
	if _, err := engine.Authenticate(ctx, opts.Email, opts.NewPassword, owner); err != nil {
		return oops.Code("SIMULATION_FAILED").With("step", "login after reset").Wrap(err)
	}
	fmt.Fprintln(out, "login with the new password ok")

	printCounters(out, engine.MetricsSnapshot())
	return nil
}

func printCounters(out io.Writer, snap authcore.MetricsSnapshot) {
	for _, def := range internaldefs.CounterDefs {
		if v := snap.Counters[def.ID]; v > 0 {
			fmt.Fprintf(out, "%s %d\n", def.Name, v)
		}
	}
}
