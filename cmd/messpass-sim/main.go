// Command messpass-sim walks one account per role through the route table
// and prints every guard decision.
//
// It runs against miniredis and the in-memory backend unless -redis-addr
// (or REDIS_ADDR) names a real server.
//
//	go run ./cmd/messpass-sim -offline-after 1
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	messpass "github.com/MrEthical07/messpass"
	"github.com/MrEthical07/messpass/backend"
	"github.com/MrEthical07/messpass/domain"
)

type account struct {
	email string
	role  string
}

var accounts = []account{
	{"asha@mess.io", "member"},
	{"ravi@mess.io", "member"},
	{"warden@mess.io", "admin"},
	{"guest@mess.io", "regular"},
}

const demoPassword = "hunter42a"

var routes = []struct {
	name string
	opts messpass.GuardOptions
}{
	{"member", messpass.MemberOnly()},
	{"admin", messpass.AdminOnly()},
	{"regular", messpass.RegularOnly()},
}

func main() {
	var (
		redisAddr    = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		level        = flag.String("log-level", "warn", "log level")
		offlineAfter = flag.Int("offline-after", -1, "take the backend offline after this many accounts")
	)
	flag.Parse()

	log := logrus.New()
	if lvl, err := logrus.ParseLevel(*level); err == nil {
		log.SetLevel(lvl)
	}

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			log.WithError(err).Fatal("starting miniredis")
		}
		defer mr.Close()
		addr = mr.Addr()
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	if err := run(context.Background(), rdb, log, *offlineAfter); err != nil {
		log.WithError(err).Fatal("simulation failed")
	}
}

func run(ctx context.Context, rdb redis.UniversalClient, log *logrus.Logger, offlineAfter int) error {
	cfg, err := messpass.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.SigningKey == "" {
		cfg.Auth.SigningKey = "messpass-sim-secret-0123456789abcdef"
	}
	cfg.Network.ProbeInterval = 0
	cfg.Audit.Enabled = true

	api := backend.NewMemory()
	app, err := messpass.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithBackend(api).
		WithLogger(log).
		WithAuditSink(messpass.NewLogSink(log)).
		Build()
	if err != nil {
		return err
	}
	defer app.Close()

	var members []string
	for _, a := range accounts {
		u, err := app.SignUp(ctx, domain.SignUpInput{Email: a.email, Name: "Demo User", Password: demoPassword, Role: a.role})
		if err != nil {
			return fmt.Errorf("sign up %s: %w", a.email, err)
		}
		// ravi stays without a membership to show the renewal redirect.
		if a.role == "member" && a.email != "ravi@mess.io" {
			members = append(members, u.ID)
		}
	}
	api.Seed(time.Now(), members...)

	if err := app.Start(ctx); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACCOUNT\tROUTE\tDECISION\tREASON")
	fmt.Fprintln(tw, "(signed out)\tmember\t"+app.Decide(messpass.MemberOnly()).String()+"\t")

	for i, a := range accounts {
		if i == offlineAfter {
			api.SetOffline(true)
			for j := 0; j < int(cfg.Backend.ConsecutiveFailures); j++ {
				_, _ = app.ProbeNetwork(ctx)
			}
		}
		if err := app.SignIn(ctx, a.email, demoPassword); err != nil {
			fmt.Fprintf(tw, "%s\t-\tsign-in failed\t%v\n", a.email, err)
			continue
		}
		for _, name := range []string{messpass.StoreMembership, messpass.StoreMeals, messpass.StoreAbsences} {
			if _, err := app.Retry(ctx, name); err != nil {
				return err
			}
		}
		for _, r := range routes {
			d := app.Decide(r.opts)
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.email, r.name, d, d.Reason)
		}
		if err := app.SignOut(ctx); err != nil {
			fmt.Fprintf(tw, "%s\t-\tsign-out failed\t%v\n", a.email, err)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Println()
	for _, st := range app.StoreStates() {
		line := fmt.Sprintf("%-12s %s", st.Name, st.Status)
		if st.Err != nil {
			line += " (" + st.Err.Error() + ")"
		}
		fmt.Println(line)
	}
	snap := app.MetricsSnapshot()
	fmt.Printf("\nguard: allow=%d redirect=%d loading=%d  sign-in ok=%d failed=%d  backend offline=%d\n",
		snap.Counters[messpass.MetricGuardAllow],
		snap.Counters[messpass.MetricGuardRedirect],
		snap.Counters[messpass.MetricGuardLoading],
		snap.Counters[messpass.MetricSignInSuccess],
		snap.Counters[messpass.MetricSignInFailure],
		snap.Counters[messpass.MetricBackendOffline],
	)
	return nil
}
