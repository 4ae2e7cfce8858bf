// Command sessiond-loadtest seeds sessions and measures verify, refresh and
// revoke-all latency against Redis, or an in-process miniredis when no
// address is given.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type seeded struct {
	userID string
	pair   *goSession.TokenPair
}

func main() {
	var (
		users       = flag.Int("users", 1000, "number of users to seed")
		perUser     = flag.Int("sessions-per-user", 5, "sessions opened per user")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase (verify + refresh)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "lt:", "key prefix")
		touch       = flag.Bool("touch", false, "touch sessions on verify")
	)
	flag.Parse()

	if *users <= 0 || *perUser <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, sessions-per-user, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := goSession.DefaultConfig()
	cfg.JWT.PrivateKey = "loadtest-signing-key-0123456789abcdef"
	cfg.Session.KeyPrefix = *prefix
	cfg.Session.TouchOnVerify = *touch

	svc, err := goSession.New().WithConfig(cfg).WithRedis(client).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build service: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	ctx := context.Background()

	fmt.Printf("seeding %d sessions for %d users...\n", *users**perUser, *users)
	startSeed := time.Now()
	pairs, err := seed(ctx, svc, *users, *perUser, *concurrency)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	verifyStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		p := pairs[r.Intn(len(pairs))].pair
		if _, ok := svc.VerifyToken(ctx, p.AccessToken); !ok {
			return errVerifyRejected
		}
		return nil
	})

	refreshStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		p := pairs[r.Intn(len(pairs))].pair
		_, err := svc.RefreshAccessToken(ctx, p.RefreshToken)
		return err
	})

	var revoked atomic.Int64
	revokeStats := runPhase(*users, *concurrency, func(_ *rand.Rand, i int) error {
		n, err := svc.RevokeAllUserTokens(ctx, userID(i))
		revoked.Add(int64(n))
		return err
	})

	fmt.Println("---- results ----")
	printStats("verify", verifyStats)
	printStats("refresh", refreshStats)
	printStats("revoke-all", revokeStats)
	fmt.Printf("revoked sessions: %d\n", revoked.Load())
}

func userID(i int) string {
	return fmt.Sprintf("user-%d", i)
}

func seed(ctx context.Context, svc *goSession.Service, users, perUser, concurrency int) ([]seeded, error) {
	out := make([]seeded, users*perUser)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range out {
		g.Go(func() error {
			uid := userID(i / perUser)
			pair, err := svc.GenerateTokenPair(gctx, uid, uid+"@loadtest.local")
			if err != nil {
				return err
			}
			out[i] = seeded{userID: uid, pair: pair}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// runPhase spreads ops calls of fn over concurrency workers and records the
// latency of each call.
func runPhase(ops, concurrency int, fn func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := fn(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}
