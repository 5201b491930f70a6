// Command staffauth-loadtest drives the engine against Redis and reports
// throughput and latency per phase: issue, authenticate, rotate, and a
// replay phase where many workers race to rotate the same credential.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/staffauth"
	"github.com/MrEthical07/staffauth/directory"
	"github.com/MrEthical07/staffauth/password"
)

type staffState struct {
	id   string
	pair staffauth.CredentialPair
	mu   sync.Mutex
}

func main() {
	var (
		staff       = flag.Int("staff", 1000, "number of staff members to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase")
		racers      = flag.Int("racers", 16, "workers racing per credential in the replay phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "srt-load", "refresh key prefix")
	)
	flag.Parse()

	if *staff <= 0 || *concurrency <= 0 || *ops <= 0 || *racers <= 1 {
		fmt.Fprintln(os.Stderr, "staff, concurrency and ops must be > 0; racers must be > 1")
		os.Exit(2)
	}

	ctx := context.Background()

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

	engine, states, err := setup(client, *prefix, *staff)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = engine.Close() }()

	issueStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		s := &states[r.Intn(len(states))]
		pair, err := engine.Issue(ctx, staffauth.Identity{ID: s.id, Staff: true})
		if err == nil {
			s.mu.Lock()
			s.pair = pair
			s.mu.Unlock()
		}
		return err
	})

	authStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		s := &states[r.Intn(len(states))]
		s.mu.Lock()
		token := s.pair.Access.Token
		s.mu.Unlock()
		_, err := engine.Authenticate(ctx, token)
		return err
	})

	rotateStats := runPhase(*ops, *concurrency, func(r *rand.Rand, _ int) error {
		s := &states[r.Intn(len(states))]
		s.mu.Lock()
		defer s.mu.Unlock()
		pair, err := engine.Rotate(ctx, s.pair.Refresh.Token)
		if err == nil {
			s.pair = pair
		}
		return err
	})

	replay := runReplayPhase(ctx, engine, states, *racers)

	fmt.Println("---- results ----")
	printStats("issue", issueStats)
	printStats("authenticate", authStats)
	printStats("rotate", rotateStats)
	fmt.Printf("replay: credentials=%d winners=%d reuse_rejections=%d other_errors=%d\n",
		replay.credentials, replay.winners, replay.rejected, replay.other)
	if replay.winners != int64(replay.credentials) {
		fmt.Fprintln(os.Stderr, "replay phase: expected exactly one winner per credential")
		os.Exit(1)
	}
}

func setup(client redis.UniversalClient, prefix string, n int) (*staffauth.Engine, []staffState, error) {
	hasher, err := password.NewArgon2(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		return nil, nil, err
	}
	dir, err := directory.NewMemory(hasher, zap.NewNop())
	if err != nil {
		return nil, nil, err
	}

	states := make([]staffState, n)
	fmt.Printf("seeding %d staff members...\n", n)
	start := time.Now()
	for i := range states {
		id := fmt.Sprintf("staff-%d", i)
		if _, err := dir.Add(directory.Member{ID: id, Username: id, Password: "loadtest-password", Staff: true}); err != nil {
			return nil, nil, err
		}
		states[i].id = id
	}
	fmt.Printf("seeded in %s\n", time.Since(start).Round(time.Millisecond))

	cfg := staffauth.DefaultConfig()
	cfg.Signing.Secret = []byte("loadtest-secret-not-for-production-use!")
	cfg.Store.KeyPrefix = prefix

	engine, err := staffauth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserDirectory(dir).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		return nil, nil, err
	}

	// every member needs a pair before the authenticate and rotate phases
	for i := range states {
		pair, err := engine.Issue(context.Background(), staffauth.Identity{ID: states[i].id, Staff: true})
		if err != nil {
			return nil, nil, err
		}
		states[i].pair = pair
	}
	return engine, states, nil
}

func runPhase(ops, concurrency int, op func(r *rand.Rand, i int) error) phaseStats {
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
				err := op(r, i)
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

type replayStats struct {
	credentials int
	winners     int64
	rejected    int64
	other       int64
}

// runReplayPhase races racers rotations of each member's current refresh
// credential. Exactly one per credential may succeed.
func runReplayPhase(ctx context.Context, engine *staffauth.Engine, states []staffState, racers int) replayStats {
	out := replayStats{credentials: len(states)}
	for i := range states {
		token := states[i].pair.Refresh.Token

		var wg sync.WaitGroup
		start := make(chan struct{})
		for w := 0; w < racers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, err := engine.Rotate(ctx, token)
				switch {
				case err == nil:
					atomic.AddInt64(&out.winners, 1)
				case errors.Is(err, staffauth.ErrRevokedOrReused):
					atomic.AddInt64(&out.rejected, 1)
				default:
					atomic.AddInt64(&out.other, 1)
				}
			}()
		}
		close(start)
		wg.Wait()
	}
	return out
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
