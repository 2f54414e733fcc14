package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/iyhunko/product-catalog/internal/metrics"
)

// Mode selects whether denials are enforced.
type Mode string

const (
	ModeLive   Mode = "LIVE"
	ModeDryRun Mode = "DRY_RUN"
)

type Conclusion string

const (
	ConclusionAllow Conclusion = "ALLOW"
	ConclusionDeny  Conclusion = "DENY"
	ConclusionError Conclusion = "ERROR"
)

// Reason names the rule responsible for a denial.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonRateLimit Reason = "RATE_LIMIT"
	ReasonBot       Reason = "BOT"
	ReasonShield    Reason = "SHIELD"
)

var (
	ErrNoClientAddr = errors.New("client address is unknown")
	ErrEvaluation   = errors.New("gate evaluation failed")
)

var staticExtensions = map[string]struct{}{
	".css": {}, ".js": {}, ".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".svg": {},
	".ico": {}, ".woff": {}, ".woff2": {}, ".ttf": {}, ".eot": {},
}

// Decision is the combined verdict of all rules for one request.
type Decision struct {
	Conclusion Conclusion
	Reason     Reason
	// RetryAfter is set for rate limit denials.
	RetryAfter  time.Duration
	BotCategory Category
	Attack      Attack
	// DryRun marks decisions that are recorded but not enforced.
	DryRun bool
}

// Denied reports whether the request must be rejected.
func (d Decision) Denied() bool {
	return d.Conclusion == ConclusionDeny && !d.DryRun
}

type Options struct {
	Mode       Mode
	Capacity   int
	RefillRate int
	Interval   time.Duration
	// BotAllow lists bot categories that are let through.
	BotAllow []Category
	// HealthPath is never gated.
	HealthPath string
	Stats      StatsStore
	// StatsTimeout bounds each Stats.Record call.
	StatsTimeout time.Duration
	Buckets      []BucketOption
}

type Gate struct {
	mode         Mode
	buckets      *BucketStore
	bots         botRule
	shield       shieldRule
	healthPath   string
	stats        StatsStore
	statsTimeout time.Duration
	now          func() time.Time
}

func New(opts Options) *Gate {
	if opts.Mode == "" {
		opts.Mode = ModeLive
	}
	if opts.Capacity <= 0 {
		opts.Capacity = 10
	}
	if opts.RefillRate <= 0 {
		opts.RefillRate = 5
	}
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.BotAllow == nil {
		opts.BotAllow = []Category{CategorySearchEngine}
	}
	if opts.StatsTimeout <= 0 {
		opts.StatsTimeout = 250 * time.Millisecond
	}

	return &Gate{
		mode:         opts.Mode,
		buckets:      NewBucketStore(opts.Capacity, opts.RefillRate, opts.Interval, opts.Buckets...),
		bots:         newBotRule(opts.BotAllow),
		healthPath:   opts.HealthPath,
		stats:        opts.Stats,
		statsTimeout: opts.StatsTimeout,
		now:          time.Now,
	}
}

// StartJanitor evicts idle client buckets until ctx is cancelled.
func (g *Gate) StartJanitor(ctx context.Context) {
	g.buckets.StartJanitor(ctx)
}

// Bypass reports whether r skips the gate entirely: preflight requests,
// the health check and static assets.
func (g *Gate) Bypass(r *http.Request) bool {
	if r.Method == http.MethodOptions {
		return true
	}
	p := r.URL.Path
	if g.healthPath != "" && p == g.healthPath {
		return true
	}
	if strings.HasPrefix(p, "/assets/") || strings.HasPrefix(p, "/static/") {
		return true
	}
	_, ok := staticExtensions[strings.ToLower(path.Ext(p))]
	return ok
}

// Protect evaluates every rule for r on behalf of clientAddr.
// A non-nil error comes with a ConclusionError decision.
func (g *Gate) Protect(ctx context.Context, r *http.Request, clientAddr string) (dec Decision, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			dec = Decision{Conclusion: ConclusionError}
			err = fmt.Errorf("%w: %v", ErrEvaluation, rec)
		}
		g.record(ctx, r, clientAddr, dec)
	}()

	if clientAddr == "" {
		return Decision{Conclusion: ConclusionError}, ErrNoClientAddr
	}

	allowed, retryAfter := g.buckets.Take(clientAddr, g.now())
	category := ClassifyBot(r.UserAgent(), r.Header.Get("Accept"))
	attack, err := g.shield.inspect(r)
	if err != nil {
		return Decision{Conclusion: ConclusionError}, fmt.Errorf("%w: %w", ErrEvaluation, err)
	}

	dec = Decision{
		Conclusion:  ConclusionAllow,
		BotCategory: category,
		Attack:      attack,
		DryRun:      g.mode == ModeDryRun,
	}
	switch {
	case !allowed:
		dec.Conclusion = ConclusionDeny
		dec.Reason = ReasonRateLimit
		dec.RetryAfter = retryAfter
	case g.bots.denies(category):
		dec.Conclusion = ConclusionDeny
		dec.Reason = ReasonBot
	case attack != "":
		dec.Conclusion = ConclusionDeny
		dec.Reason = ReasonShield
	}

	return dec, nil
}

func (g *Gate) record(ctx context.Context, r *http.Request, clientAddr string, dec Decision) {
	metrics.GateDecisions.WithLabelValues(string(dec.Conclusion), string(dec.Reason)).Inc()

	if dec.Conclusion == ConclusionDeny {
		slog.Info("gate denied request",
			slog.String("reason", string(dec.Reason)),
			slog.String("client", clientAddr),
			slog.String("bot_category", string(dec.BotCategory)),
			slog.String("attack", string(dec.Attack)),
			slog.Bool("dry_run", dec.DryRun),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path))
	}

	if g.stats == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, g.statsTimeout)
	defer cancel()

	err := g.stats.Record(ctx, StatsEvent{
		Key:        clientAddr,
		Conclusion: dec.Conclusion,
		Reason:     dec.Reason,
		Method:     r.Method,
		Path:       r.URL.Path,
		At:         g.now(),
	})
	if err != nil && !errors.Is(err, ErrStatsQueueFull) {
		slog.Warn("failed to record gate decision", slog.String("error", err.Error()))
	}
}

// ClientAddr extracts the address requests are bucketed by: the first
// X-Forwarded-For entry when trusted, otherwise the host of RemoteAddr.
func ClientAddr(r *http.Request, trustXFF bool) string {
	if trustXFF {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
