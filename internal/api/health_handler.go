package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orsg/prisme/internal/catalog"
	"github.com/orsg/prisme/internal/pkg/httputil"
)

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// BucketPinger reaches the publish bucket.
type BucketPinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker reports liveness and the state of optional dependencies
// (history database, Redis, S3) plus the local directories the server uses.
type HealthChecker struct {
	version     string
	catalog     *catalog.Store
	outputDir   string
	db          *sql.DB
	redisClient *redis.Client
	bucket      BucketPinger
	startTime   time.Time
}

// NewHealthChecker creates a new HealthChecker. Any dependency can be nil;
// the check then reports "not configured".
func NewHealthChecker(version string, store *catalog.Store, outputDir string, db *sql.DB, redisClient *redis.Client, bucket BucketPinger) *HealthChecker {
	return &HealthChecker{
		version:     version,
		catalog:     store,
		outputDir:   outputDir,
		db:          db,
		redisClient: redisClient,
		bucket:      bucket,
		startTime:   time.Now(),
	}
}

// HandleHealth is the liveness endpoint.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	c := hc.catalog.Current()
	httputil.OK(w, map[string]interface{}{
		"status":          "ok",
		"version":         hc.version,
		"uptime":          formatUptime(time.Since(hc.startTime)),
		"catalogVersion":  c.Version(),
		"catalogLoadedAt": c.LoadedAt().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness checks dependencies and returns 503 when a required one
// is down.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	overall := determineOverallStatus(checks)

	ready := overall != "unhealthy"
	httpStatus := http.StatusOK
	if !ready {
		httpStatus = http.StatusServiceUnavailable
	}
	httputil.JSON(w, httpStatus, map[string]interface{}{
		"ready":  ready,
		"status": overall,
		"checks": checks,
	})
}

// ---------------------------------------------------------------------------
// Individual component checks
// ---------------------------------------------------------------------------

func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	type result struct {
		name  string
		check ComponentCheck
	}
	ch := make(chan result, 5)

	go func() { ch <- result{"catalog", hc.checkCatalog()} }()
	go func() { ch <- result{"output", hc.checkOutputDir()} }()
	go func() { ch <- result{"database", hc.checkDatabase(ctx)} }()
	go func() { ch <- result{"redis", hc.checkRedis(ctx)} }()
	go func() { ch <- result{"s3", hc.checkS3(ctx)} }()

	checks := make(map[string]ComponentCheck, 5)
	for i := 0; i < 5; i++ {
		r := <-ch
		checks[r.name] = r.check
	}
	return checks
}

// checkCatalog reports a themes document that failed to load as degraded:
// the server runs, but with an empty catalog.
func (hc *HealthChecker) checkCatalog() ComponentCheck {
	c := hc.catalog.Current()
	if err := c.LoadError(); err != nil {
		return ComponentCheck{Status: "degraded", Message: fmt.Sprintf("themes config not loaded: %v", err)}
	}
	msg := fmt.Sprintf("version %d, %d datasets from %s", c.Version(), c.Len(), c.Source())
	if n := len(c.Warnings()); n > 0 {
		msg += fmt.Sprintf(", %d warnings", n)
	}
	return ComponentCheck{Status: "up", Message: msg}
}

// checkOutputDir is the only hard dependency: reports cannot be served
// without it.
func (hc *HealthChecker) checkOutputDir() ComponentCheck {
	info, err := os.Stat(hc.outputDir)
	if err != nil {
		return ComponentCheck{Status: "down", Message: fmt.Sprintf("output dir: %v", err)}
	}
	if !info.IsDir() {
		return ComponentCheck{Status: "down", Message: "output path is not a directory"}
	}
	return ComponentCheck{Status: "up", Message: hc.outputDir}
}

// checkDatabase pings PostgreSQL with a 3-second timeout.
func (hc *HealthChecker) checkDatabase(ctx context.Context) ComponentCheck {
	if hc.db == nil {
		return ComponentCheck{Status: "down", Message: "not configured"}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	err := hc.db.PingContext(pingCtx)
	latency := time.Since(start)

	if err != nil {
		return ComponentCheck{Status: "down", Latency: latency.String(), Message: fmt.Sprintf("ping failed: %v", err)}
	}
	if latency > time.Second {
		return ComponentCheck{Status: "degraded", Latency: latency.String(), Message: fmt.Sprintf("slow response (%s)", latency)}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: "connected"}
}

// checkRedis pings Redis with a 2-second timeout.
func (hc *HealthChecker) checkRedis(ctx context.Context) ComponentCheck {
	if hc.redisClient == nil {
		return ComponentCheck{Status: "down", Message: "not configured"}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := hc.redisClient.Ping(pingCtx).Err()
	latency := time.Since(start)

	if err != nil {
		return ComponentCheck{Status: "down", Latency: latency.String(), Message: fmt.Sprintf("ping failed: %v", err)}
	}
	if latency > 500*time.Millisecond {
		return ComponentCheck{Status: "degraded", Latency: latency.String(), Message: fmt.Sprintf("slow response (%s)", latency)}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: "connected"}
}

// checkS3 verifies the publish bucket is reachable.
func (hc *HealthChecker) checkS3(ctx context.Context) ComponentCheck {
	if hc.bucket == nil {
		return ComponentCheck{Status: "down", Message: "not configured"}
	}

	s3Ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	err := hc.bucket.Ping(s3Ctx)
	latency := time.Since(start)

	if err != nil {
		return ComponentCheck{Status: "down", Latency: latency.String(), Message: fmt.Sprintf("HeadBucket failed: %v", err)}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: "bucket accessible"}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// determineOverallStatus derives the aggregate status from individual checks.
//
// Rules:
//   - "unhealthy" if the output directory is down
//   - "degraded"  if any check is degraded or a configured optional check is down
//   - "healthy"   otherwise
func determineOverallStatus(checks map[string]ComponentCheck) string {
	if out, ok := checks["output"]; ok && out.Status == "down" {
		return "unhealthy"
	}
	for _, c := range checks {
		if c.Status == "degraded" {
			return "degraded"
		}
		if c.Status == "down" && c.Message != "not configured" {
			return "degraded"
		}
	}
	return "healthy"
}

// formatUptime produces a human-readable uptime string like "3d 4h 12m 5s".
func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
