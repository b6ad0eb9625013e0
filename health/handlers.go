package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/warden/observability"
	"github.com/kbukum/warden/supervisor"
	"github.com/kbukum/warden/version"
)

// SlotLister exposes supervised slots. *supervisor.Supervisor satisfies it.
type SlotLister interface {
	Slots() []supervisor.SlotStatus
}

// Liveness confirms the process is alive and able to serve HTTP.
func Liveness(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"service":   serviceName,
			"timestamp": now(),
		})
	}
}

// Readiness reports not_ready (503) once any checker is down. Degraded
// components still accept traffic.
func Readiness(serviceName string, checkers ...observability.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		sh := observability.CheckAll(c.Request.Context(), serviceName, "", checkers...)
		status, code := "ready", http.StatusOK
		if sh.Status == observability.HealthStatusDown {
			status, code = "not_ready", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"service":   serviceName,
			"timestamp": now(),
		})
	}
}

// Health reports every checker; the overall status is the worst of them.
func Health(serviceName, serviceVersion string, checkers ...observability.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		sh := observability.CheckAll(c.Request.Context(), serviceName, serviceVersion, checkers...)
		code := http.StatusOK
		if sh.Status == observability.HealthStatusDown {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, sh)
	}
}

// Slots lists the supervisor's slots.
func Slots(lister SlotLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		slots := lister.Slots()
		c.JSON(http.StatusOK, gin.H{
			"count": len(slots),
			"slots": slots,
		})
	}
}

// Version reports the build information of the running binary.
func Version() gin.HandlerFunc {
	return func(c *gin.Context) {
		info := version.Get()
		c.JSON(http.StatusOK, gin.H{
			"version":    info.Version,
			"git_commit": info.GitCommit,
			"build_time": info.BuildTime,
			"go_version": info.GoVersion,
			"is_release": info.IsRelease(),
			"dirty":      info.Dirty,
		})
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
