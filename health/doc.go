// Package health exposes the supervisor over HTTP for orchestrator probes.
//
//	GET /livez   process is up
//	GET /readyz  503 once any checker reports down
//	GET /health  per-component status
//	GET /slots   supervised slot snapshots
//	GET /version build information
package health
