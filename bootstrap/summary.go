package bootstrap

import (
	"fmt"
	"io"
	"time"

	"github.com/kbukum/warden/supervisor"
)

// Summary renders the startup banner.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	clients         []ClientInfo
}

// ClientInfo describes an outbound dependency shown in the banner.
type ClientInfo struct {
	Name   string
	Target string
	Type   string
}

// NewSummary creates a summary for the named service.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version}
}

// SetStartupDuration records the time startup took.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// TrackClient adds an outbound client to the banner.
func (s *Summary) TrackClient(name, target, clientType string) {
	s.clients = append(s.clients, ClientInfo{Name: name, Target: target, Type: clientType})
}

// Write prints the banner: slots, clients and the probe address.
func (s *Summary) Write(w io.Writer, slots []supervisor.SlotStatus, healthAddr string) {
	fmt.Fprintf(w, "\n🚀 %s v%s started in %.2fs\n\n", s.serviceName, s.version, s.startupDuration.Seconds())

	fmt.Fprintf(w, "⚙️  Services (%d)\n", len(slots))
	if len(slots) == 0 {
		fmt.Fprintf(w, "   └── No services spawned\n")
	}
	for i, st := range slots {
		fmt.Fprintf(w, "   %s %s %s [%s] (%s)\n", branch(i, len(slots)), stateIcon(st.State), st.Name, st.Policy, st.State)
	}

	if len(s.clients) > 0 {
		fmt.Fprintf(w, "\n🔌 Clients\n")
		for i, c := range s.clients {
			fmt.Fprintf(w, "   %s %s → %s [%s]\n", branch(i, len(s.clients)), c.Name, c.Target, c.Type)
		}
	}

	if healthAddr != "" {
		fmt.Fprintf(w, "\n🏥 Probes on http://%s (/livez /readyz /health /slots)\n", healthAddr)
	}
	fmt.Fprintln(w)
}

func branch(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func stateIcon(state string) string {
	switch state {
	case supervisor.StateRunning.String(), supervisor.StateConstructing.String():
		return "✅"
	case supervisor.StateCrashed.String(), supervisor.StateCompleted.String():
		return "⚠️"
	case supervisor.StateReported.String(), supervisor.StateTerminated.String():
		return "❌"
	default:
		return "❓"
	}
}
