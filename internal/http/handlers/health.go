package handlers

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/jmylchreest/xtreamer/internal/app"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	app       *app.App
	version   string
	startTime time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(a *app.App, version string) *HealthHandler {
	return &HealthHandler{
		app:       a,
		version:   version,
		startTime: time.Now(),
	}
}

// HealthInput is the input for the health check endpoint.
type HealthInput struct{}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// LivezInput is the input for the liveness endpoint.
type LivezInput struct{}

// LivezOutput is the output for the liveness endpoint.
type LivezOutput struct {
	Body LivezResponse
}

// Register registers the health routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the service including system metrics",
		Tags:        []string{"System"},
	}, h.GetHealth)

	huma.Register(api, huma.Operation{
		OperationID: "getLivez",
		Method:      "GET",
		Path:        "/livez",
		Summary:     "Liveness probe",
		Tags:        []string{"System"},
	}, h.GetLivez)
}

// GetLivez reports that the process is serving.
func (h *HealthHandler) GetLivez(_ context.Context, _ *LivezInput) (*LivezOutput, error) {
	return &LivezOutput{Body: LivezResponse{Status: "ok"}}, nil
}

// GetHealth returns the health status of the service.
func (h *HealthHandler) GetHealth(ctx context.Context, _ *HealthInput) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	dbHealth := h.getDatabaseHealth(ctx)
	status := "healthy"
	if dbHealth.Status == "error" {
		status = "degraded"
	}

	out := &HealthOutput{
		Body: HealthResponse{
			Status:        status,
			Timestamp:     now.UTC().Format(time.RFC3339),
			Version:       h.version,
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			CPUInfo:       h.getCPUInfo(),
			Memory:        h.getMemoryInfo(),
			Components: HealthComponents{
				Database:  dbHealth,
				Session:   h.getSessionHealth(),
				Favorites: FavoritesHealth{Backend: h.app.Config.Favorites.Backend, Count: h.app.Favorites.Len()},
			},
		},
	}
	sessionCheck := "anonymous"
	if out.Body.Components.Session.Authenticated {
		sessionCheck = "authenticated"
	}
	out.Body.Checks = map[string]string{
		"database": dbHealth.Status,
		"session":  sessionCheck,
	}
	return out, nil
}

func (h *HealthHandler) getCPUInfo() CPUInfo {
	info := CPUInfo{Cores: runtime.NumCPU()}

	loadAvg, err := load.Avg()
	if err == nil && loadAvg != nil {
		info.Load1Min = loadAvg.Load1
		info.Load5Min = loadAvg.Load5
		info.Load15Min = loadAvg.Load15
		if info.Cores > 0 {
			info.LoadPercentage1Min = (loadAvg.Load1 / float64(info.Cores)) * 100
		}
	}
	return info
}

func (h *HealthHandler) getMemoryInfo() MemoryInfo {
	const mb = 1024 * 1024
	info := MemoryInfo{}

	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		info.TotalMemoryMB = float64(vm.Total) / mb
		info.UsedMemoryMB = float64(vm.Used) / mb
		info.AvailableMemoryMB = float64(vm.Available) / mb
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return info
	}
	if m, err := proc.MemoryInfo(); err == nil && m != nil {
		info.ProcessMB = float64(m.RSS) / mb
	}
	if children, err := proc.Children(); err == nil {
		info.ChildProcessCount = len(children)
	}
	return info
}

func (h *HealthHandler) getSessionHealth() SessionHealth {
	sess := h.app.Login.Session()
	if sess == nil {
		return SessionHealth{}
	}
	return SessionHealth{
		Authenticated: true,
		BaseURL:       sess.Credentials.BaseURL(),
		Username:      sess.Credentials.Username,
	}
}

func (h *HealthHandler) getDatabaseHealth(ctx context.Context) DatabaseHealth {
	db := h.app.DB
	if db == nil {
		return DatabaseHealth{Status: "not_configured"}
	}

	health := DatabaseHealth{Status: "ok", Driver: db.Driver()}
	if stats, err := db.Stats(); err == nil {
		health.Pool = stats
	}

	start := time.Now()
	err := db.Ping(ctx)
	health.ResponseTimeMS = float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		health.Status = "error"
	}
	return health
}
