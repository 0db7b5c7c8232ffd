package health

import (
	"context"
	"time"
)

const pingTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Service reports process and dependency health.
type Service struct {
	version string
	db      Pinger
}

// NewService constructs a health service. db may be nil when the ledger is
// in memory.
func NewService(version string, db Pinger) *Service {
	return &Service{version: version, db: db}
}

// Status is the health payload.
type Status struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
}

// Healthy reports whether every dependency answered.
func (s Status) Healthy() bool { return s.Status == "healthy" }

// Check pings the ledger database. The process itself is healthy whenever
// it can answer; a failed ping degrades the status.
func (s *Service) Check(ctx context.Context) Status {
	st := Status{Status: "healthy", Version: s.version, Database: "memory"}
	if s.db == nil {
		return st
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.db.PingContext(pingCtx); err != nil {
		st.Status = "degraded"
		st.Database = "unreachable"
		return st
	}
	st.Database = "ok"
	return st
}
