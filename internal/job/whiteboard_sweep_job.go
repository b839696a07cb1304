package job

import (
	"Solace/internal/service"
	log "log/slog"
	"time"
)

// WhiteboardSweepJob 回收无人房间的影子画板
type WhiteboardSweepJob struct {
	whiteboard service.WhiteboardService
	ttl        time.Duration
	now        func() time.Time
}

func NewWhiteboardSweepJob(whiteboard service.WhiteboardService, ttl time.Duration) *WhiteboardSweepJob {
	return &WhiteboardSweepJob{
		whiteboard: whiteboard,
		ttl:        ttl,
		now:        time.Now,
	}
}

func (s *WhiteboardSweepJob) Run() {
	swept := s.whiteboard.SweepIdle(s.now(), s.ttl)
	if swept > 0 {
		log.Info("whiteboard sweep job finished", "swept", swept, "remaining", s.whiteboard.Rooms())
	}
}
