package api

import (
	"fmt"
	"math"
	"sync/atomic"

	"hcext/internal/storage"
)

type statsCollector struct {
	fetches      atomic.Uint64
	cacheHits    atomic.Uint64
	shared       atomic.Uint64
	totalBytes   atomic.Uint64
	minRespBytes atomic.Uint64
	maxRespBytes atomic.Uint64
}

func newStatsCollector() *statsCollector {
	s := &statsCollector{}
	s.minRespBytes.Store(math.MaxUint64)
	return s
}

// observe records one network response of n bytes.
func (s *statsCollector) observe(respBytes int) {
	if respBytes < 0 {
		respBytes = 0
	}
	n := uint64(respBytes)

	s.fetches.Add(1)
	s.totalBytes.Add(n)

	for {
		cur := s.minRespBytes.Load()
		if n >= cur {
			break
		}
		if s.minRespBytes.CompareAndSwap(cur, n) {
			break
		}
	}
	for {
		cur := s.maxRespBytes.Load()
		if n <= cur {
			break
		}
		if s.maxRespBytes.CompareAndSwap(cur, n) {
			break
		}
	}
}

// Stats is a point-in-time view of client activity.
type Stats struct {
	Fetches      uint64
	CacheHits    uint64
	Shared       uint64
	TotalBytes   uint64
	MinRespBytes uint64
	MaxRespBytes uint64
	AvgRespBytes uint64
}

func (s *statsCollector) snapshot() Stats {
	out := Stats{
		Fetches:   s.fetches.Load(),
		CacheHits: s.cacheHits.Load(),
		Shared:    s.shared.Load(),
	}
	if out.Fetches == 0 {
		return out
	}
	out.TotalBytes = s.totalBytes.Load()
	out.MinRespBytes = s.minRespBytes.Load()
	if out.MinRespBytes == math.MaxUint64 {
		out.MinRespBytes = 0
	}
	out.MaxRespBytes = s.maxRespBytes.Load()
	out.AvgRespBytes = out.TotalBytes / out.Fetches
	return out
}

func (s Stats) String() string {
	return fmt.Sprintf(
		"Requests: %d fetched, %d cached, %d shared, Resp Min/avg/max %s/%s/%s",
		s.Fetches,
		s.CacheHits,
		s.Shared,
		storage.FormatBytes(s.MinRespBytes),
		storage.FormatBytes(s.AvgRespBytes),
		storage.FormatBytes(s.MaxRespBytes),
	)
}
