package service

import (
	"context"

	"github.com/devrev/chashring/internal/algorithm"
	rerrors "github.com/devrev/chashring/internal/errors"
	"github.com/devrev/chashring/internal/model"
	"go.uber.org/zap"
)

// MetricsRecorder is the subset of metrics the services report to
type MetricsRecorder interface {
	RecordInstall(status string, collisions int)
	RecordRemove(status string)
	RecordLookup(status string)
	UpdateTopology(physical, virtual int)
	RecordDisruption(mutation, classification string, changes uint64, ratio, duration float64)
}

type noopRecorder struct{}

func (noopRecorder) RecordInstall(string, int) {}
func (noopRecorder) RecordRemove(string) {}
func (noopRecorder) RecordLookup(string) {}
func (noopRecorder) UpdateTopology(int, int) {}
func (noopRecorder) RecordDisruption(string, string, uint64, float64, float64) {}

// RingService manages a consistent hash ring on behalf of callers,
// adding logging and metrics around topology changes and lookups
type RingService struct {
	ring    *algorithm.Ring
	metrics MetricsRecorder
	logger  *zap.Logger
}

// NewRingService creates a new ring service
func NewRingService(ring *algorithm.Ring, recorder MetricsRecorder, logger *zap.Logger) *RingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &RingService{
		ring:    ring,
		metrics: recorder,
		logger:  logger,
	}
}

// Ring returns the managed ring
func (s *RingService) Ring() *algorithm.Ring {
	return s.ring
}

// AddNode installs a physical node on the ring
func (s *RingService) AddNode(ctx context.Context, node *model.PhysicalNode) (algorithm.InstallResult, error) {
	result, err := s.ring.Install(node)
	s.metrics.RecordInstall(rerrors.GetCode(err).String(), result.Collisions)
	if err != nil {
		return result, err
	}
	s.updateTopology()

	s.logger.Info("Added node to hash ring",
		zap.String("desc", node.Desc),
		zap.String("address", node.Address),
		zap.Int("replicas", node.Replicas),
		zap.Int("installed", result.Installed),
		zap.Int("collisions", result.Collisions))

	return result, nil
}

// RemoveNode removes the physical node at address from the ring
func (s *RingService) RemoveNode(ctx context.Context, address string) (*model.PhysicalNode, error) {
	node, err := s.ring.Remove(address)
	s.metrics.RecordRemove(rerrors.GetCode(err).String())
	if err != nil {
		return nil, err
	}
	s.updateTopology()

	s.logger.Info("Removed node from hash ring",
		zap.String("desc", node.Desc),
		zap.String("address", address))

	return node, nil
}

// Lookup returns the physical node owning key
func (s *RingService) Lookup(ctx context.Context, key []byte) (*model.PhysicalNode, error) {
	node, err := s.ring.Lookup(key)
	s.metrics.RecordLookup(rerrors.GetCode(err).String())
	if err != nil {
		s.logger.Error("Lookup failed", zap.ByteString("key", key), zap.Error(err))
		return nil, err
	}
	return node, nil
}

// Summary returns the ring statistics
func (s *RingService) Summary() model.RingSummary {
	return s.ring.Summary()
}

// GetNodeCount returns the current number of nodes in the hash ring
func (s *RingService) GetNodeCount() int {
	return s.ring.NodeCount()
}

func (s *RingService) updateTopology() {
	s.metrics.UpdateTopology(s.ring.NodeCount(), s.ring.TotalVirtualNodes())
}
