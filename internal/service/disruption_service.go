package service

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/devrev/chashring/internal/algorithm"
	rerrors "github.com/devrev/chashring/internal/errors"
	"github.com/devrev/chashring/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultKeyCount is the number of keys replayed per disruption check
const DefaultKeyCount = 10000000

// DisruptionConfig holds disruption check configuration
type DisruptionConfig struct {
	KeyCount  int
	KeySeed   uint32
	Workers   int
	BatchSize int
}

// DisruptionService measures how many keys change owner when a single node
// joins or leaves a ring. It never mutates the ring it is given.
type DisruptionService struct {
	config  *DisruptionConfig
	metrics MetricsRecorder
	logger  *zap.Logger
}

// NewDisruptionService creates a new disruption service
func NewDisruptionService(config *DisruptionConfig, recorder MetricsRecorder, logger *zap.Logger) *DisruptionService {
	if config == nil {
		config = &DisruptionConfig{}
	}
	if config.KeyCount <= 0 {
		config.KeyCount = DefaultKeyCount
	}
	if config.Workers <= 0 {
		config.Workers = runtime.GOMAXPROCS(0)
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 4096
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DisruptionService{
		config:  config,
		metrics: recorder,
		logger:  logger,
	}
}

// Measure replays the configured number of keys
func (s *DisruptionService) Measure(ctx context.Context, ring *algorithm.Ring, mutation model.Mutation) (*model.DisruptionReport, error) {
	return s.MeasureN(ctx, ring, mutation, s.config.KeyCount)
}

// MeasureN snapshots ring twice, applies mutation to the second snapshot and
// counts the keys among keyCount whose owner description differs.
func (s *DisruptionService) MeasureN(ctx context.Context, ring *algorithm.Ring, mutation model.Mutation, keyCount int) (*model.DisruptionReport, error) {
	if keyCount <= 0 {
		return nil, rerrors.InvalidArgument("key count must be positive", nil).
			WithDetail("key_count", keyCount)
	}

	start := time.Now()

	before := ring.Clone()
	after := ring.Clone()
	if err := applyMutation(after, mutation); err != nil {
		return nil, err
	}

	s.logger.Info("Starting disruption check",
		zap.String("mutation", string(mutation.Kind)),
		zap.String("target", mutation.Target()),
		zap.Int("key_count", keyCount),
		zap.Int("virtual_nodes_before", before.TotalVirtualNodes()),
		zap.Int("virtual_nodes_after", after.TotalVirtualNodes()))

	changes, err := s.Replay(ctx, before, after, keyCount)
	if err != nil {
		return nil, err
	}

	ratio := float64(changes) / float64(keyCount)
	report := &model.DisruptionReport{
		Mutation:       mutation.Kind,
		Target:         mutation.Target(),
		KeyCount:       keyCount,
		Changes:        changes,
		Ratio:          ratio,
		Classification: model.Classify(ratio),
		Duration:       time.Since(start),
		After:          after.Summary(),
	}

	s.metrics.RecordDisruption(string(report.Mutation), string(report.Classification),
		report.Changes, report.Ratio, report.Duration.Seconds())

	s.logger.Info("Disruption check completed",
		zap.String("mutation", string(report.Mutation)),
		zap.String("target", report.Target),
		zap.Uint64("changes", report.Changes),
		zap.Float64("ratio", report.Ratio),
		zap.String("classification", string(report.Classification)),
		zap.Duration("duration", report.Duration))

	return report, nil
}

// Replay resolves keyCount keys of the seeded stream against both rings and
// returns how many resolve to owners with different descriptions. Hits are
// recorded on after only. Batches are cut from the stream in order, so the
// count does not depend on the number of workers.
func (s *DisruptionService) Replay(ctx context.Context, before, after *algorithm.Ring, keyCount int) (uint64, error) {
	type batch struct {
		stream *algorithm.KeyStream
		count  int
	}

	var changes atomic.Uint64
	batches := make(chan batch, s.config.Workers)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(batches)

		cursor := algorithm.NewKeyStream(s.config.KeySeed)
		for done := 0; done < keyCount; {
			n := min(s.config.BatchSize, keyCount-done)
			b := batch{stream: cursor.Fork(), count: n}
			cursor.Skip(n)
			done += n

			select {
			case batches <- b:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < s.config.Workers; w++ {
		g.Go(func() error {
			for b := range batches {
				if err := gctx.Err(); err != nil {
					return err
				}

				var local uint64
				for k := 0; k < b.count; k++ {
					hv := after.Hash(b.stream.Next())

					owner, err := after.LookupHash(hv)
					if err != nil {
						return fmt.Errorf("resolve key on mutated ring: %w", err)
					}
					previous, err := before.Locate(hv)
					if err != nil {
						return fmt.Errorf("resolve key on snapshot ring: %w", err)
					}
					if owner.Desc != previous.Desc {
						local++
					}
				}
				changes.Add(local)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}
	return changes.Load(), nil
}

func applyMutation(ring *algorithm.Ring, mutation model.Mutation) error {
	switch mutation.Kind {
	case model.MutationAdd:
		if mutation.Node == nil {
			return rerrors.InvalidArgument("add mutation requires a node", nil)
		}
		_, err := ring.Install(mutation.Node.Clone())
		return err
	case model.MutationRemove:
		_, err := ring.Remove(mutation.Address)
		return err
	default:
		return rerrors.InvalidArgument(fmt.Sprintf("unknown mutation kind %q", mutation.Kind), nil)
	}
}
