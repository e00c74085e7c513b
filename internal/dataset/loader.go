package dataset

import (
	"context"
	"sync"
	"sync/atomic"
)

type featureRecord struct {
	id       int64
	features []float64
}

// LoadFeatures reads every shard on numWorkers goroutines, extracts a
// feature vector per image, and returns them keyed by image id. Images that
// fail to decode are skipped; the count of skips is returned. When the same
// id appears in several shards the record read last wins.
func LoadFeatures(ctx context.Context, shards []string, numWorkers int) (map[int64][]float64, int, error) {
	if numWorkers <= 0 {
		numWorkers = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan string)
	records := make(chan featureRecord)
	errCh := make(chan error, numWorkers)
	var skipped atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case path, ok := <-jobs:
					if !ok {
						return
					}
					if err := loadShard(ctx, path, records, &skipped); err != nil {
						select {
						case errCh <- err:
						default:
						}
						cancel()
						return
					}
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, path := range shards {
			select {
			case <-ctx.Done():
				return
			case jobs <- path:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(records)
	}()

	features := make(map[int64][]float64)
	for rec := range records {
		features[rec.id] = rec.features
	}

	select {
	case err := <-errCh:
		return nil, 0, err
	default:
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	return features, int(skipped.Load()), nil
}

func loadShard(ctx context.Context, path string, records chan<- featureRecord, skipped *atomic.Int64) error {
	samples, errCh := StreamShard(ctx, path)
	for sample := range samples {
		feats, err := ExtractFeatures(sample.Image)
		if err != nil {
			skipped.Add(1)
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case records <- featureRecord{id: sample.ID, features: feats}:
		}
	}
	if err := <-errCh; err != nil {
		return err
	}
	return nil
}
