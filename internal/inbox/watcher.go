// Package inbox polls an S3 bucket for fresh Zoom exports and cleans them
// unattended. Every object is processed exactly once: the run store keeps a
// processed-key set, and the cleaned dataset is written back next to the
// original under processed/. When several instances share a bucket, a Redis
// lock keeps their sweeps from overlapping.
package inbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/plutus/webengage-pipeline/internal/config"
	"github.com/plutus/webengage-pipeline/internal/pipeline"
	"github.com/plutus/webengage-pipeline/internal/pkg/distlock"
	"github.com/plutus/webengage-pipeline/internal/runstore"
	"github.com/plutus/webengage-pipeline/internal/webengage"
)

type Watcher struct {
	s3Client *s3.Client
	store    runstore.Store
	lock     *distlock.Lock
	bucket   string
	prefix   string
	profile  pipeline.Profile
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	trigger  chan struct{}

	// Sweep state, written by the sweep goroutine and read by the status
	// handler. Always accessed atomically.
	lastRunAt int64 // unixnano, 0 until the first sweep
	healthy   int32
	running   int32
}

// NewWatcher builds a watcher for the configured bucket. lockClient may be
// nil; without it sweeps are serialized only within this process.
func NewWatcher(store runstore.Store, prof pipeline.Profile, cfg config.InboxConfig, lockClient *redis.Client) (*Watcher, error) {
	ctx := context.Background()

	var awsCfg aws.Config
	var err error
	if profile := cfg.GetAWSProfile(); profile != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
			awsconfig.WithSharedConfigProfile(profile),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	interval := cfg.Interval()
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	wt := &Watcher{
		s3Client: s3.NewFromConfig(awsCfg),
		store:    store,
		bucket:   cfg.S3Bucket,
		prefix:   cfg.Prefix,
		profile:  prof,
		interval: interval,
		healthy:  1,
		trigger:  make(chan struct{}, 1),
	}
	if lockClient != nil {
		wt.lock = distlock.New(lockClient, "inbox_sweep", interval)
	}
	return wt, nil
}

func (wt *Watcher) Start() {
	wt.ctx, wt.cancel = context.WithCancel(context.Background())
	go func() {
		wt.runOnce()
		ticker := time.NewTicker(wt.interval)
		defer ticker.Stop()
		for {
			select {
			case <-wt.ctx.Done():
				return
			case <-ticker.C:
				wt.runOnce()
			case <-wt.trigger:
				wt.runOnce()
			}
		}
	}()
}

func (wt *Watcher) Stop() {
	if wt.cancel != nil {
		wt.cancel()
	}
}

// ManualTrigger queues an immediate sweep without waiting for the ticker.
func (wt *Watcher) ManualTrigger() {
	select {
	case wt.trigger <- struct{}{}:
	default:
	}
}

func (wt *Watcher) IsHealthy() bool { return atomic.LoadInt32(&wt.healthy) == 1 }
func (wt *Watcher) IsRunning() bool { return atomic.LoadInt32(&wt.running) == 1 }

// LastRunAt is the wall time of the most recent sweep, zero before the first.
func (wt *Watcher) LastRunAt() time.Time {
	ns := atomic.LoadInt64(&wt.lastRunAt)
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// runOnce executes one sweep: list the bucket, clean every export not yet
// seen, and record each one as a run.
func (wt *Watcher) runOnce() {
	if !atomic.CompareAndSwapInt32(&wt.running, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&wt.running, 0)

	ctx := wt.ctx
	atomic.StoreInt64(&wt.lastRunAt, time.Now().UnixNano())
	atomic.StoreInt32(&wt.healthy, 1)

	held := false
	if wt.lock != nil {
		ok, err := wt.lock.TryAcquire(ctx)
		if err != nil {
			// Sweep anyway: the processed-key set still prevents
			// double cleaning, the lock only avoids wasted work.
			log.Printf("[inbox] sweep lock: %v", err)
		} else if !ok {
			log.Printf("[inbox] sweep already running on another instance, skipping")
			return
		} else {
			held = true
			defer wt.lock.Release(ctx)
		}
	}

	paginator := s3.NewListObjectsV2Paginator(wt.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(wt.bucket),
		Prefix: aws.String(wt.prefix),
	})

	processed := 0
	for paginator.HasMorePages() {
		if ctx.Err() != nil {
			return
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			log.Printf("[inbox] list S3 objects error: %v", err)
			atomic.StoreInt32(&wt.healthy, 0)
			return
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			size := int64(0)
			if obj.Size != nil {
				size = *obj.Size
			}
			if !eligible(key, size) {
				continue
			}

			seen, err := wt.store.IsProcessed(ctx, key)
			if err != nil {
				log.Printf("[inbox] processed lookup %s: %v", key, err)
				continue
			}
			if seen {
				continue
			}

			if held {
				// Each export renews the lock so a long backlog
				// cannot outlive the TTL mid-sweep.
				if err := wt.lock.Extend(ctx); err != nil {
					log.Printf("[inbox] sweep lock lost, stopping early: %v", err)
					return
				}
			}
			if err := wt.processObject(ctx, key); err != nil {
				log.Printf("[inbox] process %s error: %v", key, err)
				continue
			}
			processed++
		}
	}

	if processed > 0 {
		log.Printf("[inbox] cleaned %d new exports", processed)
	}
}

// eligible filters bucket listings down to raw Zoom exports: CSVs outside
// processed/ with actual content.
func eligible(key string, size int64) bool {
	if size == 0 {
		return false
	}
	if strings.Contains(key, "processed/") {
		return false
	}
	return strings.HasSuffix(strings.ToLower(key), ".csv")
}

// cleanedKey places the output next to the source, under processed/ and
// with a -clean suffix so reruns never mistake it for input.
func cleanedKey(key string) string {
	dir, file := path.Split(key)
	stem := strings.TrimSuffix(file, path.Ext(file))
	return dir + "processed/" + stem + "-clean.csv"
}

// processObject downloads one export, runs the pipeline, uploads the clean
// dataset, and records the run. The key is marked processed in every
// terminal state so a bad export cannot wedge the sweep loop.
func (wt *Watcher) processObject(ctx context.Context, key string) error {
	log.Printf("[inbox] processing %s", key)

	getOutput, err := wt.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(wt.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("get S3 object: %w", err)
	}
	defer getOutput.Body.Close()

	run, artifacts, err := wt.clean(getOutput.Body, "s3://"+wt.bucket+"/"+key)
	if err != nil {
		return err
	}

	if run.Status == runstore.StatusSucceeded {
		outKey := cleanedKey(key)
		_, putErr := wt.s3Client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(wt.bucket),
			Key:         aws.String(outKey),
			Body:        bytes.NewReader(artifacts.Dataset),
			ContentType: aws.String("text/csv"),
		})
		if putErr != nil {
			log.Printf("[inbox] upload %s failed: %v", outKey, putErr)
		} else {
			log.Printf("[inbox] completed %s -> %s: rows=%d", key, outKey, run.Rows)
		}
	} else {
		log.Printf("[inbox] rejected %s: %s", key, run.Error)
	}

	if err := wt.store.SaveRun(ctx, run, artifacts); err != nil {
		log.Printf("[inbox] save run for %s: %v", key, err)
	}
	if err := wt.store.MarkProcessed(ctx, key); err != nil {
		log.Printf("[inbox] mark processed %s: %v", key, err)
	}
	return nil
}

// clean runs the pipeline over one export stream and shapes the outcome as
// a run record. Fatal gate errors produce a failed run, not a watcher error.
func (wt *Watcher) clean(r io.Reader, source string) (*runstore.Run, *runstore.Artifacts, error) {
	res, err := pipeline.RunCSV(r, wt.profile)
	if err != nil {
		return &runstore.Run{
			ID:        uuid.NewString(),
			Profile:   wt.profile.Name,
			Source:    source,
			Status:    runstore.StatusFailed,
			Error:     err.Error(),
			CreatedAt: time.Now().UTC(),
		}, nil, nil
	}

	dataset, err := res.Table.CSV()
	if err != nil {
		return nil, nil, fmt.Errorf("encode dataset: %w", err)
	}
	reportJSON, err := json.Marshal(res.Report)
	if err != nil {
		return nil, nil, fmt.Errorf("encode report: %w", err)
	}
	payloads, err := json.Marshal(webengage.Build(res))
	if err != nil {
		return nil, nil, fmt.Errorf("encode payloads: %w", err)
	}

	run := &runstore.Run{
		ID:        res.Report.RunID,
		Profile:   wt.profile.Name,
		Source:    source,
		Status:    runstore.StatusSucceeded,
		Rows:      len(res.Table.Rows),
		Report:    reportJSON,
		CreatedAt: time.Now().UTC(),
	}
	artifacts := &runstore.Artifacts{
		Dataset:  dataset,
		Payloads: payloads,
	}
	return run, artifacts, nil
}
