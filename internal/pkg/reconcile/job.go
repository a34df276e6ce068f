// Package reconcile finds payments the gateway settled but the webhook never
// recorded, and replays them through the public webhook endpoint.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/errgroup"

	"github.com/ManuelReschke/EventFox/internal/pkg/archive"
	"github.com/ManuelReschke/EventFox/internal/pkg/gateway"
	"github.com/ManuelReschke/EventFox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/EventFox/internal/pkg/payment"
)

const (
	DefaultDeadline    = 30 * time.Minute
	DefaultConcurrency = 4

	LivePath = "/payment-webhook"
	TestPath = "/payment-webhook-test"

	upToDateMessage = "All payments are already up to date."
)

// Ledger lists the transactions the gateway knows about.
type Ledger interface {
	ListTransactions(ctx context.Context, merchantID string, start, end time.Time, set payment.CredentialSet) ([]gateway.Transaction, error)
}

// Store answers which transactions are settled locally. Pending payments
// are not settled and get replayed.
type Store interface {
	SettledTransactionIDs(ctx context.Context, env string, ids []string) (map[string]struct{}, error)
}

// Replayer delivers a rebuilt callback form to a webhook path.
type Replayer interface {
	Replay(ctx context.Context, path string, form url.Values) error
}

// Archiver keeps a copy of every fetched ledger. *archive.Client implements it.
type Archiver interface {
	PutSnapshot(ctx context.Context, objectKey string, body []byte) (*archive.UploadResult, error)
}

type Counters interface {
	Incr(ctx context.Context, env, event string) error
}

type Request struct {
	Start        time.Time
	End          time.Time
	UseAlternate bool
}

type Summary struct {
	Synced  int    `json:"synced"`
	Missing int    `json:"missing"`
	Failed  int    `json:"failed"`
	Message string `json:"message"`
}

type Job struct {
	ledger      Ledger
	store       Store
	replayer    Replayer
	creds       payment.Credentials
	hashes      payment.HashVerifier
	concurrency int
	deadline    time.Duration
	archiver    Archiver
	counters    Counters
	now         func() time.Time
}

func NewJob(ledger Ledger, store Store, replayer Replayer, creds payment.Credentials) *Job {
	return &Job{
		ledger:      ledger,
		store:       store,
		replayer:    replayer,
		creds:       creds,
		hashes:      payment.NewHashVerifier(),
		concurrency: DefaultConcurrency,
		deadline:    DefaultDeadline,
		now:         time.Now,
	}
}

func (j *Job) WithConcurrency(n int) *Job {
	if n > 0 {
		j.concurrency = n
	}
	return j
}

func (j *Job) WithDeadline(d time.Duration) *Job {
	if d > 0 {
		j.deadline = d
	}
	return j
}

func (j *Job) WithArchiver(a Archiver) *Job {
	j.archiver = a
	return j
}

func (j *Job) WithCounters(c Counters) *Job {
	j.counters = c
	return j
}

// Run reconciles the ledger window of req. Only fetching the ledger or
// reading local state is fatal; individual replay failures are counted.
func (j *Job) Run(ctx context.Context, req Request) (*Summary, error) {
	if req.Start.IsZero() || req.End.IsZero() || req.End.Before(req.Start) {
		return nil, payment.ErrInvalidDateRange
	}
	ctx, cancel := context.WithTimeout(ctx, j.deadline)
	defer cancel()

	set := j.creds.Select(req.UseAlternate)
	log.Infof("[Reconcile] Fetching %s ledger from %s to %s",
		set.Label, req.Start.Format("2006-01-02"), req.End.Format("2006-01-02"))

	txs, err := j.ledger.ListTransactions(ctx, j.creds.MerchantID, req.Start, req.End, set)
	if err != nil {
		return nil, err
	}
	j.archive(ctx, set, req, txs)

	gaps, err := j.findGaps(ctx, set, txs)
	if err != nil {
		return nil, fmt.Errorf("load recorded transactions: %w", err)
	}

	summary := &Summary{Missing: len(gaps)}
	if len(gaps) == 0 {
		summary.Message = upToDateMessage
		log.Infof("[Reconcile] %d ledger entries, nothing missing", len(txs))
		return summary, nil
	}

	path := LivePath
	if set.Env != j.creds.EndpointEnv() {
		path = TestPath
	}

	var synced, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(j.concurrency)
	for _, tx := range gaps {
		g.Go(func() error {
			if err := j.replay(ctx, set, path, tx); err != nil {
				failed.Add(1)
				log.Errorf("[Reconcile] Replay of %s failed: %v", tx.TransactionID, err)
				return nil
			}
			synced.Add(1)
			j.count(ctx, set.Env, counter.Replayed)
			return nil
		})
	}
	_ = g.Wait()

	summary.Synced = int(synced.Load())
	summary.Failed = int(failed.Load())
	summary.Message = fmt.Sprintf("%d/%d records synced.", summary.Synced, summary.Missing)
	log.Infof("[Reconcile] %s (%d failed)", summary.Message, summary.Failed)
	return summary, nil
}

func (j *Job) findGaps(ctx context.Context, set payment.CredentialSet, txs []gateway.Transaction) ([]gateway.Transaction, error) {
	ids := make([]string, 0, len(txs))
	unique := make([]gateway.Transaction, 0, len(txs))
	seen := make(map[string]struct{}, len(txs))
	for _, tx := range txs {
		if tx.TransactionID == "" {
			continue
		}
		if _, dup := seen[tx.TransactionID]; dup {
			continue
		}
		seen[tx.TransactionID] = struct{}{}
		ids = append(ids, tx.TransactionID)
		unique = append(unique, tx)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	existing, err := j.store.SettledTransactionIDs(ctx, string(set.Env), ids)
	if err != nil {
		return nil, err
	}
	gaps := make([]gateway.Transaction, 0)
	for _, tx := range unique {
		if _, ok := existing[tx.TransactionID]; !ok {
			gaps = append(gaps, tx)
		}
	}
	return gaps, nil
}

func (j *Job) replay(ctx context.Context, set payment.CredentialSet, path string, tx gateway.Transaction) error {
	cb := tx.Callback()
	fields, err := cb.Fields()
	if err != nil {
		return err
	}
	cb.Hash = j.hashes.CallbackHash(set, fields)
	return j.replayer.Replay(ctx, path, cb.Form())
}

func (j *Job) archive(ctx context.Context, set payment.CredentialSet, req Request, txs []gateway.Transaction) {
	if j.archiver == nil {
		return
	}
	body, err := json.Marshal(map[string]interface{}{
		"environment":  set.Env,
		"credentials":  set.Label,
		"start_date":   req.Start.Format("2006-01-02"),
		"end_date":     req.End.Format("2006-01-02"),
		"transactions": txs,
	})
	if err != nil {
		log.Warnf("[Reconcile] Could not encode ledger snapshot: %v", err)
		return
	}
	key := archive.SnapshotKey(string(set.Env), req.Start, req.End, j.now().UTC())
	if _, err := j.archiver.PutSnapshot(ctx, key, body); err != nil {
		log.Warnf("[Reconcile] Could not archive ledger snapshot: %v", err)
	}
}

func (j *Job) count(ctx context.Context, env payment.Environment, event string) {
	if j.counters == nil {
		return
	}
	if err := j.counters.Incr(ctx, string(env), event); err != nil {
		log.Warnf("[Reconcile] Counter %s not recorded: %v", event, err)
	}
}
