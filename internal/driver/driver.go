package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// ErrLockTimeout reports that an operation gave up waiting for the
// in-flight change to finish. Fatal to that operation only; the queue
// retries on its next tick.
var ErrLockTimeout = errors.New("timed out waiting for the operation lock")

const (
	defaultLockTimeout  = 50 * time.Second
	defaultTickInterval = time.Second
)

// Config configures a Driver. Zero values select defaults.
type Config struct {
	// Endpoint is the remote service base URL (ignored when Client set)
	Endpoint string
	Username string
	Password string
	// Client overrides the remote client, mainly for tests
	Client *Client
	// LockTimeout bounds waiting for the single-writer lock (default 50s)
	LockTimeout time.Duration
	// TickInterval is the queue poll period (default 1s)
	TickInterval time.Duration
	// DisableCache forces a remote read on every declaration fetch
	DisableCache bool
	// DisableHash skips requesting the integrity hash on declaration reads
	DisableHash bool
	// Host is stamped on tasks for provenance
	Host string
	// Logger defaults to slog.Default()
	Logger *slog.Logger
}

// Driver submits declarations to a remote declarative-config service
// that accepts one change at a time. It serializes writes behind a
// semaphore, caches the last-read declaration, and correlates local
// operations with server-assigned task ids through composite
// declaration identifiers.
type Driver struct {
	client       *Client
	log          *slog.Logger
	lockTimeout  time.Duration
	tickInterval time.Duration
	cacheEnabled bool
	hashEnabled  bool
	host         string

	// opLock admits exactly one read-modify-write cycle; the remote
	// service has no transaction model of its own
	opLock *semaphore.Weighted

	mu      sync.Mutex
	cache   map[string]interface{} // nil means "must fetch"
	pending []*Task
	errored []*Task
	taskIDs map[string]string // remote task id -> stable local handle
	seq     int

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewDriver creates a Driver. Call Start to run the queue loop.
func NewDriver(cfg Config) *Driver {
	client := cfg.Client
	if client == nil {
		client = NewClient(ClientConfig{
			Endpoint: cfg.Endpoint,
			Username: cfg.Username,
			Password: cfg.Password,
		})
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	lockTimeout := cfg.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = defaultTickInterval
	}

	return &Driver{
		client:       client,
		log:          log,
		lockTimeout:  lockTimeout,
		tickInterval: tick,
		cacheEnabled: !cfg.DisableCache,
		hashEnabled:  !cfg.DisableHash,
		host:         cfg.Host,
		opLock:       semaphore.NewWeighted(1),
		taskIDs:      make(map[string]string),
		stopped:      make(chan struct{}),
	}
}

// acquireOpLock admits the caller to the single read-modify-write slot,
// or fails with ErrLockTimeout after the configured bound. FIFO
// fairness among waiters is not guaranteed.
func (d *Driver) acquireOpLock(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.lockTimeout)
	defer cancel()
	if err := d.opLock.Acquire(ctx, 1); err != nil {
		return ErrLockTimeout
	}
	return nil
}

func (d *Driver) releaseOpLock() {
	d.opLock.Release(1)
}

// invalidateCache narrows cache validity; safe to call at any point
// since a race only costs an extra remote read.
func (d *Driver) invalidateCache() {
	d.mu.Lock()
	d.cache = nil
	d.mu.Unlock()
}

// GetDeclaration returns the remote declaration, from cache when
// possible. Callers always receive their own deep copy and may mutate
// it freely. Empty remote state normalizes to a minimal stub document.
func (d *Driver) GetDeclaration(ctx context.Context) (map[string]interface{}, error) {
	if d.cacheEnabled {
		d.mu.Lock()
		if d.cache != nil {
			snapshot := deepCopyObject(d.cache)
			d.mu.Unlock()
			return snapshot, nil
		}
		d.mu.Unlock()
	}

	decl, err := d.client.GetDeclaration(ctx, d.hashEnabled)
	if err != nil {
		return nil, err
	}
	if decl == nil {
		decl = stubDeclaration()
	}
	stripLockTokens(decl)

	if d.cacheEnabled {
		d.mu.Lock()
		d.cache = deepCopyObject(decl)
		d.mu.Unlock()
	}
	return decl, nil
}

// postDeclaration writes the declaration, tagged with the composite id.
// The cache is invalidated before the write so a mid-write failure never
// leaves a stale-but-fresh-looking snapshot, and again after, covering
// races with the in-flight request.
func (d *Driver) postDeclaration(ctx context.Context, decl map[string]interface{}, id DeclarationID, tenants []string) (string, error) {
	d.invalidateCache()
	decl["id"] = id.String()

	remoteID, err := d.client.PostDeclaration(ctx, decl, tenants)
	d.invalidateCache()
	if err != nil {
		return "", err
	}
	return remoteID, nil
}

// CreateApplications queues a create (or update, decided at submit time
// against the live declaration) for one or more rendered applications.
// Batched definitions share one declaration write.
func (d *Driver) CreateApplications(apps []Application) (*Task, error) {
	if len(apps) == 0 {
		return nil, fmt.Errorf("no applications to create")
	}

	task := newTask(OpCreate, d.host)
	task.createData = apps
	task.Tenant = apps[0].Tenant
	task.Application = apps[0].Name
	if apps[0].Metadata != nil {
		task.Name = apps[0].Metadata.Template
		task.Parameters = apps[0].Metadata.Parameters
	}
	d.enqueue(task)
	return task, nil
}

// DeleteApplications queues deletion of specific tenant/application
// pairs, or of every application when pairs is nil.
func (d *Driver) DeleteApplications(pairs [][2]string) (*Task, error) {
	op := OpDelete
	if pairs == nil {
		op = OpDeleteAll
	}
	task := newTask(op, d.host)
	task.deleteData = pairs
	if len(pairs) > 0 {
		task.Tenant = pairs[0][0]
		task.Application = pairs[0][1]
	}
	d.enqueue(task)
	return task, nil
}

// enqueue appends the task FIFO. An empty queue submits immediately;
// otherwise the caller gets a placeholder identifier right away and the
// background loop attempts the task after everything queued before it
// reaches a terminal state.
func (d *Driver) enqueue(task *Task) {
	d.mu.Lock()
	wasEmpty := len(d.pending) == 0
	d.pending = append(d.pending, task)
	if wasEmpty {
		task.Message = MessageInProgress
		d.mu.Unlock()
		go d.submit(task)
		return
	}
	task.ID = uuid.NewString()
	d.mu.Unlock()
}

// submit performs one task's read-modify-write cycle. Failures are
// recorded on the task and the task moves to the errored list; the
// queue keeps running.
func (d *Driver) submit(task *Task) {
	ctx := context.Background()

	err := func() error {
		if err := d.acquireOpLock(ctx); err != nil {
			return err
		}
		defer d.releaseOpLock()

		switch task.Operation {
		case OpCreate, OpUpdate:
			return d.submitCreate(ctx, task)
		case OpDelete, OpDeleteAll:
			return d.submitDelete(ctx, task)
		default:
			return fmt.Errorf("cannot submit operation %q", task.Operation)
		}
	}()

	if err != nil {
		d.failTask(task, err)
	}
}

func (d *Driver) submitCreate(ctx context.Context, task *Task) error {
	decl, err := d.GetDeclaration(ctx)
	if err != nil {
		return err
	}

	op := OpCreate
	for _, app := range task.createData {
		if stitchApplication(decl, app) {
			op = OpUpdate
		}
	}
	d.mu.Lock()
	task.Operation = op
	d.mu.Unlock()

	id := newDeclarationID(op, task.createData[0].Tenant, task.createData[0].Name, d.nextSequence())
	d.log.Info("submitting declaration", "operation", id.describe(), "id", id.String())

	remoteID, err := d.postDeclaration(ctx, decl, id, tenantsOf(task.createData))
	if err != nil {
		return err
	}
	d.recordRemoteID(task, remoteID)
	return nil
}

func (d *Driver) submitDelete(ctx context.Context, task *Task) error {
	decl, err := d.GetDeclaration(ctx)
	if err != nil {
		return err
	}

	var tenants []string
	if task.deleteData == nil {
		tenants = removeAllApplications(decl)
	} else {
		for _, pair := range task.deleteData {
			removeApplication(decl, pair[0], pair[1])
			tenants = append(tenants, pair[0])
		}
	}

	id := newDeclarationID(task.Operation, task.Tenant, task.Application, d.nextSequence())
	d.log.Info("submitting declaration", "operation", id.describe(), "id", id.String())

	remoteID, err := d.postDeclaration(ctx, decl, id, uniqueStrings(tenants))
	if err != nil {
		return err
	}
	d.recordRemoteID(task, remoteID)
	return nil
}

// recordRemoteID maps the server-assigned task id back to the caller's
// stable handle, assigning the remote id as the handle when the task was
// submitted immediately and never received a placeholder.
func (d *Driver) recordRemoteID(task *Task, remoteID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if task.ID == "" {
		task.ID = remoteID
	}
	d.taskIDs[remoteID] = task.ID
}

// failTask marks the task errored, moves it off the queue, and logs.
// Once a task is accepted into the queue its errors surface via status
// polling, never as a thrown submission error.
func (d *Driver) failTask(task *Task, err error) {
	var remote *RemoteError
	code := 500
	if errors.As(err, &remote) {
		code = remote.StatusCode
	}

	d.mu.Lock()
	task.Message = MessageError
	task.Code = code
	for i, queued := range d.pending {
		if queued == task {
			d.pending = append(d.pending[:i], d.pending[i+1:]...)
			break
		}
	}
	d.errored = append(d.errored, task)
	d.mu.Unlock()

	d.log.Error("task submission failed", "operation", string(task.Operation),
		"tenant", task.Tenant, "application", task.Application, "error", err)
}

func (d *Driver) nextSequence() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	return d.seq
}

// ListApplications walks the declaration's tenant containers and
// reports every application, with the template metadata embedded at
// create time when present.
func (d *Driver) ListApplications(ctx context.Context) ([]AppSummary, error) {
	decl, err := d.GetDeclaration(ctx)
	if err != nil {
		return nil, err
	}

	var summaries []AppSummary
	for tenantName, rawTenant := range decl {
		tenant, ok := rawTenant.(map[string]interface{})
		if !ok || tenant["class"] != "Tenant" {
			continue
		}
		for appName, rawApp := range tenant {
			app, ok := rawApp.(map[string]interface{})
			if !ok || app["class"] != "Application" {
				continue
			}
			summary := AppSummary{Tenant: tenantName, Application: appName}
			if meta := embeddedMetadata(app); meta != nil {
				summary.Template, _ = meta["template"].(string)
				summary.Parameters, _ = meta["parameters"].(map[string]interface{})
			}
			summaries = append(summaries, summary)
		}
	}

	sort.Slice(summaries, func(a, b int) bool {
		if summaries[a].Tenant != summaries[b].Tenant {
			return summaries[a].Tenant < summaries[b].Tenant
		}
		return summaries[a].Application < summaries[b].Application
	})
	return summaries, nil
}
