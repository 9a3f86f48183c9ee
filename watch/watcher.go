// Package watch reloads entities when files in their directories change.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/lifecycle"
)

// DefaultDebounce is how long the watcher waits for further changes before
// reloading.
const DefaultDebounce = 250 * time.Millisecond

// Target is what the watcher reloads.
type Target interface {
	InvalidateEntity(entityType, id string) int
	ReloadEntity(ctx context.Context, entityType, id string) (*multitenant.EntityContext, error)
	State(entityType, id string) lifecycle.State
}

// Outcome reports one debounced change.
type Outcome struct {
	Ref         multitenant.EntityRef
	Invalidated int
	Reloaded    bool
	Err         error
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger multitenant.Logger) Option {
	return func(w *Watcher) {
		w.logger = multitenant.LoggerOrNop(logger)
	}
}

// WithOutcome registers a callback invoked after each handled change.
func WithOutcome(fn func(Outcome)) Option {
	return func(w *Watcher) {
		w.onOutcome = fn
	}
}

// Watcher watches the directories of every enabled entity type under root.
// A change anywhere below <root>/<base path>/<id> invalidates that entity's
// cached resources and, if the entity is active, reloads it.
type Watcher struct {
	root      string
	defs      multitenant.DefinitionProvider
	target    Target
	debounce  time.Duration
	logger    multitenant.Logger
	onOutcome func(Outcome)

	watcher *fsnotify.Watcher
	ignore  []string

	mu      sync.Mutex
	started bool
	pending map[string]multitenant.EntityRef
	stopCh  chan struct{}
	done    chan struct{}
}

// New creates a Watcher over root.
func New(root string, defs multitenant.DefinitionProvider, target Target, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:     filepath.Clean(root),
		defs:     defs,
		target:   target,
		debounce: DefaultDebounce,
		logger:   multitenant.NopLogger(),
		watcher:  fw,
		ignore:   []string{".git", "node_modules", ".DS_Store"},
		pending:  make(map[string]multitenant.EntityRef),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start adds the entity directories and begins handling events until ctx
// is done or Close is called. Base paths that do not exist yet are skipped.
func (w *Watcher) Start(ctx context.Context) error {
	for _, def := range w.defs.Definitions() {
		if def.Disabled {
			continue
		}
		dir := filepath.Join(w.root, filepath.FromSlash(def.WithDefaults().BasePath))
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			w.logger.Debug("Entity base path not found, not watching", "entityType", def.Type, "dir", dir)
			continue
		}
		if err := w.watchDirRecursive(dir); err != nil {
			return err
		}
	}
	w.mu.Lock()
	w.started = true
	w.mu.Unlock()
	go w.watchLoop(ctx)
	return nil
}

// Close stops the watcher and waits for the event loop to exit.
func (w *Watcher) Close() error {
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
	err := w.watcher.Close()
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if started {
		<-w.done
	}
	return err
}

func (w *Watcher) watchDirRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignored(path) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) ignored(path string) bool {
	base := filepath.Base(path)
	for _, ignore := range w.ignore {
		if base == ignore {
			return true
		}
	}
	return false
}

// EntityFor maps a path below root to the entity owning it.
func (w *Watcher) EntityFor(path string) (multitenant.EntityRef, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return multitenant.EntityRef{}, false
	}
	rel = filepath.ToSlash(rel)

	for _, def := range w.defs.Definitions() {
		if def.Disabled {
			continue
		}
		base := strings.Trim(def.WithDefaults().BasePath, "/") + "/"
		rest, ok := strings.CutPrefix(rel, base)
		if !ok {
			continue
		}
		id, _, _ := strings.Cut(rest, "/")
		if id == "" || strings.HasPrefix(id, ".") {
			return multitenant.EntityRef{}, false
		}
		return multitenant.EntityRef{Type: def.Type, ID: id}, true
	}
	return multitenant.EntityRef{}, false
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer close(w.done)

	timer := time.NewTimer(0)
	<-timer.C

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.ignored(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.watchDirRecursive(event.Name)
				}
			}
			ref, ok := w.EntityFor(event.Name)
			if !ok {
				continue
			}
			w.mu.Lock()
			w.pending[ref.Key()] = ref
			w.mu.Unlock()
			timer.Reset(w.debounce)

		case <-timer.C:
			w.mu.Lock()
			refs := w.pending
			w.pending = make(map[string]multitenant.EntityRef)
			w.mu.Unlock()
			for _, ref := range refs {
				w.handle(ctx, ref)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ref multitenant.EntityRef) {
	out := Outcome{Ref: ref, Invalidated: w.target.InvalidateEntity(ref.Type, ref.ID)}
	if w.target.State(ref.Type, ref.ID) == lifecycle.StateActive {
		_, out.Err = w.target.ReloadEntity(ctx, ref.Type, ref.ID)
		out.Reloaded = out.Err == nil
		if out.Err != nil {
			w.logger.Warn("Entity reload after file change failed", "entityType", ref.Type, "entityID", ref.ID, "error", out.Err)
		} else {
			w.logger.Info("Entity reloaded after file change", "entityType", ref.Type, "entityID", ref.ID)
		}
	}
	if w.onOutcome != nil {
		w.onOutcome(out)
	}
}
