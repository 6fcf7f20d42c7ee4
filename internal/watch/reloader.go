package watch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/mapping/internal/configuration"
	"github.com/conduit-lang/mapping/internal/validation"
)

// Reload triggers
const (
	TriggerAPI    = "api"
	TriggerWatch  = "watch"
	TriggerRemote = "remote"
)

// Publisher sends reload events to other instances
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}

// Reloader rebuilds the configuration of a holder and announces the
// outcome. Reloads are serialized; a failed reload keeps the previous
// configuration.
type Reloader struct {
	holder    *configuration.Holder
	hub       *Hub
	publisher Publisher
	origin    string
	logger    *zap.Logger
	mu        sync.Mutex
}

// ReloaderOption configures a Reloader
type ReloaderOption func(*Reloader)

// WithHub announces reloads to the WebSocket clients of hub
func WithHub(hub *Hub) ReloaderOption {
	return func(r *Reloader) { r.hub = hub }
}

// WithPublisher announces local reloads to other instances
func WithPublisher(p Publisher) ReloaderOption {
	return func(r *Reloader) { r.publisher = p }
}

// WithReloaderLogger sets the logger
func WithReloaderLogger(logger *zap.Logger) ReloaderOption {
	return func(r *Reloader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReloader creates a reloader for holder
func NewReloader(holder *configuration.Holder, opts ...ReloaderOption) *Reloader {
	r := &Reloader{
		holder: holder,
		origin: uuid.NewString(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Origin identifies this instance in published events
func (r *Reloader) Origin() string {
	return r.origin
}

// Reload rebuilds the configuration. files lists the domain files that
// caused the reload, if known.
func (r *Reloader) Reload(ctx context.Context, trigger string, files []string) (*configuration.MappingConfiguration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	cfg, err := r.holder.Rebuild()

	event := &Event{
		Trigger:   trigger,
		Files:     files,
		Duration:  float64(time.Since(start).Microseconds()) / 1000,
		Timestamp: time.Now().Unix(),
		Origin:    r.origin,
	}
	if err != nil {
		event.Type = EventFailed
		event.Error = err.Error()
		var validationErrs *validation.Errors
		if errors.As(err, &validationErrs) {
			for _, f := range validationErrs.Failures {
				event.Failures = append(event.Failures, Failure{Type: f.Type, Property: f.Property, Message: f.Message})
			}
		}
		r.logger.Warn("configuration reload failed, keeping the previous configuration",
			zap.String("trigger", trigger), zap.Strings("files", files), zap.Error(err))
	} else {
		event.Type = EventReloaded
		event.ConfigurationID = cfg.ID()
		r.logger.Info("configuration reloaded",
			zap.String("trigger", trigger), zap.String("id", cfg.ID()), zap.Strings("files", files))
	}

	if r.hub != nil {
		r.hub.Publish(event)
	}
	if r.publisher != nil && trigger != TriggerRemote {
		if perr := r.publisher.Publish(ctx, event); perr != nil {
			r.logger.Warn("failed to publish reload event", zap.Error(perr))
		}
	}

	return cfg, err
}

// HandleRemote reloads after another instance reloaded successfully.
// Events of this instance and failed reloads are ignored.
func (r *Reloader) HandleRemote(ctx context.Context, event *Event) {
	if event.Origin == r.origin || event.Type != EventReloaded {
		return
	}
	r.logger.Debug("reloading after remote reload", zap.String("origin", event.Origin))
	_, _ = r.Reload(ctx, TriggerRemote, event.Files)
}

// Watch reloads whenever one of files changes, until ctx is cancelled
func (r *Reloader) Watch(ctx context.Context, files []string, opts ...WatcherOption) error {
	opts = append([]WatcherOption{WithWatcherLogger(r.logger)}, opts...)
	watcher, err := NewFileWatcher(files, func(changed []string) {
		_, _ = r.Reload(ctx, TriggerWatch, changed)
	}, opts...)
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		watcher.Stop()
		return err
	}

	go func() {
		<-ctx.Done()
		if err := watcher.Stop(); err != nil {
			r.logger.Warn("failed to stop file watcher", zap.Error(err))
		}
	}()
	return nil
}

// Listen reloads when other instances announce a reload on notifier
func (r *Reloader) Listen(ctx context.Context, notifier *RedisNotifier) error {
	return notifier.Subscribe(ctx, func(event *Event) {
		r.HandleRemote(ctx, event)
	})
}
