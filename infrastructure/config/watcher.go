package config

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// NewPolicyProvider builds the sync policy source for the process: a
// file-backed hot-reloading watcher when PolicyFile is set, otherwise the
// static policy loaded from the environment. The returned stop function
// releases the watcher's resources.
func NewPolicyProvider(cfg *Config, logger *zap.Logger) (PolicyProvider, func(), error) {
	if cfg.PolicyFile == "" {
		return StaticPolicy{P: cfg.Policy}, func() {}, nil
	}
	watcher, err := NewPolicyWatcher(cfg.PolicyFile, cfg.Policy, logger)
	if err != nil {
		return nil, nil, err
	}
	return watcher, watcher.Stop, nil
}

// PolicyWatcher hot-reloads the sync policy from a YAML file. It implements
// PolicyProvider; readers always see a complete, validated policy.
type PolicyWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *zap.Logger

	mu       sync.RWMutex
	current  SyncPolicy
	onChange []func(SyncPolicy)

	stopCh  chan struct{}
	stopped sync.Once
}

// NewPolicyWatcher creates a watcher seeded with initial. If the file
// exists it is loaded immediately; load failures fall back to initial.
func NewPolicyWatcher(path string, initial SyncPolicy, logger *zap.Logger) (*PolicyWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	pw := &PolicyWatcher{
		path:    path,
		watcher: watcher,
		logger:  logger,
		current: initial,
		stopCh:  make(chan struct{}),
	}

	if policy, err := loadPolicyFile(path, initial); err == nil {
		pw.current = policy
	} else if !os.IsNotExist(err) {
		logger.Warn("Failed to load policy file, using defaults",
			zap.String("path", path),
			zap.Error(err),
		)
	}

	// Watch the directory so editor rename-on-save is still observed
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	go pw.watchLoop()
	return pw, nil
}

// Policy implements PolicyProvider
func (pw *PolicyWatcher) Policy() SyncPolicy {
	pw.mu.RLock()
	defer pw.mu.RUnlock()
	return pw.current
}

// OnChange registers a callback invoked after each successful reload
func (pw *PolicyWatcher) OnChange(fn func(SyncPolicy)) {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	pw.onChange = append(pw.onChange, fn)
}

// Stop shuts down the watcher
func (pw *PolicyWatcher) Stop() {
	pw.stopped.Do(func() {
		close(pw.stopCh)
		pw.watcher.Close()
	})
}

func (pw *PolicyWatcher) watchLoop() {
	for {
		select {
		case <-pw.stopCh:
			return
		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(pw.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pw.reload()
		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			pw.logger.Warn("Policy watcher error", zap.Error(err))
		}
	}
}

func (pw *PolicyWatcher) reload() {
	pw.mu.Lock()
	base := pw.current
	pw.mu.Unlock()

	policy, err := loadPolicyFile(pw.path, base)
	if err != nil {
		pw.logger.Warn("Failed to reload policy file, keeping current policy",
			zap.String("path", pw.path),
			zap.Error(err),
		)
		return
	}

	pw.mu.Lock()
	pw.current = policy
	callbacks := make([]func(SyncPolicy), len(pw.onChange))
	copy(callbacks, pw.onChange)
	pw.mu.Unlock()

	pw.logger.Info("Sync policy reloaded",
		zap.String("path", pw.path),
		zap.Duration("pushInterval", policy.PushInterval),
		zap.Duration("pollInterval", policy.PollInterval),
		zap.Int("compactionMaxTransactions", policy.CompactionMaxTransactions),
	)

	for _, fn := range callbacks {
		fn(policy)
	}
}

// policyFile mirrors SyncPolicy with human-readable duration strings
type policyFile struct {
	RecorderDebounce          string `yaml:"recorderDebounce"`
	PushInterval              string `yaml:"pushInterval"`
	PollInterval              string `yaml:"pollInterval"`
	PollWindow                string `yaml:"pollWindow"`
	CompactionMaxTransactions *int   `yaml:"compactionMaxTransactions"`
	CompactionMaxAge          string `yaml:"compactionMaxAge"`
	MaxContextItemBytes       *int   `yaml:"maxContextItemBytes"`
}

// loadPolicyFile reads the YAML policy file, overlaying values on top of
// base. Missing fields keep their base value.
func loadPolicyFile(path string, base SyncPolicy) (SyncPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}

	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return base, err
	}

	policy := base
	if err := overlayDuration(&policy.RecorderDebounce, file.RecorderDebounce); err != nil {
		return base, err
	}
	if err := overlayDuration(&policy.PushInterval, file.PushInterval); err != nil {
		return base, err
	}
	if err := overlayDuration(&policy.PollInterval, file.PollInterval); err != nil {
		return base, err
	}
	if err := overlayDuration(&policy.PollWindow, file.PollWindow); err != nil {
		return base, err
	}
	if err := overlayDuration(&policy.CompactionMaxAge, file.CompactionMaxAge); err != nil {
		return base, err
	}
	if file.CompactionMaxTransactions != nil {
		policy.CompactionMaxTransactions = *file.CompactionMaxTransactions
	}
	if file.MaxContextItemBytes != nil {
		policy.MaxContextItemBytes = *file.MaxContextItemBytes
	}

	if err := policy.Validate(); err != nil {
		return base, err
	}
	return policy, nil
}

func overlayDuration(dst *time.Duration, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
