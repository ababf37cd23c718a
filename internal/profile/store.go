package profile

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/bot-dashboard/internal/slot"
)

// DefaultAutosaveWindow is the trailing-edge debounce applied to user edits.
const DefaultAutosaveWindow = 250 * time.Millisecond

// Hooks are called by Apply after the form has been rewritten. Nil hooks are
// skipped.
type Hooks struct {
	// ParamPanel shows the parameter inputs of the given strategy.
	ParamPanel func(strategy string)
	// ChartSync points the chart at a symbol and interval.
	ChartSync func(symbol, interval string)
	// WeightLabels displays the normalized composite weights.
	WeightLabels func(w Weights)
}

// Option configures a Store.
type Option func(*Store)

// WithHooks sets the hooks Apply calls.
func WithHooks(h Hooks) Option {
	return func(s *Store) { s.hooks = h }
}

// WithAutosaveWindow overrides the autosave debounce.
func WithAutosaveWindow(d time.Duration) Option {
	return func(s *Store) { s.window = d }
}

// WithClock overrides the clock used to stamp created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithKey overrides the slot key.
func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// Store collects, applies and persists the operator configuration.
// Persistence failures are logged and swallowed.
type Store struct {
	form   *Form
	slot   slot.Store
	logger *zap.Logger
	hooks  Hooks
	key    string
	window time.Duration
	now    func() time.Time

	autosave *Debouncer
}

// NewStore creates a Store over form persisted in s.
func NewStore(form *Form, s slot.Store, logger *zap.Logger, opts ...Option) *Store {
	st := &Store{
		form:   form,
		slot:   s,
		logger: logger,
		key:    SlotKey,
		window: DefaultAutosaveWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(st)
	}
	st.autosave = NewDebouncer(st.window, func() { st.Save(context.Background()) })
	return st
}

// Form returns the form the store reads from.
func (s *Store) Form() *Form {
	return s.form
}

// SetHooks replaces the Apply hooks.
func (s *Store) SetHooks(h Hooks) {
	s.hooks = h
}

// Collect reads every field from the form. Unparseable or empty numbers fall
// back to their defaults.
func (s *Store) Collect() Record {
	values := s.form.Values()
	rec := DefaultRecord()

	for name, p := range rec.textFields() {
		if v, ok := values[name]; ok {
			*p = strings.TrimSpace(v)
		}
	}
	for name, p := range rec.numberFields() {
		if v, ok := parseNumber(strings.TrimSpace(values[name])); ok {
			*p = v
		}
	}
	for name, p := range rec.boolFields() {
		if v, ok := values[name]; ok {
			*p = parseBool(strings.TrimSpace(v))
		}
	}

	rec.Weights = NormalizeWeights(rec.WSMA, rec.WEMA, rec.WRSI, rec.WMACD)
	rec.CreatedAt = s.now().UnixMilli()
	return rec
}

// Apply writes rec back into the form without triggering edit listeners,
// then runs the hooks. A nil record is ignored.
func (s *Store) Apply(rec *Record) {
	if rec == nil {
		return
	}
	s.form.setAll(rec.values())

	if s.hooks.ParamPanel != nil {
		s.hooks.ParamPanel(rec.Strategy)
	}
	if s.hooks.ChartSync != nil {
		s.hooks.ChartSync(rec.Symbol, rec.ChartInterval)
	}
	if s.hooks.WeightLabels != nil {
		s.hooks.WeightLabels(NormalizeWeights(rec.WSMA, rec.WEMA, rec.WRSI, rec.WMACD))
	}
}

// Save persists the current form.
func (s *Store) Save(ctx context.Context) {
	rec := s.Collect()
	data, err := json.Marshal(rec)
	if err != nil {
		s.logger.Warn("Failed to encode profile", zap.Error(err))
		return
	}
	if err := s.slot.Put(ctx, s.key, data); err != nil {
		s.logger.Warn("Failed to save profile", zap.Error(err))
		return
	}
	s.logger.Debug("Profile saved", zap.String("key", s.key), zap.Int("bytes", len(data)))
}

// Load reads the persisted profile. It returns nil when nothing is stored or
// the stored document is unreadable; missing fields take their defaults.
func (s *Store) Load(ctx context.Context) *Record {
	data, err := s.slot.Get(ctx, s.key)
	if errors.Is(err, slot.ErrNotFound) {
		s.logger.Debug("No saved profile", zap.String("key", s.key))
		return nil
	}
	if err != nil {
		s.logger.Warn("Failed to read profile", zap.Error(err))
		return nil
	}
	if err := ValidateDocument(data); err != nil {
		s.logger.Warn("Ignoring invalid saved profile", zap.Error(err))
		return nil
	}

	rec := DefaultRecord()
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("Ignoring undecodable saved profile", zap.Error(err))
		return nil
	}
	rec.Weights = NormalizeWeights(rec.WSMA, rec.WEMA, rec.WRSI, rec.WMACD)
	return &rec
}

// Reset removes the persisted profile and drops any pending autosave.
func (s *Store) Reset(ctx context.Context) {
	s.autosave.Stop()
	if err := s.slot.Delete(ctx, s.key); err != nil {
		s.logger.Warn("Failed to reset profile", zap.Error(err))
		return
	}
	s.logger.Info("Profile reset", zap.String("key", s.key))
}

// ScheduleAutosave starts or restarts the autosave window.
func (s *Store) ScheduleAutosave() {
	s.autosave.Schedule()
}

// FlushAutosave writes a pending autosave now.
func (s *Store) FlushAutosave() {
	s.autosave.Flush()
}

// WireAutosave saves the profile after every burst of user edits.
func (s *Store) WireAutosave() {
	s.form.OnEdit(func(string, string) { s.autosave.Schedule() })
}

// Close writes any pending autosave.
func (s *Store) Close() {
	s.autosave.Flush()
}
