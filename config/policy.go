package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/alem-hub/alem-gamification/internal/domain/ledger"
)

// ══════════════════════════════════════════════════════════════════════════════
// POINT POLICY FILE
//
//	points:
//	  assessment_completion: 10
//	  project_award: 150
//	milestones:
//	  "7": 25
//	  "30": 75
//
// Points not listed keep their defaults. A milestones section replaces the
// default milestone table as a whole. Any value can be overridden from the
// environment, e.g. GAMIFICATION_POINTS_SESSION_ATTENDANCE=8.
// ══════════════════════════════════════════════════════════════════════════════

type policyDoc struct {
	Points     map[string]int `mapstructure:"points"`
	Milestones map[string]int `mapstructure:"milestones"`
}

// PolicyStore holds the point policy currently in effect and implements
// ledger.PolicyProvider. Reads are lock-free.
type PolicyStore struct {
	v       *viper.Viper
	current atomic.Pointer[ledger.Policy]
	logger  *slog.Logger

	// OnReload is called after a successful hot reload.
	OnReload func(ledger.Policy)
}

// LoadPolicy reads the policy from path (yaml, toml or json). An empty path
// yields the defaults plus environment overrides.
func LoadPolicy(path string, logger *slog.Logger) (*PolicyStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	v := viper.New()
	setPolicyDefaults(v)

	v.SetEnvPrefix("GAMIFICATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	}

	s := &PolicyStore{v: v, logger: logger.With("component", "policy")}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func setPolicyDefaults(v *viper.Viper) {
	for t, points := range ledger.DefaultPolicy().Points {
		v.SetDefault("points."+t.String(), points)
	}
}

// Current implements ledger.PolicyProvider.
func (s *PolicyStore) Current() ledger.Policy {
	return *s.current.Load()
}

// Reload re-reads the file. On any error the previous policy stays in effect.
func (s *PolicyStore) Reload() error {
	if s.v.ConfigFileUsed() != "" {
		if err := s.v.ReadInConfig(); err != nil {
			return fmt.Errorf("read policy file: %w", err)
		}
	}

	var doc policyDoc
	if err := s.v.Unmarshal(&doc); err != nil {
		return fmt.Errorf("parse policy: %w", err)
	}

	policy, err := doc.policy()
	if err != nil {
		return err
	}
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}

	s.current.Store(&policy)
	return nil
}

// Watch enables hot reload of the policy file. No-op without a file.
func (s *PolicyStore) Watch() {
	if s.v.ConfigFileUsed() == "" {
		return
	}
	s.v.OnConfigChange(s.handleChange)
	s.v.WatchConfig()
	s.logger.Info("watching policy file", "path", s.v.ConfigFileUsed())
}

func (s *PolicyStore) handleChange(e fsnotify.Event) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}
	if err := s.Reload(); err != nil {
		s.logger.Error("policy reload failed, keeping previous policy", "path", e.Name, "error", err)
		return
	}

	policy := s.Current()
	s.logger.Info("policy reloaded", "path", e.Name, "milestones", policy.MilestoneDays())
	if s.OnReload != nil {
		s.OnReload(policy)
	}
}

func (d policyDoc) policy() (ledger.Policy, error) {
	override := ledger.Policy{
		Points:     make(map[ledger.ActivityType]int, len(d.Points)),
		Milestones: make(map[int]int, len(d.Milestones)),
	}
	for name, points := range d.Points {
		override.Points[ledger.ActivityType(name)] = points
	}
	for days, bonus := range d.Milestones {
		n, err := strconv.Atoi(days)
		if err != nil {
			return ledger.Policy{}, fmt.Errorf("milestone %q: not a number of days", days)
		}
		override.Milestones[n] = bonus
	}
	return ledger.DefaultPolicy().Merge(override), nil
}

var _ ledger.PolicyProvider = (*PolicyStore)(nil)
