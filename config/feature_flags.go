package config

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Флаги для необязательных побочных эффектов начисления.
const (
	FeatureStreakDailyBonus = "streak.daily_bonus" // +daily_streak за новый активный день
	FeatureStreakMilestones = "streak.milestones"  // бонус ровно на 7/30/100 днях
	FeatureBadgeXPReward    = "badges.xp_reward"   // badge_reward при XPReward > 0
	FeatureLeaderboardCache = "leaderboard.cache"  // кеш ответов в Redis
)

// Feature is one toggle. All flags default to on.
type Feature struct {
	Name        string
	Description string
	Enabled     bool
}

var knownFeatures = []Feature{
	{Name: FeatureBadgeXPReward, Description: "Credit badge XP rewards to the ledger"},
	{Name: FeatureLeaderboardCache, Description: "Cache computed leaderboards in Redis"},
	{Name: FeatureStreakDailyBonus, Description: "Award daily_streak points when the streak advances"},
	{Name: FeatureStreakMilestones, Description: "Award streak_milestone bonuses"},
}

type FeatureFlagError struct {
	Feature string
}

func (e *FeatureFlagError) Error() string {
	return fmt.Sprintf("feature flag %q: unknown feature", e.Feature)
}

// FeatureFlags is read once at startup and may be flipped at runtime by
// tests and admin tooling.
type FeatureFlags struct {
	mu      sync.RWMutex
	enabled map[string]bool
}

// LoadFeatureFlags reads FEATURE_<NAME>=true|false overrides,
// e.g. FEATURE_STREAK_DAILY_BONUS=false.
func LoadFeatureFlags() *FeatureFlags {
	return loadFeatureFlags(newEnv())
}

func loadFeatureFlags(env *viper.Viper) *FeatureFlags {
	ff := &FeatureFlags{enabled: make(map[string]bool, len(knownFeatures))}
	for _, f := range knownFeatures {
		key := featureEnvKey(f.Name)
		env.SetDefault(key, true)
		ff.enabled[f.Name] = env.GetBool(key)
	}
	return ff
}

// "streak.daily_bonus" -> "FEATURE_STREAK_DAILY_BONUS"
func featureEnvKey(name string) string {
	return "FEATURE_" + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))
}

// IsEnabled is false for unknown names.
func (ff *FeatureFlags) IsEnabled(name string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	return ff.enabled[name]
}

func (ff *FeatureFlags) EnableFeature(name string) error  { return ff.set(name, true) }
func (ff *FeatureFlags) DisableFeature(name string) error { return ff.set(name, false) }

func (ff *FeatureFlags) set(name string, on bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if _, ok := ff.enabled[name]; !ok {
		return &FeatureFlagError{Feature: name}
	}
	ff.enabled[name] = on
	return nil
}

// GetAllFeatures lists every flag sorted by name.
func (ff *FeatureFlags) GetAllFeatures() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()
	out := slices.Clone(knownFeatures)
	for i := range out {
		out[i].Enabled = ff.enabled[out[i].Name]
	}
	return out
}
