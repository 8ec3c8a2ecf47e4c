package config

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// CostingPolicy carries the tunables that may change while the process runs.
type CostingPolicy struct {
	TaxRate            decimal.Decimal
	PieceWeightKg      decimal.Decimal
	ReconcileThreshold decimal.Decimal
}

type rawPolicy struct {
	TaxRate            string `mapstructure:"tax_rate"`
	PieceWeightKg      string `mapstructure:"piece_weight_kg"`
	ReconcileThreshold string `mapstructure:"reconcile_threshold"`
}

func DefaultCostingPolicy() CostingPolicy {
	return CostingPolicy{
		TaxRate:            decimal.RequireFromString("0.18"),
		PieceWeightKg:      decimal.RequireFromString("0.1"),
		ReconcileThreshold: decimal.RequireFromString("0.10"),
	}
}

// CostingPolicyHolder serves the current policy and reloads it when the
// backing costing.yml changes.
type CostingPolicyHolder struct {
	current atomic.Value // holds CostingPolicy

	mu        sync.Mutex
	listeners []func(CostingPolicy)
}

// NewStaticPolicyHolder returns a holder that never reloads.
func NewStaticPolicyHolder(p CostingPolicy) *CostingPolicyHolder {
	h := &CostingPolicyHolder{}
	h.current.Store(p)
	return h
}

func NewCostingPolicyHolder(log *zap.Logger) (*CostingPolicyHolder, error) {
	log = log.Named("config.costing")
	v := viper.New()

	v.SetConfigName("costing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/bakehouse")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("costing.tax_rate", "TAX_RATE")
	_ = v.BindEnv("costing.piece_weight_kg", "PIECE_WEIGHT_KG")
	_ = v.BindEnv("costing.reconcile_threshold", "RECONCILE_THRESHOLD")

	defaults := DefaultCostingPolicy()
	v.SetDefault("costing.tax_rate", defaults.TaxRate.String())
	v.SetDefault("costing.piece_weight_kg", defaults.PieceWeightKg.String())
	v.SetDefault("costing.reconcile_threshold", defaults.ReconcileThreshold.String())

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	policy, err := decodePolicy(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticPolicyHolder(policy)
	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodePolicy(v)
		if err != nil {
			log.Warn("costing policy reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.Set(updated)
		log.Info("costing policy reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *CostingPolicyHolder) Get() CostingPolicy {
	return h.current.Load().(CostingPolicy)
}

// Set stores p and notifies listeners.
func (h *CostingPolicyHolder) Set(p CostingPolicy) {
	h.current.Store(p)
	h.mu.Lock()
	listeners := append([]func(CostingPolicy){}, h.listeners...)
	h.mu.Unlock()
	for _, fn := range listeners {
		fn(p)
	}
}

// OnChange registers fn to run after every successful reload.
func (h *CostingPolicyHolder) OnChange(fn func(CostingPolicy)) {
	h.mu.Lock()
	h.listeners = append(h.listeners, fn)
	h.mu.Unlock()
}

func decodePolicy(v *viper.Viper) (CostingPolicy, error) {
	var raw rawPolicy
	if err := v.UnmarshalKey("costing", &raw); err != nil {
		return CostingPolicy{}, err
	}
	// UnmarshalKey does not see values that only arrive through BindEnv.
	raw.TaxRate = v.GetString("costing.tax_rate")
	raw.PieceWeightKg = v.GetString("costing.piece_weight_kg")
	raw.ReconcileThreshold = v.GetString("costing.reconcile_threshold")

	p, err := parsePolicy(raw)
	if err != nil {
		return CostingPolicy{}, err
	}
	return p, validatePolicy(p)
}

func parsePolicy(raw rawPolicy) (CostingPolicy, error) {
	tax, err := decimal.NewFromString(strings.TrimSpace(raw.TaxRate))
	if err != nil {
		return CostingPolicy{}, errors.New("costing.tax_rate must be a decimal")
	}
	weight, err := decimal.NewFromString(strings.TrimSpace(raw.PieceWeightKg))
	if err != nil {
		return CostingPolicy{}, errors.New("costing.piece_weight_kg must be a decimal")
	}
	threshold, err := decimal.NewFromString(strings.TrimSpace(raw.ReconcileThreshold))
	if err != nil {
		return CostingPolicy{}, errors.New("costing.reconcile_threshold must be a decimal")
	}
	return CostingPolicy{TaxRate: tax, PieceWeightKg: weight, ReconcileThreshold: threshold}, nil
}

func validatePolicy(p CostingPolicy) error {
	if p.TaxRate.IsNegative() {
		return errors.New("costing.tax_rate cannot be negative")
	}
	if !p.PieceWeightKg.IsPositive() {
		return errors.New("costing.piece_weight_kg must be positive")
	}
	if p.ReconcileThreshold.IsNegative() {
		return errors.New("costing.reconcile_threshold cannot be negative")
	}
	return nil
}
