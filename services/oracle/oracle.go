// Package oracle answers whether a target has attested that a user
// claimed against it. Attestation is best-effort: targets without a
// registered source, and sources that fail, yield an unsupported
// result rather than an error, letting the caller fall back to the
// local claim registry.
package oracle

import (
	"context"

	"github.com/openclaims/coverd/models"
	"go.uber.org/zap"
)

// Result is the outcome of a claim-status probe.
// When Supported is false, Claimed carries no information and the
// caller must consult its own records.
type Result struct {
	Claimed   bool
	Supported bool
}

// Source answers claim-status queries for a single target
type Source interface {
	// IsClaimed reports whether the user has claimed against the target
	IsClaimed(ctx context.Context, target, user models.Address) (bool, error)
}

// SourceFunc adapts a function to the Source interface
type SourceFunc func(ctx context.Context, target, user models.Address) (bool, error)

// IsClaimed calls f
func (f SourceFunc) IsClaimed(ctx context.Context, target, user models.Address) (bool, error) {
	return f(ctx, target, user)
}

// Adapter probes targets for claim status, routing each query to the
// target's registered source
type Adapter struct {
	registry *Registry
	logger   *zap.Logger
}

// NewAdapter creates an adapter over the given source registry
func NewAdapter(registry *Registry, logger *zap.Logger) *Adapter {
	return &Adapter{
		registry: registry,
		logger:   logger,
	}
}

// Lookup probes the target's source for the user's claim status.
// Any failure, including an unregistered target, is reported as
// unsupported rather than an error.
func (a *Adapter) Lookup(ctx context.Context, target, user models.Address) Result {
	source, ok := a.registry.Get(target)
	if !ok {
		a.logger.Debug("no attestation source for target",
			zap.String("target", target.String()))
		return Result{Supported: false}
	}

	claimed, err := source.IsClaimed(ctx, target, user)
	if err != nil {
		a.logger.Warn("attestation source failed",
			zap.String("target", target.String()),
			zap.String("user", user.String()),
			zap.Error(err))
		return Result{Supported: false}
	}

	return Result{Claimed: claimed, Supported: true}
}
