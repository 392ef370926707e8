package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/vk/opflow/internal/ctxlog"
	"github.com/vk/opflow/internal/engine"
	"github.com/vk/opflow/internal/hclgraph"
	"github.com/vk/opflow/internal/ops"
)

// Run loads the patch, drives one evaluation pass per frame and prints the
// designated output values to outW.
func Run(ctx context.Context, cfg *Config, outW, logW io.Writer) error {
	logger, err := NewLogger(logW, cfg)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	ctx = ctxlog.WithLogger(ctx, logger)

	registry := ops.Default()
	patch, err := hclgraph.Load(cfg.PatchPath)
	if err != nil {
		return &ExitError{Code: 1, Message: err.Error()}
	}

	var engOpts []engine.Option
	if cfg.CacheCapacity > 0 {
		engOpts = append(engOpts, engine.WithCacheCapacity(cfg.CacheCapacity))
	}
	eng := engine.New(engOpts...)
	if err := patch.Apply(eng, registry); err != nil {
		return &ExitError{Code: 1, Message: fmt.Sprintf("applying patch: %v", err)}
	}
	logger.Info("▶️ Patch loaded.", "operators", len(patch.Operators),
		"connections", len(patch.Connections), "outputs", len(patch.Outputs))

	// Operators whose output varies per frame get re-marked dirty before
	// every pass after the first.
	var animated []string
	for _, op := range patch.Operators {
		if def, ok := registry.Lookup(op.Type); ok && def.PerFrame {
			animated = append(animated, op.Name)
		}
	}

	evalOpts := engine.EvalOptions{
		Guardrails: engine.Guardrails{
			MaxNodes:    cfg.MaxNodes,
			MaxDuration: cfg.MaxBudget,
		},
	}

	for frame := 0; frame < cfg.Frames; frame++ {
		if frame > 0 && len(animated) > 0 {
			if err := eng.MarkDirty(animated...); err != nil {
				return &ExitError{Code: 1, Message: err.Error()}
			}
		}

		evalOpts.Time = float64(frame) * cfg.TimeStep
		result := eng.Evaluate(ctx, evalOpts)
		if !result.Succeeded {
			return &ExitError{Code: 1, Message: fmt.Sprintf("pass %d faulted: %v", result.Stats.Pass, result.Reason)}
		}
		for _, f := range result.FaultedNodes {
			logger.Warn("Node faulted this pass.", "nodeID", f.ID, "propagated", f.Propagated, "error", f.Err)
		}

		for _, name := range patch.Outputs {
			v, ok := eng.GetCachedValue(name)
			if !ok {
				fmt.Fprintf(outW, "frame %d  %s = <no value>\n", frame, name)
				continue
			}
			fmt.Fprintf(outW, "frame %d  %s = %s\n", frame, name, formatValue(v))
		}
	}

	stats := eng.GetStatistics()
	logger.Info("✅ Run complete.",
		"passes", stats.TotalPasses,
		"evaluations", stats.TotalEvaluations,
		"cacheHitRate", fmt.Sprintf("%.2f", stats.CacheHitRate),
		"lastPassDuration", stats.LastPassDuration)
	return nil
}
