package llm

import (
	"context"
	"time"

	"github.com/kirillkom/devgen-studio/internal/core/ports"
	"github.com/kirillkom/devgen-studio/internal/infrastructure/resilience"
)

// DurationObserver records how long a provider call took.
type DurationObserver interface {
	ObserveGeneration(provider, operation string, duration time.Duration, err error)
}

// ResilientGenerator runs a provider through the resilience executor and
// reports open breakers and transient failures as domain.ErrTemporary.
type ResilientGenerator struct {
	provider string
	next     ports.MarkupGenerator
	executor *resilience.Executor
	observer DurationObserver
}

func NewResilientGenerator(
	provider string,
	next ports.MarkupGenerator,
	executor *resilience.Executor,
	observer DurationObserver,
) *ResilientGenerator {
	return &ResilientGenerator{provider: provider, next: next, executor: executor, observer: observer}
}

func (g *ResilientGenerator) Generate(ctx context.Context, instruction string) (string, error) {
	return g.call(ctx, "generate", func(ctx context.Context) (string, error) {
		return g.next.Generate(ctx, instruction)
	})
}

func (g *ResilientGenerator) Refine(ctx context.Context, instruction, currentMarkup string) (string, error) {
	return g.call(ctx, "refine", func(ctx context.Context) (string, error) {
		return g.next.Refine(ctx, instruction, currentMarkup)
	})
}

func (g *ResilientGenerator) call(ctx context.Context, operation string, fn func(context.Context) (string, error)) (string, error) {
	startedAt := time.Now()
	name := g.provider + "." + operation

	var (
		reply string
		err   error
	)
	if g.executor == nil {
		reply, err = fn(ctx)
	} else {
		reply, err = resilience.Do(ctx, g.executor, g.provider, fn, resilience.ClassifyUpstream)
	}
	if g.observer != nil {
		g.observer.ObserveGeneration(g.provider, operation, time.Since(startedAt), err)
	}
	if err != nil {
		return "", resilience.WrapTemporary(name, err, resilience.ClassifyUpstream)
	}
	return reply, nil
}

var _ ports.MarkupGenerator = (*ResilientGenerator)(nil)
