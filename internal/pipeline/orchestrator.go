//-------------------------------------------------------------------------
//
// pgEdge RAG Chat
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Orchestrator runs one conversation turn through every stage in order.
type Orchestrator struct {
	refiner   *Refiner
	retriever *Coordinator
	generator *Generator
	observers []TurnObserver
	logger    *slog.Logger
}

// OrchestratorConfig contains the configuration for creating an orchestrator.
type OrchestratorConfig struct {
	Refiner   *Refiner
	Retriever *Coordinator
	Generator *Generator
	Observers []TurnObserver
	Logger    *slog.Logger
}

// NewOrchestrator creates a turn pipeline orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		refiner:   cfg.Refiner,
		retriever: cfg.Retriever,
		generator: cfg.Generator,
		observers: cfg.Observers,
		logger:    logger,
	}
}

// ProcessTurn appends text to history as a user turn, streams the answer
// to sink, appends the assistant turn and sends EndSentinel. Stage
// failures degrade the answer but never abort the turn. An error is
// returned only when sink fails or ctx is cancelled; the assistant turn is
// then not appended.
func (o *Orchestrator) ProcessTurn(
	ctx context.Context,
	history *History,
	text string,
	sink Sink,
) (*TurnReport, error) {
	start := time.Now()
	report := &TurnReport{
		SessionID: SessionIDFromContext(ctx),
		Question:  text,
		States:    []State{StateIdle},
	}
	logger := o.logger
	if report.SessionID != "" {
		logger = logger.With("session", report.SessionID)
	}
	enter := func(s State) {
		report.States = append(report.States, s)
	}

	prior := history.Turns()
	history.Append(RoleUser, text)

	enter(StateRefining)
	query, refineRes := o.refiner.Refine(ctx, prior, text)
	report.RefinedQuery = query
	report.Stages = append(report.Stages, refineRes)

	enter(StateRetrieving)
	passages, searchRes := o.retriever.SimilaritySearch(ctx, query, o.retriever.k)
	report.Retrieved = len(passages)
	report.Stages = append(report.Stages, searchRes)

	enter(StateReranking)
	ranked, rerankRes := o.retriever.Rerank(ctx, query, passages, o.retriever.topN)
	report.Ranked = len(ranked)
	report.Stages = append(report.Stages, rerankRes)

	enter(StateGenerating)
	response, genRes, err := o.generator.Generate(ctx, history.Turns(), ranked, sink)
	report.Stages = append(report.Stages, genRes)
	if err != nil {
		report.Elapsed = time.Since(start)
		logger.Info("turn abandoned", "elapsed", report.Elapsed, "error", err)
		return report, err
	}

	history.Append(RoleAssistant, response)

	if err := sink.Send(ctx, EndSentinel); err != nil {
		report.Elapsed = time.Since(start)
		return report, fmt.Errorf("failed to send end sentinel: %w", err)
	}

	enter(StateCompleted)
	report.Response = response
	report.Elapsed = time.Since(start)

	logger.Info("turn completed",
		"query", preview(text),
		"refine", refineRes.Outcome,
		"search", searchRes.Outcome,
		"rerank", rerankRes.Outcome,
		"generate", genRes.Outcome,
		"retrieved", report.Retrieved,
		"ranked", report.Ranked,
		"elapsed", report.Elapsed,
	)

	for _, obs := range o.observers {
		obs.TurnCompleted(ctx, report)
	}

	return report, nil
}
