/*
Package dataflow provides a fit/predict DAG engine for time-series
modeling pipelines.

# Overview

A pipeline is a directed acyclic graph of nodes. Every node exposes a
two-phase lifecycle: Fit trains it on a window of data, Predict applies the
state learned at the last Fit to new data. Tables (see package table) flow
along edges from a producer's output port to a consumer's input port.

The scheduler, RunLeqNode, executes one target node together with all of
its ancestors, in topological order, and returns the target's outputs.

# Basic Usage

	dag := dataflow.NewDAG("returns")
	_ = dag.AddNode(src)   // e.g. source.NewArmaGenerator(...)
	_ = dag.AddNode(pca)   // e.g. model.NewUnsupervisedModel(...)
	if err := dag.AddEdge(src.ID(), pca.ID()); err != nil {
	    log.Fatal(err)
	}

	fitOut, err := dag.RunLeqNode(ctx, "pca", dataflow.ModeFit)
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Println(fitOut.Out())

	// Later, on new data, reuse the fitted state.
	predOut, err := dag.RunLeqNode(ctx, "pca", dataflow.ModePredict)

# Lifecycle

A node starts unfit. Fit moves it to fit; repeated Fit calls discard the
previous learned state (last write wins). Predict on an unfit node fails
with ErrInvalidLifecycle (model nodes return ErrNotFitted, which matches
ErrInvalidLifecycle under errors.Is). Embed Lifecycle to get this behavior.

# Graph Validation

Edges are validated as they are added: unknown node ids fail with
ErrUnknownNode, edges that would close a cycle fail with ErrCycleDetected,
and each consumer port accepts a single producer (ErrPortInUse).

# Errors

Node failures are wrapped in *NodeError; node panics are recovered into
*PanicError; cancellation between nodes is reported as *CancellationError.
Use errors.Is with the sentinel errors to branch on the cause.

# Observability

Runs log through log/slog. Enable OpenTelemetry metrics and spans with
WithMetrics and WithTracing.

# Real-time Execution

Package realtime drives repeated predict runs from a clock; package source
provides data source nodes whose time cursor the clock advances.
*/
package dataflow
