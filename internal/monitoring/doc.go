/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the sandbox
daemon, tracking HTTP requests, membrane trap traffic, sandbox activation,
and micro-app mount latency.

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record sandbox activity (Metrics satisfies sandbox.Recorder)
	realm := sandbox.NewRealm(global, sandbox.WithRecorder(metrics))

	// Time mounts
	timer := monitoring.NewTimer(metrics, "app-a")
	// ... mount ...
	timer.Stop("success")

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
