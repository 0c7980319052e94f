package suitemetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const prefix = "quotasuite_"

var (
	ScenariosRun = promauto.NewCounter(prometheus.CounterOpts{
		Name: prefix + "scenarios_run_total",
		Help: "Number of scenarios executed.",
	})
	ScenariosPassed = promauto.NewCounter(prometheus.CounterOpts{
		Name: prefix + "scenarios_passed_total",
		Help: "Number of scenarios whose compliance verdict was successful.",
	})
	ScenariosFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: prefix + "scenarios_failed_total",
		Help: "Number of scenarios that failed, either on verdict or on infrastructure error.",
	})
	ScrapeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: prefix + "metric_scrape_errors_total",
		Help: "Number of failed broker metric scrapes, by target.",
	}, []string{"target"})
)
