// Package metrics exposes the simulator state as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/raterudder/gridsim/pkg/controller"
	"github.com/raterudder/gridsim/pkg/types"
)

// Metrics holds the collectors of one simulator. Each instance has its own
// registry so several simulations can run in one process.
type Metrics struct {
	registry *prometheus.Registry

	ticks          prometheus.Counter
	controlTicks   *prometheus.CounterVec
	ruleFirings    *prometheus.CounterVec
	energySold     prometheus.Counter
	shortfall      prometheus.Counter
	available      prometheus.Gauge
	appliancePower *prometheus.GaugeVec
	batteryCharge  prometheus.Gauge
	windSpeed      prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridsim_ticks_total",
			Help: "Total simulation ticks advanced.",
		}),
		controlTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridsim_control_ticks_total",
			Help: "Total control ticks by cascade branch.",
		}, []string{"branch"}),
		ruleFirings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridsim_rule_firings_total",
			Help: "Total cascade rule firings by branch and rule.",
		}, []string{"branch", "rule"}),
		energySold: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridsim_surplus_sold_watts_total",
			Help: "Sum of the surplus left over after each control tick.",
		}),
		shortfall: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridsim_deficit_shortfall_watts_total",
			Help: "Sum of the deficit left uncovered after each control tick.",
		}),
		available: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridsim_available_energy_watts",
			Help: "Production minus consumption at the last control tick.",
		}),
		appliancePower: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gridsim_appliance_power_watts",
			Help: "Effective signed power per appliance.",
		}, []string{"appliance"}),
		batteryCharge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridsim_battery_capacity",
			Help: "Energy stored in the battery.",
		}),
		windSpeed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gridsim_wind_speed",
			Help: "Current wind speed.",
		}),
	}

	m.registry.MustRegister(
		m.ticks,
		m.controlTicks,
		m.ruleFirings,
		m.energySold,
		m.shortfall,
		m.available,
		m.appliancePower,
		m.batteryCharge,
		m.windSpeed,
	)
	return m
}

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// OnPowerChanged records the effective power of an appliance.
func (m *Metrics) OnPowerChanged(id types.ApplianceID, power float64) {
	m.appliancePower.WithLabelValues(string(id)).Set(power)
}

// ObserveTick counts one simulation tick and records the continuous readings.
func (m *Metrics) ObserveTick(batteryCapacity, windSpeed float64) {
	m.ticks.Inc()
	m.batteryCharge.Set(batteryCapacity)
	m.windSpeed.Set(windSpeed)
}

// ObserveDecision records the outcome of a control tick.
func (m *Metrics) ObserveDecision(d controller.Decision) {
	branch := string(d.Branch)
	m.controlTicks.WithLabelValues(branch).Inc()
	m.available.Set(d.Available)
	for _, a := range d.Actions {
		m.ruleFirings.WithLabelValues(branch, strconv.Itoa(a.Rule)).Inc()
	}
	m.energySold.Add(d.Sold)
	m.shortfall.Add(d.Shortfall)
}
