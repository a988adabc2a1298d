// FILE: lixenwraith/registry/core/core.go

// Package core declares the monitoring agent's core options, including the
// password that gates runtime configuration updates.
package core

import (
	"net/url"
	"time"

	"github.com/lixenwraith/registry"
)

const (
	// Name is the category of every core option
	Name = "Core"

	// PasswordKey names the option gating Registry.Save
	PasswordKey = "monitor.password"
)

// Option keys
const (
	KeyActive             = "monitor.active"
	KeyInternalMonitoring = "monitor.internal.monitoring"
	KeyConsoleInterval    = "monitor.reporting.interval.console"
	KeyApplicationName    = "monitor.application.name"
	KeyInstanceName       = "monitor.instance.name"
	KeyElasticsearchURLs  = "monitor.reporting.elasticsearch.url"
	KeyExcludedPackages   = "monitor.excluded.packages"
	KeyReloadInterval     = "monitor.reload.interval"
)

// Plugin is the core option provider. Create one per registry with New;
// options bind to the first registry they are registered with.
type Plugin struct {
	active             *registry.Option[bool]
	internalMonitoring *registry.Option[bool]
	consoleInterval    *registry.Option[int]
	password           *registry.Option[string]
	applicationName    *registry.Option[string]
	instanceName       *registry.Option[string]
	elasticsearchURLs  *registry.Option[[]*url.URL]
	excludedPackages   *registry.Option[[]string]
	reloadInterval     *registry.Option[time.Duration]
}

func New() *Plugin {
	return &Plugin{
		active: registry.BoolOption(KeyActive, true,
			registry.Dynamic(),
			registry.WithLabel("Activate monitoring"),
			registry.WithDescription("If set to false, the agent will not collect any data."),
			registry.WithTags("agent")),
		internalMonitoring: registry.BoolOption(KeyInternalMonitoring, false,
			registry.Dynamic(),
			registry.WithLabel("Internal monitoring"),
			registry.WithDescription("Whether the agent should also monitor itself.")),
		consoleInterval: registry.IntOption(KeyConsoleInterval, 0,
			registry.WithLabel("Reporting interval console"),
			registry.WithDescription("The number of seconds between metric reports to the console. A value of 0 disables console reporting."),
			registry.WithTags("reporting")),
		password: registry.StringOption(PasswordKey, "",
			registry.Sensitive(),
			registry.WithLabel("Password for configuration updates"),
			registry.WithDescription("Required to change configuration at runtime. Leave unset to disable updates; set it empty to allow updates without a password.")),
		applicationName: registry.StringOption(KeyApplicationName, "",
			registry.WithLabel("Application name"),
			registry.WithDescription("The name of the monitored application."),
			registry.WithTags("important")),
		instanceName: registry.StringOption(KeyInstanceName, "",
			registry.WithLabel("Instance name"),
			registry.WithDescription("The instance or stage of the application, e.g. prod or test."),
			registry.WithTags("important")),
		elasticsearchURLs: registry.URLListOption(KeyElasticsearchURLs, nil,
			registry.Dynamic(),
			registry.WithLabel("Elasticsearch URLs"),
			registry.WithDescription("Comma separated list of Elasticsearch URLs to report to."),
			registry.WithTags("reporting", "elasticsearch")),
		excludedPackages: registry.StringListOption(KeyExcludedPackages, nil,
			registry.WithLabel("Excluded packages"),
			registry.WithDescription("Packages that are not instrumented.")),
		reloadInterval: registry.DurationOption(KeyReloadInterval, 60*time.Second,
			registry.WithLabel("Configuration reload interval"),
			registry.WithDescription("How often all configuration sources are reloaded. 0 disables reloading.")),
	}
}

func (p *Plugin) Name() string { return Name }

func (p *Plugin) Options() []registry.Definition {
	return []registry.Definition{
		p.active,
		p.internalMonitoring,
		p.consoleInterval,
		p.password,
		p.applicationName,
		p.instanceName,
		p.elasticsearchURLs,
		p.excludedPackages,
		p.reloadInterval,
	}
}

func (p *Plugin) IsActive() bool                   { return p.active.Value() }
func (p *Plugin) IsInternalMonitoringActive() bool { return p.internalMonitoring.Value() }
func (p *Plugin) ConsoleReportingInterval() int    { return p.consoleInterval.Value() }
func (p *Plugin) ApplicationName() string          { return p.applicationName.Value() }
func (p *Plugin) InstanceName() string             { return p.instanceName.Value() }
func (p *Plugin) ExcludedPackages() []string       { return p.excludedPackages.Value() }
func (p *Plugin) ReloadInterval() time.Duration    { return p.reloadInterval.Value() }

// ElasticsearchURLs returns the configured report targets; nil when none
func (p *Plugin) ElasticsearchURLs() []*url.URL {
	return p.elasticsearchURLs.Value()
}

// WatchOptions derives periodic reload settings from the reload interval.
// ok is false when reloading is disabled.
func (p *Plugin) WatchOptions() (opts registry.WatchOptions, ok bool) {
	interval := p.ReloadInterval()
	if interval <= 0 {
		return registry.WatchOptions{}, false
	}
	opts = registry.DefaultWatchOptions()
	opts.PollInterval = interval
	return opts, true
}
