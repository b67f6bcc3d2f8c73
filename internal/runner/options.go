package runner

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/projectdiscovery/goflags"
	"github.com/projectdiscovery/gologger"
	"github.com/projectdiscovery/gologger/formatter"
	"github.com/projectdiscovery/gologger/levels"
	"github.com/projectdiscovery/netinventory/pkg/enrich/remote"
	"github.com/projectdiscovery/netinventory/pkg/peerdiscovery/common"
	"github.com/projectdiscovery/netinventory/pkg/peerdiscovery/pingsweep"
	"github.com/projectdiscovery/netinventory/pkg/pipeline"
	"github.com/projectdiscovery/netinventory/pkg/version"
	envutil "github.com/projectdiscovery/utils/env"
	fileutil "github.com/projectdiscovery/utils/file"
	"gopkg.in/yaml.v3"
)

var (
	DomainUserEnv     = envutil.GetEnvOrDefault("NETINV_DOMAIN_USER", "")
	DomainPasswordEnv = envutil.GetEnvOrDefault("NETINV_DOMAIN_PASSWORD", "")
	DomainServerEnv   = envutil.GetEnvOrDefault("NETINV_DOMAIN_SERVER", "")
	SNMPCommunityEnv  = envutil.GetEnvOrDefault("NETINV_SNMP_COMMUNITY", "")
)

// ErrRangeIncomplete is returned when only one end of an address range is given
var ErrRangeIncomplete = errors.New("both -start-ip and -end-ip are required")

// Options contains the configuration options for a scan
type Options struct {
	Subnet   string `yaml:"subnet"`
	StartIP  string `yaml:"start-ip"`
	EndIP    string `yaml:"end-ip"`
	SingleIP string `yaml:"single-ip"`
	Local    bool   `yaml:"local"`

	DomainUser     string `yaml:"domain-user"`
	DomainPassword string `yaml:"domain-password"`
	DomainServer   string `yaml:"domain-server"`
	LDAPS          bool   `yaml:"ldaps"`

	RemoteUser     string `yaml:"remote-user"`
	RemotePassword string `yaml:"remote-password"`
	RemoteKeyFile  string `yaml:"remote-key-file"`
	RemoteProtocol string `yaml:"remote-protocol"`
	WinRMHTTPS     bool   `yaml:"winrm-https"`
	WinRMInsecure  bool   `yaml:"winrm-insecure"`

	NoNmap        bool                `yaml:"no-nmap"`
	SNMPCommunity string              `yaml:"snmp-community"`
	Ports         goflags.StringSlice `yaml:"ports"`

	Timeout     time.Duration `yaml:"timeout"`
	Concurrency int           `yaml:"concurrency"`

	ConfigFile  string `yaml:"-"`
	OUIFile     string `yaml:"oui-file"`
	Output      string `yaml:"output"`
	MetricsFile string `yaml:"metrics-file"`
	Verbose     bool   `yaml:"verbose"`
	Silent      bool   `yaml:"silent"`
	NoColor     bool   `yaml:"no-color"`
	Version     bool   `yaml:"-"`
}

// ParseOptions parses the command line flags provided by a user
func ParseOptions() *Options {
	options := &Options{}
	flagSet := goflags.NewFlagSet()

	flagSet.SetDescription(`netinventory discovers live hosts on a network segment and builds a best-effort inventory record for each`)

	flagSet.CreateGroup("target", "Target",
		flagSet.StringVarP(&options.Subnet, "subnet", "s", "", "subnet to scan in CIDR notation (e.g. 192.168.1.0/24)"),
		flagSet.StringVarP(&options.StartIP, "start-ip", "sip", "", "first address of a range within one /24"),
		flagSet.StringVarP(&options.EndIP, "end-ip", "eip", "", "last address of a range within one /24"),
		flagSet.StringVarP(&options.SingleIP, "single-ip", "ip", "", "single address to scan"),
		flagSet.BoolVar(&options.Local, "local", false, "scan the /24 of every local interface"),
	)

	flagSet.CreateGroup("domain", "Domain",
		flagSet.StringVarP(&options.DomainUser, "domain-user", "du", DomainUserEnv, "directory bind user (e.g. CORP\\svc or svc@corp.local)"),
		flagSet.StringVarP(&options.DomainPassword, "domain-password", "dp", DomainPasswordEnv, "directory bind password"),
		flagSet.StringVarP(&options.DomainServer, "domain-server", "ds", DomainServerEnv, "directory server host or ldap(s):// url"),
		flagSet.BoolVar(&options.LDAPS, "ldaps", false, "connect to the directory server over TLS"),
	)

	flagSet.CreateGroup("remote", "Remote",
		flagSet.StringVarP(&options.RemoteUser, "remote-user", "ru", "", "remote inventory user (defaults to the domain user)"),
		flagSet.StringVarP(&options.RemotePassword, "remote-password", "rp", "", "remote inventory password (defaults to the domain password)"),
		flagSet.StringVarP(&options.RemoteKeyFile, "remote-key-file", "rk", "", "private key file for ssh authentication"),
		flagSet.StringVarP(&options.RemoteProtocol, "remote-protocol", "rpr", "", "remote inventory protocol (winrm, ssh, auto)"),
		flagSet.BoolVar(&options.WinRMHTTPS, "winrm-https", false, "use https for winrm"),
		flagSet.BoolVar(&options.WinRMInsecure, "winrm-insecure", false, "skip winrm https certificate verification"),
	)

	flagSet.CreateGroup("enrichment", "Enrichment",
		flagSet.BoolVar(&options.NoNmap, "no-nmap", false, "disable the nmap port and service scan"),
		flagSet.StringVarP(&options.SNMPCommunity, "snmp-community", "sc", SNMPCommunityEnv, "snmp v2c community (enables the snmp query)"),
		flagSet.StringSliceVar(&options.Ports, "ports", nil, "ports for the nmap scan (comma separated)", goflags.CommaSeparatedStringSliceOptions),
	)

	flagSet.CreateGroup("tuning", "Tuning",
		flagSet.DurationVar(&options.Timeout, "timeout", 0, "liveness probe timeout (default 2s)"),
		flagSet.IntVarP(&options.Concurrency, "concurrency", "c", 0, "number of hosts scanned in parallel (default 25)"),
	)

	flagSet.CreateGroup("output", "Config/Output",
		flagSet.StringVar(&options.ConfigFile, "config", "", "yaml configuration file (flags take precedence)"),
		flagSet.StringVar(&options.OUIFile, "oui-file", "", "yaml file of mac prefix to vendor overrides"),
		flagSet.StringVarP(&options.Output, "output", "o", "", "file to write the json results to instead of stdout"),
		flagSet.StringVar(&options.MetricsFile, "metrics-file", "", "write prometheus metrics in textfile format"),
		flagSet.BoolVarP(&options.Verbose, "verbose", "v", false, "show verbose output"),
		flagSet.BoolVar(&options.Silent, "silent", false, "show only results in output"),
		flagSet.BoolVarP(&options.NoColor, "no-color", "nc", false, "disable output content coloring (ANSI escape codes)"),
		flagSet.BoolVar(&options.Version, "version", false, "show version of the project"),
	)

	if err := flagSet.Parse(); err != nil {
		gologger.Fatal().Msgf("%s\n", err)
	}

	if options.ConfigFile != "" {
		if err := options.loadConfigFrom(options.ConfigFile); err != nil {
			gologger.Fatal().Msgf("Could not read config file: %s\n", err)
		}
	}

	options.configureOutput()

	if options.Version {
		gologger.Info().Msgf("Current Version: %s\n", version.GetVersion())
		os.Exit(0)
	}

	options.applyDefaults()

	if err := options.validateOptions(); err != nil {
		gologger.Fatal().Msgf("%s\n", err)
	}

	return options
}

// configureOutput configures the output on the screen
func (options *Options) configureOutput() {
	// If the user desires verbose output, show verbose output
	if options.Verbose {
		gologger.DefaultLogger.SetMaxLevel(levels.LevelVerbose)
	}
	if options.NoColor {
		gologger.DefaultLogger.SetFormatter(formatter.NewCLI(true))
	}
	if options.Silent {
		gologger.DefaultLogger.SetMaxLevel(levels.LevelSilent)
	}
}

// loadConfigFrom reads a yaml config file and fills every option the
// command line left unset
func (options *Options) loadConfigFrom(location string) error {
	if !fileutil.FileExists(location) {
		return fmt.Errorf("%s does not exist", location)
	}
	data, err := os.ReadFile(location)
	if err != nil {
		return err
	}
	var file Options
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("could not parse %s: %w", location, err)
	}
	options.merge(&file)
	return nil
}

func (options *Options) merge(file *Options) {
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&options.Subnet, file.Subnet)
	fill(&options.StartIP, file.StartIP)
	fill(&options.EndIP, file.EndIP)
	fill(&options.SingleIP, file.SingleIP)
	fill(&options.DomainUser, file.DomainUser)
	fill(&options.DomainPassword, file.DomainPassword)
	fill(&options.DomainServer, file.DomainServer)
	fill(&options.RemoteUser, file.RemoteUser)
	fill(&options.RemotePassword, file.RemotePassword)
	fill(&options.RemoteKeyFile, file.RemoteKeyFile)
	fill(&options.RemoteProtocol, file.RemoteProtocol)
	fill(&options.SNMPCommunity, file.SNMPCommunity)
	fill(&options.OUIFile, file.OUIFile)
	fill(&options.Output, file.Output)
	fill(&options.MetricsFile, file.MetricsFile)

	options.Local = options.Local || file.Local
	options.LDAPS = options.LDAPS || file.LDAPS
	options.WinRMHTTPS = options.WinRMHTTPS || file.WinRMHTTPS
	options.WinRMInsecure = options.WinRMInsecure || file.WinRMInsecure
	options.NoNmap = options.NoNmap || file.NoNmap
	options.Verbose = options.Verbose || file.Verbose
	options.Silent = options.Silent || file.Silent
	options.NoColor = options.NoColor || file.NoColor

	if len(options.Ports) == 0 {
		options.Ports = file.Ports
	}
	if options.Timeout == 0 {
		options.Timeout = file.Timeout
	}
	if options.Concurrency == 0 {
		options.Concurrency = file.Concurrency
	}
}

func (options *Options) applyDefaults() {
	if options.Timeout <= 0 {
		options.Timeout = pingsweep.DefaultTimeout
	}
	if options.Concurrency <= 0 {
		options.Concurrency = pipeline.DefaultConcurrency
	}
	if options.RemoteUser == "" {
		options.RemoteUser = options.DomainUser
	}
	if options.RemotePassword == "" {
		options.RemotePassword = options.DomainPassword
	}
}

// validateOptions rejects option sets that cannot describe a scan
func (options *Options) validateOptions() error {
	spec := options.TargetSpec()
	mode, err := spec.Mode()
	if err != nil {
		return fmt.Errorf("%w: use exactly one of -subnet, -start-ip/-end-ip, -single-ip, -local", err)
	}
	if mode == common.ModeRange && (spec.StartIP == "" || spec.EndIP == "") {
		return ErrRangeIncomplete
	}
	if _, err := remote.ParseProtocol(options.RemoteProtocol); err != nil {
		return err
	}
	if _, err := options.PortList(); err != nil {
		return err
	}
	return nil
}

// TargetSpec returns the address selection of the options
func (options *Options) TargetSpec() common.TargetSpec {
	return common.TargetSpec{
		Subnet:   strings.TrimSpace(options.Subnet),
		StartIP:  strings.TrimSpace(options.StartIP),
		EndIP:    strings.TrimSpace(options.EndIP),
		SingleIP: strings.TrimSpace(options.SingleIP),
		Local:    options.Local,
	}
}

// PortList parses the -ports values
func (options *Options) PortList() ([]int, error) {
	var ports []int
	for _, value := range options.Ports {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		port, err := strconv.Atoi(value)
		if err != nil || port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid port %q", value)
		}
		ports = append(ports, port)
	}
	return ports, nil
}
