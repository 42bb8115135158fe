// Package config loads the control point's settings from a TOML file, with
// command-line flags overriding whatever the file set.
package config

import (
	"flag"
	"os"

	"github.com/BurntSushi/toml"
)

// indexOf returns the position of c in s, or -1.
func indexOf(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

// DefaultConfigFile is the config file name looked for in the current
// directory when none is specified.
const DefaultConfigFile = "upnpcp.toml"

// Config is the control point's full settings.
type Config struct {
	Debug bool `toml:"debug"`
	Log   struct {
		Filename string `toml:"filename"`
	} `toml:"log"`
	SSDP struct {
		BindInterface string `toml:"bind_interface"` // empty means system default
		SearchMX      int    `toml:"search_mx"`
	} `toml:"ssdp"`
	Discovery struct {
		RefreshInterval  string `toml:"refresh_interval"`
		TTLSweepInterval string `toml:"ttl_sweep_interval"`
		MediaServers     bool   `toml:"media_servers"`
		MediaRenderers   bool   `toml:"media_renderers"`
	} `toml:"discovery"`
	GENA struct {
		CallbackBindAddr string `toml:"callback_bind_addr"`
		CallbackHost     string `toml:"callback_host"`
		CallbackPath     string `toml:"callback_path"`
		SubscribeTimeout string `toml:"subscribe_timeout"`
	} `toml:"gena"`
	HTTP struct {
		ClientTimeout string `toml:"client_timeout"`
	} `toml:"http"`
}

// NewConfig returns a Config populated with the control point's defaults.
func NewConfig() *Config {
	cfg := &Config{Debug: false}
	cfg.Log.Filename = "upnpcp.log"
	cfg.SSDP.SearchMX = 5
	cfg.Discovery.RefreshInterval = "5m"
	cfg.Discovery.TTLSweepInterval = "60s"
	cfg.Discovery.MediaServers = true
	cfg.Discovery.MediaRenderers = true
	cfg.GENA.CallbackBindAddr = ":0"
	cfg.GENA.CallbackPath = "/upnpcp/event"
	cfg.GENA.SubscribeTimeout = "1801s"
	cfg.HTTP.ClientTimeout = "30s"
	return cfg
}

// LoadConfig resolves and loads settings in priority order: an explicit
// configPath, then ./upnpcp.toml if present, then built-in defaults.
func LoadConfig(configPath string) (*Config, error) {
	cfg := NewConfig()

	filePath := configPath
	if filePath == "" {
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			filePath = DefaultConfigFile
		} else {
			return cfg, nil
		}
	}

	if _, err := toml.DecodeFile(filePath, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyCommandLineArgs overwrites cfg with every flag the caller actually
// specified (the *Specified bool pattern distinguishes "unset" from "set
// to the zero value").
func (c *Config) ApplyCommandLineArgs(args CommandLineArgs) {
	if args.DebugSpecified {
		c.Debug = args.Debug
	}
	if args.LogFilenameSpecified {
		c.Log.Filename = args.LogFilename
	}
	if args.SSDPBindInterfaceSpecified {
		c.SSDP.BindInterface = args.SSDPBindInterface
	}
	if args.SSDPSearchMXSpecified {
		c.SSDP.SearchMX = args.SSDPSearchMX
	}
	if args.RefreshIntervalSpecified {
		c.Discovery.RefreshInterval = args.RefreshInterval
	}
	if args.MediaServersSpecified {
		c.Discovery.MediaServers = args.MediaServers
	}
	if args.MediaRenderersSpecified {
		c.Discovery.MediaRenderers = args.MediaRenderers
	}
	if args.GENACallbackBindAddrSpecified {
		c.GENA.CallbackBindAddr = args.GENACallbackBindAddr
	}
	if args.GENACallbackHostSpecified {
		c.GENA.CallbackHost = args.GENACallbackHost
	}
	if args.HTTPClientTimeoutSpecified {
		c.HTTP.ClientTimeout = args.HTTPClientTimeout
	}
}

// CommandLineArgs holds parsed flag values alongside whether each was
// actually specified on the command line.
type CommandLineArgs struct {
	ConfigFile      string
	ConfigSpecified bool

	Debug          bool
	DebugSpecified bool

	LogFilename          string
	LogFilenameSpecified bool

	SSDPBindInterface          string
	SSDPBindInterfaceSpecified bool
	SSDPSearchMX               int
	SSDPSearchMXSpecified      bool

	RefreshInterval          string
	RefreshIntervalSpecified bool
	MediaServers             bool
	MediaServersSpecified    bool
	MediaRenderers           bool
	MediaRenderersSpecified  bool

	GENACallbackBindAddr          string
	GENACallbackBindAddrSpecified bool
	GENACallbackHost              string
	GENACallbackHostSpecified     bool

	HTTPClientTimeout          string
	HTTPClientTimeoutSpecified bool
}

// ParseCommandLineArgs parses os.Args into a CommandLineArgs, recording
// which flags were actually present so ApplyCommandLineArgs can tell
// "unset" from "explicitly set to the zero value".
func ParseCommandLineArgs() CommandLineArgs {
	var args CommandLineArgs

	configFileFlag := flag.String("config", "", "path to the TOML config file")
	debugFlag := flag.Bool("debug", false, "enable debug logging")
	logFilenameFlag := flag.String("log", "upnpcp.log", "log file name")

	ssdpBindIfaceFlag := flag.String("ssdp-bind-interface", "", "network interface to bind the SSDP multicast socket to")
	ssdpSearchMXFlag := flag.Int("ssdp-search-mx", 5, "MX value for active M-SEARCH discovery")

	refreshIntervalFlag := flag.String("discovery-refresh-interval", "5m", "interval between background SSDP refresh searches")
	mediaServersFlag := flag.Bool("media-servers", true, "discover MediaServer devices")
	mediaRenderersFlag := flag.Bool("media-renderers", true, "discover MediaRenderer devices")

	genaBindAddrFlag := flag.String("gena-callback-bind-addr", ":0", "address the GENA NOTIFY callback server binds")
	genaHostFlag := flag.String("gena-callback-host", "", "externally reachable host:port advertised in SUBSCRIBE CALLBACK")

	httpTimeoutFlag := flag.String("http-client-timeout", "30s", "default HTTP request timeout")

	flag.Parse()

	argsMap := make(map[string]bool)
	for i := 1; i < len(os.Args); i++ {
		arg := os.Args[i]
		if len(arg) > 0 && arg[0] == '-' {
			flagName := arg
			if len(flagName) > 1 && flagName[1] == '-' {
				flagName = flagName[2:]
			} else {
				flagName = flagName[1:]
			}
			if idx := indexOf(flagName, '='); idx >= 0 {
				flagName = flagName[:idx]
			}
			argsMap[flagName] = true
			if i+1 < len(os.Args) && len(os.Args[i+1]) > 0 && os.Args[i+1][0] != '-' {
				i++
			}
		}
	}

	args.ConfigFile = *configFileFlag
	args.ConfigSpecified = argsMap["config"]

	args.Debug = *debugFlag
	args.DebugSpecified = argsMap["debug"]

	args.LogFilename = *logFilenameFlag
	args.LogFilenameSpecified = argsMap["log"]

	args.SSDPBindInterface = *ssdpBindIfaceFlag
	args.SSDPBindInterfaceSpecified = argsMap["ssdp-bind-interface"]

	args.SSDPSearchMX = *ssdpSearchMXFlag
	args.SSDPSearchMXSpecified = argsMap["ssdp-search-mx"]

	args.RefreshInterval = *refreshIntervalFlag
	args.RefreshIntervalSpecified = argsMap["discovery-refresh-interval"]

	args.MediaServers = *mediaServersFlag
	args.MediaServersSpecified = argsMap["media-servers"]

	args.MediaRenderers = *mediaRenderersFlag
	args.MediaRenderersSpecified = argsMap["media-renderers"]

	args.GENACallbackBindAddr = *genaBindAddrFlag
	args.GENACallbackBindAddrSpecified = argsMap["gena-callback-bind-addr"]

	args.GENACallbackHost = *genaHostFlag
	args.GENACallbackHostSpecified = argsMap["gena-callback-host"]

	args.HTTPClientTimeout = *httpTimeoutFlag
	args.HTTPClientTimeoutSpecified = argsMap["http-client-timeout"]

	return args
}
