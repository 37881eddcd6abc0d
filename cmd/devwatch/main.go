package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"sync"
	"syscall"

	"gopkg.in/yaml.v3"

	"k8s.io/klog/v2"

	"github.com/ydb-platform/devwatch"
	"github.com/ydb-platform/devwatch/internal/mux"
	"github.com/ydb-platform/devwatch/internal/udevmeta"
)

func main() {
	appContext, appCancel := context.WithCancel(context.Background())
	appWaitGroup := &sync.WaitGroup{}
	defer appWaitGroup.Wait()
	defer appCancel()

	flags := initFlags()
	config := flags.config

	merged := mux.Make(mux.Buffered[devwatch.Found](16))

	searchers := startSearchers(config)
	if len(searchers) == 0 {
		klog.Fatalf("no watchable device directory among the configured classes and rules")
		os.Exit(1)
	}

	for _, searcher := range searchers {
		appWaitGroup.Add(1)
		go func(s *devwatch.Searcher) {
			defer appWaitGroup.Done()
			pump(appContext, s, merged)
		}(searcher)
	}

	foundCh := make(chan devwatch.Found)
	var sink mux.Sink[devwatch.Found] = mux.SinkFromChan(foundCh)
	if config.exclude != nil {
		exclude := config.exclude
		sink = mux.FilterSink(sink, func(f devwatch.Found) bool {
			return !exclude.MatchString(f.Name())
		})
	}
	cancelSub := merged.Subscribe(sink)

	var resolver *udevmeta.Resolver
	if config.Metadata {
		resolver = udevmeta.NewResolver()
	}

	appWaitGroup.Add(1)
	go func() {
		defer appWaitGroup.Done()
		report(foundCh, resolver, config.Probe)
	}()

	shutdown := mux.ChainCancelFunc(cancelSub, func() {
		for _, s := range searchers {
			s.Close()
		}
	}, appCancel)
	defer shutdown()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	for signal := range sigs {
		switch signal {
		case syscall.SIGINT, syscall.SIGTERM:
			klog.Infof("Received signal %q, shutting down", signal.String())
			return
		}
	}
}

// startSearchers opens one Searcher per configured class and rule.
// Unwatchable entries are logged and skipped so a host without, say,
// /dev/snd can still watch its other classes.
func startSearchers(config *Config) []*devwatch.Searcher {
	searchers := make([]*devwatch.Searcher, 0, len(config.classes)+len(config.Rules))
	for _, class := range config.classes {
		s, err := devwatch.NewSearcher(class)
		if err != nil {
			klog.Errorf("skipping class %s: %v", class, err)
			continue
		}
		searchers = append(searchers, s)
	}
	for _, rule := range config.Rules {
		s, err := devwatch.NewSearcherAt(rule.Dir, rule.Prefix)
		if err != nil {
			klog.Errorf("skipping rule %s/%s*: %v", rule.Dir, rule.Prefix, err)
			continue
		}
		searchers = append(searchers, s)
	}
	return searchers
}

func pump(ctx context.Context, s *devwatch.Searcher, merged *mux.Mux[devwatch.Found]) {
	for {
		found, err := s.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, devwatch.ErrClosed) {
				return
			}
			klog.Errorf("searcher stopped: %v", err)
			return
		}
		if err := merged.Submit(found); err != nil {
			klog.Errorf("failed to submit discovery for %s: %v", found.Path, err)
		}
	}
}

func report(foundCh <-chan devwatch.Found, resolver *udevmeta.Resolver, probe bool) {
	for found := range foundCh {
		line := fmt.Sprintf("discovered %s (%s)", found.Path, found.Class)
		if resolver != nil {
			if desc := resolver.Describe(found.Path); desc != "" {
				line += " [" + desc + "]"
			}
		}
		klog.Info(line)

		if !probe {
			continue
		}
		device, err := found.ConnectInput()
		if err != nil {
			klog.Warningf("probe failed: %v", err)
			continue
		}
		klog.V(2).Infof("probe ok: %s capability=%s", found.Path, device.Capability())
		device.Close()
	}
}

type configSource interface {
	String() string
	open() (io.Reader, func() error, error)
}

type fileConfigSource struct {
	path string
}

func (fcs *fileConfigSource) open() (io.Reader, func() error, error) {
	file, err := os.Open(fcs.path)
	if err != nil {
		return nil, nil, err
	}
	return file, file.Close, nil
}

func (fcs *fileConfigSource) String() string {
	return "file:" + fcs.path
}

type envConfigSource struct {
	variable string
}

func (ecs *envConfigSource) open() (io.Reader, func() error, error) {
	data := os.Getenv(ecs.variable)
	if data == "" {
		return nil, nil, fmt.Errorf("config: environment variable %s is not set", ecs.variable)
	}
	return strings.NewReader(data), func() error { return nil }, nil
}

func (ecs *envConfigSource) String() string {
	return "env:" + ecs.variable
}

type stdinConfigSource struct{}

func (scs *stdinConfigSource) open() (io.Reader, func() error, error) {
	return os.Stdin, func() error { return nil }, nil
}

func (scs *stdinConfigSource) String() string {
	return "stdin"
}

type ConfigFlag struct {
	configSource
}

func (cf *ConfigFlag) Set(value string) error {
	if strings.HasPrefix(value, "file:") {
		cf.configSource = &fileConfigSource{path: strings.TrimPrefix(value, "file:")}
	} else if strings.HasPrefix(value, "env:") {
		cf.configSource = &envConfigSource{variable: strings.TrimPrefix(value, "env:")}
	} else if strings.HasPrefix(value, "stdin") {
		cf.configSource = &stdinConfigSource{}
	} else {
		return fmt.Errorf("invalid config source: %s", value)
	}

	return nil
}

func (cf *ConfigFlag) String() string {
	if cf.configSource == nil {
		return ""
	}
	return cf.configSource.String()
}

type FlagValues struct {
	Config ConfigFlag

	config *Config
}

func initFlags() FlagValues {
	values := FlagValues{}
	flags := flag.NewFlagSet("devwatch", flag.ExitOnError)
	klog.InitFlags(flags)
	flags.Var(&values.Config, "config", `configuration source (in form "file:<path>", "env:<ENV_VARIABLE>" or "stdin"); watches every device class when omitted`)
	flags.Parse(os.Args[1:])
	if values.Config.configSource == nil {
		values.config = defaultConfig()
		return values
	}
	configReader, configCloser, err := values.Config.open()
	if err != nil {
		klog.Fatalf("failed to open --config %q: %v", values.Config.String(), err)
		os.Exit(1)
	}
	defer configCloser()

	config, err := parseConfig(configReader)
	if err != nil {
		klog.Fatalf("failed to parse --config %q: %v", values.Config.String(), err)
		os.Exit(1)
	}

	values.config = config

	return values
}

type WatchRuleConfig struct {
	Dir    string `yaml:"dir"`    // directory to watch
	Prefix string `yaml:"prefix"` // entry name prefix, may be empty
}

func (wrc *WatchRuleConfig) validate() error {
	if wrc.Dir == "" {
		return fmt.Errorf(".dir: must be set")
	}
	return nil
}

type Config struct {
	Classes  []string          `yaml:"classes"`
	Rules    []WatchRuleConfig `yaml:"rules"`
	Exclude  string            `yaml:"exclude,omitempty"` // regexp on entry names
	Probe    bool              `yaml:"probe"`
	Metadata bool              `yaml:"metadata"`

	classes []devwatch.Class
	exclude *regexp.Regexp // compiled Exclude if the config is valid
}

func (c *Config) validate() error {
	var errs error

	if len(c.Classes) == 0 && len(c.Rules) == 0 {
		errs = errors.Join(errs, fmt.Errorf(".classes: at least one class or rule must be set"))
	}

	c.classes = make([]devwatch.Class, 0, len(c.Classes))
	for i, name := range c.Classes {
		class, err := devwatch.ParseClass(name)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf(".classes[%d]: %w", i, err))
			continue
		}
		c.classes = append(c.classes, class)
	}

	for i := range c.Rules {
		if err := c.Rules[i].validate(); err != nil {
			errs = errors.Join(errs, fmt.Errorf(".rules[%d]%w", i, err))
		}
	}

	if c.Exclude != "" {
		exclude, err := regexp.Compile(c.Exclude)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf(".exclude: %q must be a valid regexp: %w", c.Exclude, err))
		}
		c.exclude = exclude
	}

	return errs
}

func defaultConfig() *Config {
	config := &Config{
		Classes: []string{"input", "audio", "midi", "camera"},
	}
	if err := config.validate(); err != nil {
		panic(err)
	}
	return config
}

func parseConfig(reader io.Reader) (*Config, error) {
	decoder := yaml.NewDecoder(reader)
	config := &Config{}
	if err := decoder.Decode(config); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}
