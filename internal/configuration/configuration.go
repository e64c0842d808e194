package configuration

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jeremywohl/flatten"
	"github.com/metal-toolbox/ooinstall/internal/ansible"
	"github.com/metal-toolbox/ooinstall/internal/inventory"
	"github.com/metal-toolbox/ooinstall/internal/model"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	statusFile = "install_status.json"
)

// Settings are the runtime settings that may come from the installer config
// file or OOINSTALL_* environment variables.
// nolint:govet // prefer readability over field alignment optimization for this case.
type Settings struct {
	// LogLevel is the app verbose logging level.
	// one of - info, debug, trace
	LogLevel string `mapstructure:"log_level"`

	// AnsibleLogPath is exported to ansible-playbook as ANSIBLE_LOG_PATH.
	AnsibleLogPath string `mapstructure:"ansible_log_path"`

	// AnsibleConfig is exported to ansible-playbook as ANSIBLE_CONFIG when set.
	AnsibleConfig string `mapstructure:"ansible_config"`

	// AnsiblePlaybookBinary is the ansible-playbook executable.
	AnsiblePlaybookBinary string `mapstructure:"ansible_playbook_binary"`

	// MetricsTextfile, when set, receives the run metrics in prometheus text format.
	MetricsTextfile string `mapstructure:"metrics_textfile"`
}

// Configuration holds the installer runtime settings and the flag only options.
type Configuration struct {
	Settings

	WorkDir       string
	ConfigFile    string
	Unattended    bool
	DryRun        bool
	SkipInstalled bool
}

// New creates a configuration with defaults applied.
func New() *Configuration {
	return &Configuration{
		Settings: Settings{
			LogLevel:              "info",
			AnsibleLogPath:        ansible.DefaultLogPath,
			AnsiblePlaybookBinary: ansible.DefaultPlaybookBinary,
		},
	}
}

func (c *Configuration) AsLogFields() []any {
	return []any{
		"logLevel", c.LogLevel,
		"workDir", c.WorkDir,
		"configFile", c.ConfigFile,
		"unattended", c.Unattended,
		"dryRun", c.DryRun,
		"skipInstalled", c.SkipInstalled,
		"ansibleLogPath", c.AnsibleLogPath,
		"ansibleConfig", c.AnsibleConfig,
		"ansiblePlaybookBinary", c.AnsiblePlaybookBinary,
		"metricsTextfile", c.MetricsTextfile,
	}
}

// InventoryPath is the rendered inventory location.
func (c *Configuration) InventoryPath() string {
	return inventory.Path(c.WorkDir)
}

// StatusPath is the install status file location.
func (c *Configuration) StatusPath() string {
	return filepath.Join(c.WorkDir, inventory.Dir, statusFile)
}

// AnsibleEnv is the environment passed to every playbook run.
func (c *Configuration) AnsibleEnv() map[string]string {
	return ansible.Env(c.WorkDir, c.AnsibleLogPath, c.AnsibleConfig)
}

// LoadArgs copies the flag only settings, and any flag that was given, over
// the loaded values.
func (c *Configuration) LoadArgs(args *model.Args) {
	c.WorkDir = args.WorkDir
	c.ConfigFile = args.ConfigFile
	c.Unattended = args.Unattended
	c.DryRun = args.DryRun
	c.SkipInstalled = args.SkipInstalled

	if args.LogLevel != "" {
		c.LogLevel = args.LogLevel
	}

	if args.AnsibleLogPath != "" {
		c.AnsibleLogPath = args.AnsibleLogPath
	}

	if args.AnsibleConfig != "" {
		c.AnsibleConfig = args.AnsibleConfig
	}

	if args.MetricsTextfile != "" {
		c.MetricsTextfile = args.MetricsTextfile
	}
}

// Load the application configuration
// Reads in the configFile when available and overrides from environment variables.
// Flags given in args take precedence over both.
func Load(args *model.Args) (*Configuration, error) {
	if strings.TrimSpace(args.WorkDir) == "" {
		return nil, errors.Wrap(model.ErrUsage, "An ansible path must be provided")
	}

	viperConfig := viper.New()
	viperConfig.SetConfigType("yaml")
	viperConfig.SetEnvPrefix(model.AppName)
	viperConfig.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperConfig.AutomaticEnv()

	if args.ConfigFile != "" {
		fh, err := os.Open(args.ConfigFile)
		if err != nil {
			return nil, errors.Wrap(model.ErrConfig, err.Error())
		}
		defer fh.Close()

		if err = viperConfig.ReadConfig(fh); err != nil {
			return nil, errors.Wrap(model.ErrConfig, "ReadConfig error: "+err.Error())
		}
	}

	config := New()

	if err := config.envBindVars(viperConfig); err != nil {
		return nil, errors.Wrap(model.ErrConfig, "env var bind error: "+err.Error())
	}

	if err := viperConfig.Unmarshal(&config.Settings); err != nil {
		return nil, errors.Wrap(model.ErrConfig, "Unmarshal error: "+err.Error())
	}

	config.LoadArgs(args)

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Configuration) validate() error {
	if c.AnsibleLogPath == "" {
		c.AnsibleLogPath = ansible.DefaultLogPath
	}

	if c.AnsiblePlaybookBinary == "" {
		c.AnsiblePlaybookBinary = ansible.DefaultPlaybookBinary
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	fi, err := os.Stat(c.WorkDir)
	if err != nil {
		return errors.Wrap(model.ErrUsage, "ansible path: "+err.Error())
	}

	if !fi.IsDir() {
		return errors.Wrap(model.ErrUsage, "ansible path is not a directory: "+c.WorkDir)
	}

	return nil
}

// envBindVars binds environment variables to the struct
// without a configuration file being unmarshalled,
// this is a workaround for a viper bug,
//
// This can be replaced by the solution in https://github.com/spf13/viper/pull/1429
// once that PR is merged.
func (c *Configuration) envBindVars(viperConfig *viper.Viper) error {
	envKeysMap := map[string]interface{}{}
	if err := mapstructure.Decode(c.Settings, &envKeysMap); err != nil {
		return err
	}

	// Flatten nested conf map
	flat, err := flatten.Flatten(envKeysMap, "", flatten.DotStyle)
	if err != nil {
		return errors.Wrap(err, "Unable to flatten configuration")
	}

	for k := range flat {
		if err := viperConfig.BindEnv(k); err != nil {
			return errors.Wrap(model.ErrConfig, "env var bind error: "+err.Error())
		}
	}

	return nil
}
