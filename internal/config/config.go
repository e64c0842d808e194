package config

import (
	"io"
	"os"
	"strings"

	"github.com/metal-toolbox/ooinstall/internal/model"
	"github.com/metal-toolbox/ooinstall/internal/variants"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	ErrConfig = model.ErrConfig
)

// installFile is the on disk layout of the installer config file.
// Unknown keys are rejected when decoding.
type installFile struct {
	Product        string      `yaml:"product"`
	AnsibleSSHUser string      `yaml:"ansible_ssh_user"`
	Hosts          []hostEntry `yaml:"hosts"`

	AnsibleLogPath        string `yaml:"ansible_log_path"`
	AnsibleConfig         string `yaml:"ansible_config"`
	AnsiblePlaybookBinary string `yaml:"ansible_playbook_binary"`
	LogLevel              string `yaml:"log_level"`
	MetricsTextfile       string `yaml:"metrics_textfile"`
}

type hostEntry struct {
	IP             string `yaml:"ip"`
	Hostname       string `yaml:"hostname"`
	PublicIP       string `yaml:"public_ip"`
	PublicHostname string `yaml:"public_hostname"`
	Master         bool   `yaml:"master"`
	Node           bool   `yaml:"node"`
	SSHUser        string `yaml:"ssh_user"`
}

// Load reads and validates the installer config at path.
//
// The product may be left out of the file, in which case the returned
// config has no deployment type until SetProduct is called.
func Load(path string) (*model.InstallationConfig, error) {
	if path == "" {
		return nil, errors.Wrap(ErrConfig, "no config file given")
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(ErrConfig, err.Error())
	}
	defer fh.Close()

	return Parse(fh)
}

// Parse decodes an installer config document.
func Parse(r io.Reader) (*model.InstallationConfig, error) {
	var f installFile

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.Wrap(ErrConfig, "config file is empty")
		}

		return nil, errors.Wrap(ErrConfig, "decode error: "+err.Error())
	}

	cfg := &model.InstallationConfig{
		SSHUser:               strings.TrimSpace(f.AnsibleSSHUser),
		AnsibleLogPath:        f.AnsibleLogPath,
		AnsibleConfig:         f.AnsibleConfig,
		AnsiblePlaybookBinary: f.AnsiblePlaybookBinary,
		LogLevel:              f.LogLevel,
		MetricsTextfile:       f.MetricsTextfile,
		Hosts:                 make([]model.Host, 0, len(f.Hosts)),
	}

	for _, h := range f.Hosts {
		cfg.Hosts = append(cfg.Hosts, model.Host{
			IP:             strings.TrimSpace(h.IP),
			Hostname:       h.Hostname,
			PublicIP:       h.PublicIP,
			PublicHostname: h.PublicHostname,
			IsMaster:       h.Master,
			IsNode:         h.Node,
			SSHUser:        strings.TrimSpace(h.SSHUser),
		})
	}

	if err := validateHosts(cfg.Hosts); err != nil {
		return nil, err
	}

	if f.Product != "" {
		if err := SetProduct(cfg, f.Product); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// SetProduct resolves product through the variants table and stores the
// derived deployment and product types on cfg.
func SetProduct(cfg *model.InstallationConfig, product string) error {
	if cfg == nil {
		return ErrConfig
	}

	v, err := variants.Lookup(strings.TrimSpace(product))
	if err != nil {
		return errors.Wrap(ErrConfig, err.Error())
	}

	cfg.Product = v.Product
	cfg.DeploymentType = v.DeploymentType
	cfg.ProductType = v.ProductType

	return nil
}

// Validate checks a config is complete enough to install from.
func Validate(cfg *model.InstallationConfig) error {
	if cfg == nil {
		return ErrConfig
	}

	if cfg.Product == "" || cfg.DeploymentType == "" {
		return errors.Wrap(ErrConfig, "no product")
	}

	return validateHosts(cfg.Hosts)
}

func validateHosts(hosts []model.Host) error {
	if len(hosts) == 0 {
		return errors.Wrap(ErrConfig, "no hosts")
	}

	seen := make(map[string]struct{}, len(hosts))

	for i := range hosts {
		h := &hosts[i]

		if h.IP == "" {
			return errors.Wrapf(ErrConfig, "host %d has no ip", i)
		}

		if _, ok := seen[h.IP]; ok {
			return errors.Wrapf(ErrConfig, "duplicate host ip %s", h.IP)
		}

		seen[h.IP] = struct{}{}

		if !h.IsMaster && !h.IsNode {
			return errors.Wrapf(ErrConfig, "host %s is neither master nor node", h.IP)
		}
	}

	return nil
}
