// Package facts decodes the system facts written by the openshift_facts
// callback plugin and applies them to the configured hosts.
package facts

import (
	"io"
	"log/slog"
	"os"

	"github.com/metal-toolbox/ooinstall/internal/model"
	"github.com/mitchellh/copystructure"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var ErrFacts = errors.New("system facts error")

// Common is the "common" section reported for each host.
type Common struct {
	IP             string `mapstructure:"ip"`
	PublicIP       string `mapstructure:"public_ip"`
	Hostname       string `mapstructure:"hostname"`
	PublicHostname string `mapstructure:"public_hostname"`
	DeploymentType string `mapstructure:"deployment_type"`
}

// HostFacts are the facts reported by a single host.
type HostFacts struct {
	Common Common `mapstructure:"common"`
}

// Installed reports whether the host already carries a deployment.
func (f *HostFacts) Installed() bool {
	return f.Common.DeploymentType != ""
}

// ByIP maps the inventory host ip to the facts reported for it.
type ByIP map[string]HostFacts

// Load reads the callback facts file at path.
func Load(path string) (ByIP, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(ErrFacts, err.Error())
	}
	defer fh.Close()

	return Decode(fh)
}

// Decode parses a callback facts document.
// Sections other than "common" are ignored.
func Decode(r io.Reader) (ByIP, error) {
	raw := map[string]interface{}{}
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(ErrFacts, "decode error: "+err.Error())
	}

	out := make(ByIP, len(raw))

	for ip, v := range raw {
		var hf HostFacts

		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &hf,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, errors.Wrap(ErrFacts, err.Error())
		}

		if err := dec.Decode(v); err != nil {
			return nil, errors.Wrapf(ErrFacts, "host %s: %s", ip, err.Error())
		}

		out[ip] = hf
	}

	return out, nil
}

// Installed returns the ips, in host order, of hosts whose facts report an
// existing deployment.
func (b ByIP) Installed(hosts []model.Host) []string {
	var ips []string

	for i := range hosts {
		if hf, ok := b[hosts[i].IP]; ok && hf.Installed() {
			ips = append(ips, hosts[i].IP)
		}
	}

	return ips
}

// Apply returns a copy of hosts with empty identity fields filled from the
// facts reported for that host. The changed flag is set when any field was
// filled. hosts is never modified.
func Apply(hosts []model.Host, b ByIP) ([]model.Host, bool, error) {
	copied, err := copystructure.Copy(hosts)
	if err != nil {
		return nil, false, errors.Wrap(ErrFacts, err.Error())
	}

	out, ok := copied.([]model.Host)
	if !ok {
		return nil, false, errors.Wrap(ErrFacts, "unexpected host list type")
	}

	changed := false

	for i := range out {
		h := &out[i]

		hf, ok := b[h.IP]
		if !ok {
			continue
		}

		filled := false

		for _, f := range []struct {
			dst *string
			src string
		}{
			{&h.Hostname, hf.Common.Hostname},
			{&h.PublicIP, hf.Common.PublicIP},
			{&h.PublicHostname, hf.Common.PublicHostname},
		} {
			if *f.dst == "" && f.src != "" {
				*f.dst = f.src
				filled = true
			}
		}

		if filled {
			changed = true
			slog.Debug("Host defaults filled from facts", h.AsLogFields()...)
		}
	}

	return out, changed, nil
}
