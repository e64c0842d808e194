package facts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/metal-toolbox/ooinstall/internal/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const callbackFacts = `
192.168.1.1:
  common:
    ip: 192.168.1.1
    public_ip: 10.0.0.1
    hostname: master.my.example.com
    public_hostname: master.my.example.com
    deployment_type: enterprise
  master:
    api_port: 8443
192.168.1.2:
  common:
    ip: 192.168.1.2
    public_ip: 10.0.0.2
    hostname: node1.my.example.com
    public_hostname: node1.my.example.com
`

func TestDecode(t *testing.T) {
	got, err := Decode(strings.NewReader(callbackFacts))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, Common{
		IP:             "192.168.1.1",
		PublicIP:       "10.0.0.1",
		Hostname:       "master.my.example.com",
		PublicHostname: "master.my.example.com",
		DeploymentType: "enterprise",
	}, got["192.168.1.1"].Common)

	n := got["192.168.1.2"]
	assert.False(t, n.Installed())
	assert.Equal(t, "node1.my.example.com", n.Common.Hostname)
}

func TestDecodeEmpty(t *testing.T) {
	got, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode(strings.NewReader("- a\n- b\n"))
	assert.True(t, errors.Is(err, ErrFacts))

	_, err = Decode(strings.NewReader("192.168.1.1:\n  common: [1, 2]\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFacts))
	assert.Contains(t, err.Error(), "192.168.1.1")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "callback_facts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(callbackFacts), 0o600))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, ErrFacts))
}

func TestInstalled(t *testing.T) {
	got, err := Decode(strings.NewReader(callbackFacts))
	require.NoError(t, err)

	hosts := []model.Host{
		{IP: "192.168.1.2", IsNode: true},
		{IP: "192.168.1.1", IsMaster: true, IsNode: true},
		{IP: "192.168.1.3", IsNode: true},
	}

	assert.Equal(t, []string{"192.168.1.1"}, got.Installed(hosts))
}

func TestApply(t *testing.T) {
	b := ByIP{
		"10.0.0.1": {Common: Common{Hostname: "fact-host", PublicIP: "1.2.3.4", PublicHostname: "fact-public"}},
		"10.0.0.2": {Common: Common{Hostname: "ignored"}},
	}

	hosts := []model.Host{
		{IP: "10.0.0.1", IsMaster: true, PublicIP: "24.222.0.1"},
		{IP: "10.0.0.2", IsNode: true, Hostname: "configured"},
		{IP: "10.0.0.3", IsNode: true},
	}

	out, changed, err := Apply(hosts, b)
	require.NoError(t, err)
	assert.True(t, changed)

	assert.Equal(t, "fact-host", out[0].Hostname)
	assert.Equal(t, "24.222.0.1", out[0].PublicIP, "configured values win")
	assert.Equal(t, "fact-public", out[0].PublicHostname)
	assert.Equal(t, "configured", out[1].Hostname)
	assert.Equal(t, hosts[2], out[2])

	assert.Empty(t, hosts[0].Hostname, "input must not be modified")
}

func TestApplyUnchanged(t *testing.T) {
	hosts := []model.Host{{IP: "10.0.0.1", Hostname: "a", PublicIP: "b", PublicHostname: "c", IsMaster: true}}

	out, changed, err := Apply(hosts, ByIP{"10.0.0.1": {Common: Common{Hostname: "x"}}})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, hosts, out)
}
