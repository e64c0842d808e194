// Package variants maps installer products onto the deployment and product
// types understood by the openshift-ansible playbooks.
package variants

import (
	"sort"

	"github.com/pkg/errors"
)

var ErrUnknownProduct = errors.New("unknown product")

// Variant is one installable product version.
type Variant struct {
	Product        string
	Description    string
	DeploymentType string
	ProductType    string
	// Legacy marks config values kept for installs made by older installers.
	Legacy bool
}

var table = map[string]Variant{
	"openshift-enterprise-3.1": {
		Product:        "openshift-enterprise-3.1",
		Description:    "OpenShift Enterprise 3.1",
		DeploymentType: "openshift-enterprise",
		ProductType:    "openshift",
	},
	"openshift-enterprise": {
		Product:        "openshift-enterprise",
		Description:    "OpenShift Enterprise (latest)",
		DeploymentType: "openshift-enterprise",
		ProductType:    "openshift",
	},
	"openshift-enterprise-3.0": {
		Product:        "openshift-enterprise-3.0",
		Description:    "OpenShift Enterprise 3.0",
		DeploymentType: "enterprise",
		ProductType:    "openshift",
	},
	"enterprise": {
		Product:        "enterprise",
		Description:    "OpenShift Enterprise 3.0",
		DeploymentType: "enterprise",
		ProductType:    "openshift",
		Legacy:         true,
	},
	"atomic-enterprise-3.1": {
		Product:        "atomic-enterprise-3.1",
		Description:    "Atomic OpenShift Enterprise 3.1",
		DeploymentType: "atomic-enterprise",
		ProductType:    "atomic-enterprise",
	},
	"atomic-enterprise": {
		Product:        "atomic-enterprise",
		Description:    "Atomic OpenShift Enterprise (latest)",
		DeploymentType: "atomic-enterprise",
		ProductType:    "atomic-enterprise",
	},
	"origin": {
		Product:        "origin",
		Description:    "OpenShift Origin",
		DeploymentType: "origin",
		ProductType:    "openshift",
	},
}

// Lookup returns the variant for a product name.
func Lookup(product string) (Variant, error) {
	v, ok := table[product]
	if !ok {
		return Variant{}, errors.Wrapf(ErrUnknownProduct, "%q, expected one of %v", product, Products())
	}

	return v, nil
}

// Products lists the accepted product names, legacy aliases included, sorted.
func Products() []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Default is offered in interactive mode when the config has no product.
func Default() Variant {
	return table["openshift-enterprise-3.1"]
}
