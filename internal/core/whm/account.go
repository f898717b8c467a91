package whm

import (
	"encoding/json"
	"net/url"
)

// Endpoints used by the provisioning pipeline.
const (
	EndpointCreateAccount = "createacct"
	EndpointListPackages  = "listpkgs"
)

// AccountSpec describes the account to create.
type AccountSpec struct {
	Username     string
	Domain       string
	Password     string
	Package      string
	ContactEmail string
}

// Params returns the createacct query parameters.
func (s AccountSpec) Params() url.Values {
	v := url.Values{}
	v.Set("username", s.Username)
	v.Set("domain", s.Domain)
	v.Set("password", s.Password)
	v.Set("plan", s.Package)
	v.Set("contactemail", s.ContactEmail)
	return v
}

// PackageNames extracts package names from a successful listpkgs response.
// Both {data:{pkg:[...]}} and bare list payloads are understood.
func PackageNames(resp Response) []string {
	if !resp.Success || len(resp.Data) == 0 {
		return nil
	}

	type pkg struct {
		Name string `json:"name"`
	}

	var items []pkg
	if err := json.Unmarshal(resp.Data, &items); err != nil {
		var wrapped struct {
			Pkg []pkg `json:"pkg"`
		}
		if err := json.Unmarshal(resp.Data, &wrapped); err != nil {
			return nil
		}
		items = wrapped.Pkg
	}

	names := make([]string, 0, len(items))
	for _, p := range items {
		if p.Name != "" {
			names = append(names, p.Name)
		}
	}
	return names
}
