package model

// Statefile is the parsed form of a declarative state document (spec.md
// §4.7, §6). ApiVersion/Kind gate the format; the per-kind slices are
// populated after template substitution and YAML decode.
type Statefile struct {
	ApiVersion string            `yaml:"ApiVersion" json:"api_version"`
	Kind       string            `yaml:"Kind" json:"kind"` // "Deployment"
	Namespace  string            `yaml:"Namespace,omitempty" json:"namespace,omitempty"`
	Args       []StatefileArg    `yaml:"Args,omitempty" json:"args,omitempty"`
	Secrets    []SecretSpec      `yaml:"Secrets,omitempty" json:"secrets,omitempty"`
	Resources  []ResourceSpec    `yaml:"Resources,omitempty" json:"resources,omitempty"`
	Cargoes    []CargoSpec       `yaml:"Cargoes,omitempty" json:"cargoes,omitempty"`
	Vms        []VmSpec          `yaml:"Vms,omitempty" json:"vms,omitempty"`
	Jobs       []JobSpec         `yaml:"Jobs,omitempty" json:"jobs,omitempty"`
	SubStates  []string          `yaml:"SubStates,omitempty" json:"sub_states,omitempty"`
}

// StatefileArg declares one templating input the statefile engine prompts
// for (or takes from CLI flags) before rendering.
type StatefileArg struct {
	Name    string `yaml:"Name" json:"name"`
	Kind    string `yaml:"Kind" json:"kind"` // "String", "Number", "Boolean"
	Default string `yaml:"Default,omitempty" json:"default,omitempty"`
}

// BuildContext is the substitution context available to a statefile during
// template rendering (spec.md §4.7: {Args, Envs, Context, Os, OsFamily,
// Config, HostGateway, Namespaces}).
type BuildContext struct {
	Args        map[string]string `json:"args"`
	Envs        map[string]string `json:"envs"`
	Context     map[string]string `json:"context"`
	Os          string            `json:"os"`
	OsFamily    string            `json:"os_family"`
	Config      map[string]string `json:"config"`
	HostGateway string            `json:"host_gateway"`
	Namespaces  []string          `json:"namespaces"`
}
