package models

// DependencySpec is one declared dependency: a package name and its raw
// version constraint as written in a manifest.
type DependencySpec struct {
	Name       string `json:"name"`
	Constraint string `json:"constraint"`
	Manifest   string `json:"manifest"`
	Format     string `json:"format"`
}

// VersionConflict exists only when the declared constraints for one package
// cannot all be satisfied by a single version: pinned literals that differ,
// or range intervals whose intersection is empty.
type VersionConflict struct {
	Name        string   `json:"name"`
	Constraints []string `json:"constraints"`
	Manifests   []string `json:"manifests"`
}

// OutdatedDependency records a constraint that cannot admit the latest
// version known to the reference feed, or a pin behind it.
type OutdatedDependency struct {
	Name       string `json:"name"`
	Constraint string `json:"constraint"`
	Manifest   string `json:"manifest"`
	Latest     string `json:"latest"`
}
