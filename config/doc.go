// Package config defines the declarative pipeline description: one
// processor section plus filters, detectors, and triggers listed by id and
// wired together by string references.
//
// [Load] reads and parses a YAML file; [Config.Validate] checks every rule
// a processor construction depends on (unique ids, resolvable references,
// parameter ranges) and reports the first violation.
package config
