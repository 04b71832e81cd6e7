package entity

import "fmt"

// Kind identifies an entity variant.
type Kind string

const (
	KindTarget         Kind = "target"
	KindTargetPort     Kind = "target_port"
	KindTargetEndpoint Kind = "target_endpoint"
	KindWordlist       Kind = "wordlist"
	KindOSINT          Kind = "osint"
	KindHost           Kind = "host"
	KindEnumeration    Kind = "enumeration"
	KindEndpoint       Kind = "endpoint"
	KindTechnology     Kind = "technology"
	KindVulnerability  Kind = "vulnerability"
	KindCredential     Kind = "credential"
	KindExploit        Kind = "exploit"
	KindParameter      Kind = "parameter"
)

// AllKinds returns every entity kind: targets and task inputs first, then findings.
func AllKinds() []Kind {
	return []Kind{
		KindTarget,
		KindTargetPort,
		KindTargetEndpoint,
		KindWordlist,
		KindOSINT,
		KindHost,
		KindEnumeration,
		KindEndpoint,
		KindTechnology,
		KindVulnerability,
		KindCredential,
		KindExploit,
		KindParameter,
	}
}

// IsValid returns true if k is one of the declared kinds.
func (k Kind) IsValid() bool {
	for _, known := range AllKinds() {
		if k == known {
			return true
		}
	}
	return false
}

// IsFinding returns true for kinds produced by parsing tool output.
func (k Kind) IsFinding() bool {
	switch k {
	case KindOSINT, KindHost, KindEnumeration, KindEndpoint, KindTechnology,
		KindVulnerability, KindCredential, KindExploit:
		return true
	default:
		return false
	}
}

// Aggregatable returns true for kinds whose values can be merged into one
// argument when an input selects ALL matching entities.
func (k Kind) Aggregatable() bool {
	switch k {
	case KindTargetPort, KindTargetEndpoint, KindHost, KindEnumeration,
		KindEndpoint, KindTechnology, KindParameter:
		return true
	default:
		return false
	}
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// ParseKind parses a declared kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.IsValid() {
		return "", fmt.Errorf("unknown entity kind %q", s)
	}
	return k, nil
}
