package entity

import "github.com/zero-day-ai/taskforge/finding"

// Entity is implemented by every entity variant in this package.
type Entity interface {
	// Kind returns the variant identifier.
	Kind() Kind

	// Identity returns the entity's ID.
	Identity() string

	// SetIdentity replaces the entity's ID.
	SetIdentity(id string)

	// Accept dispatches to the visitor method for the entity's kind.
	Accept(v Visitor) error

	sealed()
}

// Visitor handles each entity kind. Implementations must handle every kind.
type Visitor interface {
	VisitTarget(*Target) error
	VisitTargetPort(*TargetPort) error
	VisitTargetEndpoint(*TargetEndpoint) error
	VisitWordlist(*Wordlist) error
	VisitOSINT(*OSINT) error
	VisitHost(*Host) error
	VisitEnumeration(*Enumeration) error
	VisitEndpoint(*Endpoint) error
	VisitTechnology(*Technology) error
	VisitVulnerability(*Vulnerability) error
	VisitCredential(*Credential) error
	VisitExploit(*Exploit) error
	VisitParameter(*Parameter) error
}

// TargetType classifies the address of a target.
type TargetType string

const (
	TargetPrivateIP TargetType = "private_ip"
	TargetPublicIP  TargetType = "public_ip"
	TargetNetwork   TargetType = "network"
	TargetIPRange   TargetType = "ip_range"
	TargetDomain    TargetType = "domain"
)

// Target is the host, network or domain a task runs against.
type Target struct {
	ID        string     `json:"id"`
	ProjectID string     `json:"project_id"`
	Address   string     `json:"address"`
	Type      TargetType `json:"type"`
}

// TargetPort is a port the user declared for a target.
type TargetPort struct {
	ID       string `json:"id"`
	TargetID string `json:"target_id"`
	Port     int    `json:"port"`
}

// TargetEndpoint is a path the user declared under a target port.
type TargetEndpoint struct {
	ID           string `json:"id"`
	TargetPortID string `json:"target_port_id"`
	Endpoint     string `json:"endpoint"`
}

// WordlistType is the kind of values a wordlist contains.
type WordlistType string

const (
	WordlistEndpoint  WordlistType = "endpoint"
	WordlistSubdomain WordlistType = "subdomain"
)

// Wordlist is a file of candidate values passed to brute-force tools.
type Wordlist struct {
	ID   string       `json:"id"`
	Name string       `json:"name"`
	Type WordlistType `json:"type"`
	Path string       `json:"path"`
}

// DataType classifies OSINT data.
type DataType string

const (
	DataIP       DataType = "ip"
	DataDomain   DataType = "domain"
	DataVhost    DataType = "vhost"
	DataURL      DataType = "url"
	DataEmail    DataType = "email"
	DataLink     DataType = "link"
	DataASN      DataType = "asn"
	DataUser     DataType = "user"
	DataPassword DataType = "password"
)

// OSINT is a piece of public information about the target.
type OSINT struct {
	ID       string   `json:"id"`
	Data     string   `json:"data"`
	DataType DataType `json:"data_type"`
	Source   string   `json:"source,omitempty"`
}

// Host is a live host discovered in the target.
type Host struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	OS      string `json:"os,omitempty"`
}

// PortStatus is the state a scanner reported for a port.
type PortStatus string

const (
	PortOpen         PortStatus = "open"
	PortOpenFiltered PortStatus = "open|filtered"
	PortFiltered     PortStatus = "filtered"
	PortClosed       PortStatus = "closed"
)

// Protocol is a transport protocol.
type Protocol string

const (
	ProtocolTCP Protocol = "tcp"
	ProtocolUDP Protocol = "udp"
)

// Enumeration is a port and the service found listening on it.
type Enumeration struct {
	ID         string     `json:"id"`
	Host       string     `json:"host"`
	Port       int        `json:"port"`
	PortStatus PortStatus `json:"port_status"`
	Protocol   Protocol   `json:"protocol"`
	Service    string     `json:"service,omitempty"`
}

// Endpoint is an HTTP path discovered on the target.
type Endpoint struct {
	ID       string `json:"id"`
	Endpoint string `json:"endpoint"`
	Status   int    `json:"status,omitempty"`
}

// Technology is a product detected on the target.
type Technology struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
	Reference   string `json:"reference,omitempty"`
}

// Vulnerability is a weakness found on the target. Description, Severity,
// CWE and Reference are overwritten by CVE enrichment.
type Vulnerability struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Severity    finding.Severity `json:"severity"`
	CVE         string           `json:"cve,omitempty"`
	CWE         string           `json:"cwe,omitempty"`
	Reference   string           `json:"reference,omitempty"`
}

// Credential is an account or secret found during testing.
type Credential struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Secret   string `json:"secret,omitempty"`
}

// Exploit references a public exploit for a vulnerability or technology.
type Exploit struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Edb       string `json:"edb,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// ParameterKey names the value a free-form parameter carries.
type ParameterKey string

const (
	ParamTechnology ParameterKey = "technology"
	ParamVersion    ParameterKey = "version"
	ParamEndpoint   ParameterKey = "endpoint"
	ParamCVE        ParameterKey = "cve"
	ParamExploit    ParameterKey = "exploit"
	ParamWordlist   ParameterKey = "wordlist"
)

// Parameter is a user supplied key/value input.
type Parameter struct {
	ID    string       `json:"id"`
	Key   ParameterKey `json:"key"`
	Value string       `json:"value"`
}

func (*Target) Kind() Kind         { return KindTarget }
func (*TargetPort) Kind() Kind     { return KindTargetPort }
func (*TargetEndpoint) Kind() Kind { return KindTargetEndpoint }
func (*Wordlist) Kind() Kind       { return KindWordlist }
func (*OSINT) Kind() Kind          { return KindOSINT }
func (*Host) Kind() Kind           { return KindHost }
func (*Enumeration) Kind() Kind    { return KindEnumeration }
func (*Endpoint) Kind() Kind       { return KindEndpoint }
func (*Technology) Kind() Kind     { return KindTechnology }
func (*Vulnerability) Kind() Kind  { return KindVulnerability }
func (*Credential) Kind() Kind     { return KindCredential }
func (*Exploit) Kind() Kind        { return KindExploit }
func (*Parameter) Kind() Kind      { return KindParameter }

func (e *Target) Identity() string         { return e.ID }
func (e *TargetPort) Identity() string     { return e.ID }
func (e *TargetEndpoint) Identity() string { return e.ID }
func (e *Wordlist) Identity() string       { return e.ID }
func (e *OSINT) Identity() string          { return e.ID }
func (e *Host) Identity() string           { return e.ID }
func (e *Enumeration) Identity() string    { return e.ID }
func (e *Endpoint) Identity() string       { return e.ID }
func (e *Technology) Identity() string     { return e.ID }
func (e *Vulnerability) Identity() string  { return e.ID }
func (e *Credential) Identity() string     { return e.ID }
func (e *Exploit) Identity() string        { return e.ID }
func (e *Parameter) Identity() string      { return e.ID }

func (e *Target) SetIdentity(id string)         { e.ID = id }
func (e *TargetPort) SetIdentity(id string)     { e.ID = id }
func (e *TargetEndpoint) SetIdentity(id string) { e.ID = id }
func (e *Wordlist) SetIdentity(id string)       { e.ID = id }
func (e *OSINT) SetIdentity(id string)          { e.ID = id }
func (e *Host) SetIdentity(id string)           { e.ID = id }
func (e *Enumeration) SetIdentity(id string)    { e.ID = id }
func (e *Endpoint) SetIdentity(id string)       { e.ID = id }
func (e *Technology) SetIdentity(id string)     { e.ID = id }
func (e *Vulnerability) SetIdentity(id string)  { e.ID = id }
func (e *Credential) SetIdentity(id string)     { e.ID = id }
func (e *Exploit) SetIdentity(id string)        { e.ID = id }
func (e *Parameter) SetIdentity(id string)      { e.ID = id }

func (e *Target) Accept(v Visitor) error         { return v.VisitTarget(e) }
func (e *TargetPort) Accept(v Visitor) error     { return v.VisitTargetPort(e) }
func (e *TargetEndpoint) Accept(v Visitor) error { return v.VisitTargetEndpoint(e) }
func (e *Wordlist) Accept(v Visitor) error       { return v.VisitWordlist(e) }
func (e *OSINT) Accept(v Visitor) error          { return v.VisitOSINT(e) }
func (e *Host) Accept(v Visitor) error           { return v.VisitHost(e) }
func (e *Enumeration) Accept(v Visitor) error    { return v.VisitEnumeration(e) }
func (e *Endpoint) Accept(v Visitor) error       { return v.VisitEndpoint(e) }
func (e *Technology) Accept(v Visitor) error     { return v.VisitTechnology(e) }
func (e *Vulnerability) Accept(v Visitor) error  { return v.VisitVulnerability(e) }
func (e *Credential) Accept(v Visitor) error     { return v.VisitCredential(e) }
func (e *Exploit) Accept(v Visitor) error        { return v.VisitExploit(e) }
func (e *Parameter) Accept(v Visitor) error      { return v.VisitParameter(e) }

func (*Target) sealed()         {}
func (*TargetPort) sealed()     {}
func (*TargetEndpoint) sealed() {}
func (*Wordlist) sealed()       {}
func (*OSINT) sealed()          {}
func (*Host) sealed()           {}
func (*Enumeration) sealed()    {}
func (*Endpoint) sealed()       {}
func (*Technology) sealed()     {}
func (*Vulnerability) sealed()  {}
func (*Credential) sealed()     {}
func (*Exploit) sealed()        {}
func (*Parameter) sealed()      {}

// New returns a zero entity of the given kind.
func New(kind Kind) (Entity, error) {
	switch kind {
	case KindTarget:
		return &Target{}, nil
	case KindTargetPort:
		return &TargetPort{}, nil
	case KindTargetEndpoint:
		return &TargetEndpoint{}, nil
	case KindWordlist:
		return &Wordlist{}, nil
	case KindOSINT:
		return &OSINT{}, nil
	case KindHost:
		return &Host{}, nil
	case KindEnumeration:
		return &Enumeration{}, nil
	case KindEndpoint:
		return &Endpoint{}, nil
	case KindTechnology:
		return &Technology{}, nil
	case KindVulnerability:
		return &Vulnerability{}, nil
	case KindCredential:
		return &Credential{}, nil
	case KindExploit:
		return &Exploit{}, nil
	case KindParameter:
		return &Parameter{}, nil
	}
	_, err := ParseKind(string(kind))
	return nil, err
}

// Findings returns the entities whose kind is a finding kind, in order.
func Findings(entities []Entity) []Entity {
	out := make([]Entity, 0, len(entities))
	for _, e := range entities {
		if e.Kind().IsFinding() {
			out = append(out, e)
		}
	}
	return out
}

// OfKind returns the entities of the given kind, in order.
func OfKind(entities []Entity, kind Kind) []Entity {
	var out []Entity
	for _, e := range entities {
		if e.Kind() == kind {
			out = append(out, e)
		}
	}
	return out
}
