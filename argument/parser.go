package argument

import (
	"net"
	"reflect"
	"strconv"
	"strings"

	"github.com/zero-day-ai/taskforge/entity"
	"github.com/zero-day-ai/taskforge/toolerr"
)

// Placeholder names produced by Parse.
const (
	KeyTarget     = "target"
	KeyHost       = "host"
	KeyPort       = "port"
	KeyPorts      = "ports"
	KeyURL        = "url"
	KeyEndpoint   = "endpoint"
	KeyEndpoints  = "endpoints"
	KeyWordlist   = "wordlist"
	KeyTechnology = "technology"
	KeyVersion    = "version"
	KeyCVE        = "cve"
	KeyEmail      = "email"
	KeyUsername   = "username"
	KeySecret     = "secret"
	KeyExploit    = "exploit"
	KeyData       = "data"
	KeyProtocol   = "protocol"
	KeyService    = "service"
)

// Parse returns the placeholder values for a single entity.
func Parse(e entity.Entity) (Values, error) {
	if e == nil || reflect.ValueOf(e).IsNil() {
		return nil, toolerr.Configuration("argument", "parse", "nil entity")
	}
	p := &parser{values: Values{}}
	if err := e.Accept(p); err != nil {
		return nil, err
	}
	return p.values, nil
}

// Accumulate parses e and appends its values into acc. Only aggregatable
// kinds may be accumulated. A nil acc is allocated.
func Accumulate(acc Values, e entity.Entity) (Values, error) {
	if acc == nil {
		acc = Values{}
	}
	if e == nil || reflect.ValueOf(e).IsNil() {
		return acc, toolerr.Configuration("argument", "accumulate", "nil entity")
	}
	if !e.Kind().Aggregatable() {
		return acc, toolerr.Configuration("argument", "accumulate", "entity kind %q cannot be aggregated", e.Kind())
	}
	v, err := Parse(e)
	if err != nil {
		return acc, err
	}
	acc.Merge(v)
	return acc, nil
}

// AccumulateAll folds every entity into a single Values.
func AccumulateAll(entities []entity.Entity) (Values, error) {
	acc := Values{}
	for _, e := range entities {
		var err error
		if acc, err = Accumulate(acc, e); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// TargetPortAddress resolves a port of target into host:port values.
func TargetPortAddress(port *entity.TargetPort, target *entity.Target) Values {
	v := Values{}
	if port == nil || target == nil {
		return v
	}
	p := strconv.Itoa(port.Port)
	addr := net.JoinHostPort(target.Address, p)
	v.Set(KeyTarget, addr)
	v.Set(KeyHost, target.Address)
	v.Set(KeyPort, p)
	v.Set(KeyPorts, p)
	v.Set(KeyURL, httpURL(target.Address, port.Port, ""))
	return v
}

// parser implements entity.Visitor, writing into values.
type parser struct {
	values Values
}

func (p *parser) VisitTarget(e *entity.Target) error {
	p.values.Set(KeyTarget, e.Address)
	switch e.Type {
	case entity.TargetNetwork, entity.TargetIPRange:
	default:
		p.values.Set(KeyHost, e.Address)
	}
	return nil
}

func (p *parser) VisitTargetPort(e *entity.TargetPort) error {
	if e.Port > 0 {
		p.values.Set(KeyPort, strconv.Itoa(e.Port))
		p.values.Set(KeyPorts, strconv.Itoa(e.Port))
	}
	return nil
}

func (p *parser) VisitTargetEndpoint(e *entity.TargetEndpoint) error {
	p.values.Set(KeyEndpoint, e.Endpoint)
	p.values.Set(KeyEndpoints, e.Endpoint)
	return nil
}

func (p *parser) VisitWordlist(e *entity.Wordlist) error {
	p.values.Set(KeyWordlist, e.Path)
	return nil
}

func (p *parser) VisitOSINT(e *entity.OSINT) error {
	p.values.Set(KeyData, e.Data)
	switch e.DataType {
	case entity.DataIP, entity.DataDomain, entity.DataVhost:
		p.values.Set(KeyTarget, e.Data)
		p.values.Set(KeyHost, e.Data)
	case entity.DataURL, entity.DataLink:
		p.values.Set(KeyURL, e.Data)
	case entity.DataEmail:
		p.values.Set(KeyEmail, e.Data)
	case entity.DataUser:
		p.values.Set(KeyUsername, e.Data)
	case entity.DataPassword:
		p.values.Set(KeySecret, e.Data)
	}
	return nil
}

func (p *parser) VisitHost(e *entity.Host) error {
	p.values.Set(KeyTarget, e.Address)
	p.values.Set(KeyHost, e.Address)
	return nil
}

func (p *parser) VisitEnumeration(e *entity.Enumeration) error {
	p.values.Set(KeyHost, e.Host)
	if e.Port > 0 {
		port := strconv.Itoa(e.Port)
		p.values.Set(KeyPort, port)
		p.values.Set(KeyPorts, port)
		if e.Host != "" {
			p.values.Set(KeyTarget, net.JoinHostPort(e.Host, port))
		}
	}
	p.values.Set(KeyProtocol, string(e.Protocol))
	p.values.Set(KeyService, e.Service)
	if e.Host != "" && strings.Contains(strings.ToLower(e.Service), "http") {
		p.values.Set(KeyURL, httpURL(e.Host, e.Port, e.Service))
	}
	return nil
}

func (p *parser) VisitEndpoint(e *entity.Endpoint) error {
	p.values.Set(KeyEndpoint, e.Endpoint)
	p.values.Set(KeyEndpoints, e.Endpoint)
	return nil
}

func (p *parser) VisitTechnology(e *entity.Technology) error {
	p.values.Set(KeyTechnology, e.Name)
	p.values.Set(KeyVersion, e.Version)
	return nil
}

func (p *parser) VisitVulnerability(e *entity.Vulnerability) error {
	p.values.Set(KeyCVE, e.CVE)
	return nil
}

func (p *parser) VisitCredential(e *entity.Credential) error {
	p.values.Set(KeyEmail, e.Email)
	p.values.Set(KeyUsername, e.Username)
	p.values.Set(KeySecret, e.Secret)
	return nil
}

func (p *parser) VisitExploit(e *entity.Exploit) error {
	if e.Edb != "" {
		p.values.Set(KeyExploit, e.Edb)
	} else {
		p.values.Set(KeyExploit, e.Title)
	}
	return nil
}

func (p *parser) VisitParameter(e *entity.Parameter) error {
	p.values.Set(string(e.Key), e.Value)
	return nil
}

// httpURL builds a base URL, choosing https for TLS services and port 443.
func httpURL(host string, port int, service string) string {
	scheme := "http"
	s := strings.ToLower(service)
	if port == 443 || strings.Contains(s, "https") || strings.Contains(s, "ssl") {
		scheme = "https"
	}
	switch {
	case port <= 0:
		return scheme + "://" + host
	case scheme == "http" && port == 80, scheme == "https" && port == 443:
		return scheme + "://" + host
	}
	return scheme + "://" + net.JoinHostPort(host, strconv.Itoa(port))
}
