package exec

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/zero-day-ai/taskforge/entity"
	"github.com/zero-day-ai/taskforge/finding"
	"github.com/zero-day-ai/taskforge/parser"
	"github.com/zero-day-ai/taskforge/tool"
)

// ParseOutput converts raw tool output into findings according to format.
// Every finding gets a fresh ID.
func ParseOutput(format tool.OutputFormat, data []byte) ([]entity.Entity, error) {
	var (
		findings []entity.Entity
		err      error
	)
	switch format {
	case "", tool.OutputNone:
		return nil, nil
	case tool.OutputLinesOSINT:
		findings, err = parseOSINTLines(data)
	case tool.OutputJSONLVulnerability:
		findings, err = parseVulnerabilityLines(data)
	case tool.OutputNmapXML:
		findings, err = parseNmapXML(data)
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	if err != nil {
		return nil, err
	}
	for _, f := range findings {
		assignID(f)
	}
	return findings, nil
}

var osintLines = parser.MustLineParser(
	parser.Pattern{Name: string(entity.DataEmail), Regex: `^(?P<data>[^@\s]+@[^@\s]+\.[A-Za-z]{2,})$`},
	parser.Pattern{Name: string(entity.DataURL), Regex: `^(?P<data>https?://\S+)$`},
	parser.Pattern{Name: string(entity.DataIP), Regex: `^(?P<data>\d{1,3}(?:\.\d{1,3}){3}|[0-9a-fA-F]*:[0-9a-fA-F:.]+)$`},
	parser.Pattern{Name: string(entity.DataDomain), Regex: `^(?P<data>(?:[A-Za-z0-9-]+\.)+[A-Za-z]{2,})\.?$`},
)

// parseOSINTLines reads one datum per line: emails, URLs, IPs and domains.
func parseOSINTLines(data []byte) ([]entity.Entity, error) {
	matches, err := osintLines.Parse(data)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []entity.Entity
	for _, m := range matches {
		value := m.Groups["data"]
		if m.Pattern == string(entity.DataIP) && net.ParseIP(value) == nil {
			continue
		}
		if seen[value] {
			continue
		}
		seen[value] = true
		out = append(out, &entity.OSINT{Data: value, DataType: entity.DataType(m.Pattern)})
	}
	return out, nil
}

// vulnerabilityLine is one record of jsonl-vulnerability output.
type vulnerabilityLine struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	CVE         string `json:"cve"`
	CWE         string `json:"cwe"`
	Reference   string `json:"reference"`
}

func parseVulnerabilityLines(data []byte) ([]entity.Entity, error) {
	lines, err := parser.ParseJSONLines[vulnerabilityLine](data)
	if err != nil {
		return nil, err
	}
	out := make([]entity.Entity, 0, len(lines))
	for _, l := range lines {
		sev, err := finding.ParseSeverity(strings.ToLower(l.Severity))
		if err != nil {
			sev = finding.DefaultSeverity
		}
		name := l.Name
		if name == "" {
			name = l.CVE
		}
		out = append(out, &entity.Vulnerability{
			Name:        name,
			Description: l.Description,
			Severity:    sev,
			CVE:         strings.ToUpper(l.CVE),
			CWE:         strings.ToUpper(l.CWE),
			Reference:   l.Reference,
		})
	}
	return out, nil
}

type nmapRun struct {
	Hosts []nmapHost `xml:"host"`
}

type nmapHost struct {
	Status struct {
		State string `xml:"state,attr"`
	} `xml:"status"`
	Addresses []struct {
		Addr     string `xml:"addr,attr"`
		AddrType string `xml:"addrtype,attr"`
	} `xml:"address"`
	Ports []struct {
		Protocol string `xml:"protocol,attr"`
		PortID   string `xml:"portid,attr"`
		State    struct {
			State string `xml:"state,attr"`
		} `xml:"state"`
		Service struct {
			Name    string `xml:"name,attr"`
			Product string `xml:"product,attr"`
			Version string `xml:"version,attr"`
			Tunnel  string `xml:"tunnel,attr"`
		} `xml:"service"`
	} `xml:"ports>port"`
	OSMatches []struct {
		Name string `xml:"name,attr"`
	} `xml:"os>osmatch"`
}

// parseNmapXML emits a Host per live host, an Enumeration per reported
// port and a Technology per identified product.
func parseNmapXML(data []byte) ([]entity.Entity, error) {
	run, err := parser.ParseXML[nmapRun](data)
	if err != nil {
		return nil, err
	}

	var out []entity.Entity
	for _, h := range run.Hosts {
		if h.Status.State != "" && h.Status.State != "up" {
			continue
		}
		addr := ""
		for _, a := range h.Addresses {
			if a.AddrType == "ipv4" || a.AddrType == "ipv6" {
				addr = a.Addr
				break
			}
		}
		if addr == "" {
			continue
		}

		host := &entity.Host{Address: addr}
		if len(h.OSMatches) > 0 {
			host.OS = h.OSMatches[0].Name
		}
		out = append(out, host)

		for _, p := range h.Ports {
			port, err := strconv.Atoi(p.PortID)
			if err != nil {
				continue
			}
			service := p.Service.Name
			if p.Service.Tunnel != "" && service != "" {
				service = p.Service.Tunnel + "/" + service
			}
			out = append(out, &entity.Enumeration{
				Host:       addr,
				Port:       port,
				PortStatus: entity.PortStatus(p.State.State),
				Protocol:   entity.Protocol(p.Protocol),
				Service:    service,
			})
			if p.Service.Product != "" {
				out = append(out, &entity.Technology{
					Name:    p.Service.Product,
					Version: p.Service.Version,
				})
			}
		}
	}
	return out, nil
}

// assignID sets a fresh ID on a finding that has none.
func assignID(e entity.Entity) {
	if e.Identity() == "" {
		e.SetIdentity(uuid.NewString())
	}
}
