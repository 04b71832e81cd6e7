package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/taskforge/entity"
	"github.com/zero-day-ai/taskforge/finding"
	"github.com/zero-day-ai/taskforge/tool"
)

const nmapReport = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE nmaprun>
<nmaprun scanner="nmap" args="nmap -sV -oX out.xml 10.0.0.1">
  <host>
    <status state="up" reason="syn-ack"/>
    <address addr="10.0.0.1" addrtype="ipv4"/>
    <address addr="00:11:22:33:44:55" addrtype="mac"/>
    <ports>
      <port protocol="tcp" portid="22">
        <state state="open" reason="syn-ack"/>
        <service name="ssh" product="OpenSSH" version="8.9p1"/>
      </port>
      <port protocol="tcp" portid="443">
        <state state="open" reason="syn-ack"/>
        <service name="http" tunnel="ssl"/>
      </port>
    </ports>
    <os><osmatch name="Linux 5.X" accuracy="96"/></os>
  </host>
  <host>
    <status state="down" reason="no-response"/>
    <address addr="10.0.0.2" addrtype="ipv4"/>
  </host>
</nmaprun>`

func TestParseOutput_None(t *testing.T) {
	findings, err := ParseOutput(tool.OutputNone, []byte("anything"))
	require.NoError(t, err)
	assert.Empty(t, findings)

	findings, err = ParseOutput("", []byte("anything"))
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestParseOutput_UnsupportedFormat(t *testing.T) {
	_, err := ParseOutput("csv", nil)
	assert.EqualError(t, err, `unsupported output format "csv"`)
}

func TestParseOutput_OSINTLines(t *testing.T) {
	data := []byte(`
[*] searching
admin@example.com
https://example.com/login
10.1.2.3
999.1.1.1
mail.example.com.
cafe.be
admin@example.com
`)
	findings, err := ParseOutput(tool.OutputLinesOSINT, data)
	require.NoError(t, err)
	require.Len(t, findings, 5)

	want := []struct {
		data string
		typ  entity.DataType
	}{
		{"admin@example.com", entity.DataEmail},
		{"https://example.com/login", entity.DataURL},
		{"10.1.2.3", entity.DataIP},
		{"mail.example.com", entity.DataDomain},
		{"cafe.be", entity.DataDomain},
	}
	for i, w := range want {
		o, ok := findings[i].(*entity.OSINT)
		require.True(t, ok)
		assert.Equal(t, w.data, o.Data)
		assert.Equal(t, w.typ, o.DataType)
		assert.NotEmpty(t, o.ID)
	}
}

func TestParseOutput_JSONLVulnerability(t *testing.T) {
	data := []byte(`{"name":"Log4Shell","cve":"cve-2021-44228","severity":"CRITICAL"}

{"cve":"CVE-2014-0160","severity":"unknown","cwe":"cwe-119"}
`)
	findings, err := ParseOutput(tool.OutputJSONLVulnerability, data)
	require.NoError(t, err)
	require.Len(t, findings, 2)

	first := findings[0].(*entity.Vulnerability)
	assert.Equal(t, "Log4Shell", first.Name)
	assert.Equal(t, "CVE-2021-44228", first.CVE)
	assert.Equal(t, finding.SeverityCritical, first.Severity)

	second := findings[1].(*entity.Vulnerability)
	assert.Equal(t, "CVE-2014-0160", second.Name)
	assert.Equal(t, "CWE-119", second.CWE)
	assert.Equal(t, finding.DefaultSeverity, second.Severity)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestParseOutput_JSONLMalformed(t *testing.T) {
	_, err := ParseOutput(tool.OutputJSONLVulnerability, []byte("{\"name\":\"x\"}\nnot json\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestParseOutput_NmapXML(t *testing.T) {
	findings, err := ParseOutput(tool.OutputNmapXML, []byte(nmapReport))
	require.NoError(t, err)

	hosts := entity.OfKind(findings, entity.KindHost)
	require.Len(t, hosts, 1)
	assert.Equal(t, "10.0.0.1", hosts[0].(*entity.Host).Address)
	assert.Equal(t, "Linux 5.X", hosts[0].(*entity.Host).OS)

	enums := entity.OfKind(findings, entity.KindEnumeration)
	require.Len(t, enums, 2)
	ssh := enums[0].(*entity.Enumeration)
	assert.Equal(t, 22, ssh.Port)
	assert.Equal(t, entity.PortOpen, ssh.PortStatus)
	assert.Equal(t, entity.ProtocolTCP, ssh.Protocol)
	assert.Equal(t, "ssh", ssh.Service)
	assert.Equal(t, "ssl/http", enums[1].(*entity.Enumeration).Service)

	techs := entity.OfKind(findings, entity.KindTechnology)
	require.Len(t, techs, 1)
	assert.Equal(t, &entity.Technology{ID: techs[0].Identity(), Name: "OpenSSH", Version: "8.9p1"}, techs[0])
}
