package argument

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTemplate(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		names   []string
		wantErr string
	}{
		{name: "no placeholders", raw: "-sV -Pn"},
		{name: "single", raw: "-u {url}", names: []string{"url"}},
		{name: "repeated name listed once", raw: "{host} {port} {host}", names: []string{"host", "port"}},
		{name: "escaped braces", raw: "-H 'X: {{json}}' {target}", names: []string{"target"}},
		{name: "unclosed", raw: "-u {url", wantErr: "unclosed placeholder"},
		{name: "stray close", raw: "-u url}", wantErr: "single '}'"},
		{name: "empty name", raw: "-u {}", wantErr: "invalid placeholder name"},
		{name: "leading digit", raw: "{1st}", wantErr: "invalid placeholder name"},
		{name: "format verb rejected", raw: "{port:d}", wantErr: "invalid placeholder name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl, err := ParseTemplate(tt.raw)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.raw, tpl.String())
			if tt.names == nil {
				assert.Empty(t, tpl.Names())
			} else {
				assert.Equal(t, tt.names, tpl.Names())
			}
		})
	}
}

func TestTemplate_Format(t *testing.T) {
	tpl := MustParseTemplate("-w {wordlist} -u {{x}} {url}")

	out, err := tpl.Format(Values{"wordlist": "/w.txt", "url": "http://h"})
	require.NoError(t, err)
	assert.Equal(t, "-w /w.txt -u {x} http://h", out)

	_, err = tpl.Format(Values{"wordlist": "/w.txt", "url": ""})
	require.ErrorIs(t, err, ErrMissingValue)
	assert.Contains(t, err.Error(), `"url"`)

	_, err = tpl.Format(nil)
	assert.ErrorIs(t, err, ErrMissingValue)
}

func TestTemplate_FormatPartialOmitsEmptyPlaceholders(t *testing.T) {
	tpl := MustParseTemplate("nikto {intensity} -h {target}  {endpoint} -o {output}")

	out := tpl.FormatPartial(Values{"target": "10.0.0.1:80", "endpoint": "", "output": "/tmp/r.xml"})
	assert.Equal(t, "nikto -h 10.0.0.1:80 -o /tmp/r.xml", out)
	assert.NotContains(t, out, "  ")
}

func TestTemplate_FormatKeepsEachValueOneArgument(t *testing.T) {
	tpl := MustParseTemplate("-u {url}{endpoint}")

	out, err := tpl.Format(Values{"url": "http://10.0.0.1", "endpoint": "/a b -o /tmp/x"})
	require.NoError(t, err)
	assert.Equal(t, "-u http://10.0.0.1'/a b -o /tmp/x'", out)

	out, err = tpl.Format(Values{"url": "http://10.0.0.1", "endpoint": "/it's"})
	require.NoError(t, err)
	assert.Equal(t, `-u http://10.0.0.1'/it'\''s'`, out)
}

func TestTemplate_FormatPartialKeepsQuotedWhitespace(t *testing.T) {
	tpl := MustParseTemplate(`curl -H 'X-Scan:  yes'   {endpoint}  {intensity}`)

	out := tpl.FormatPartial(Values{"endpoint": "'/a  b'", "intensity": ""})
	assert.Equal(t, `curl -H 'X-Scan:  yes' '/a  b'`, out)

	out = tpl.FormatPartial(Values{"endpoint": `"/x \" y"`})
	assert.Equal(t, `curl -H 'X-Scan:  yes' "/x \" y"`, out)
}

func TestQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "10.0.0.1:80", want: "10.0.0.1:80"},
		{in: "http://h/a?b=c&d", want: "http://h/a?b=c&d"},
		{in: "", want: "''"},
		{in: "a b", want: "'a b'"},
		{in: "it's", want: `'it'\''s'`},
		{in: `C:\path`, want: `'C:\path'`},
		{in: `say "hi"`, want: `'say "hi"'`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Quote(tt.in), tt.in)
	}
}

func TestTemplate_Validate(t *testing.T) {
	tpl := MustParseTemplate("{target} {wordlist} {bogus}")
	assert.NoError(t, MustParseTemplate("{target}").Validate("target", "intensity"))

	err := tpl.Validate("target", "wordlist")
	require.ErrorIs(t, err, ErrUnknownPlaceholder)
	assert.Contains(t, err.Error(), "bogus")
}

func TestFormat(t *testing.T) {
	out, err := Format("--cve {cve}", Values{"cve": "CVE-2021-44228"})
	require.NoError(t, err)
	assert.Equal(t, "--cve CVE-2021-44228", out)

	_, err = Format("{", nil)
	assert.Error(t, err)
}

func TestMustParseTemplatePanics(t *testing.T) {
	assert.Panics(t, func() { MustParseTemplate("{oops") })
}

func TestValues(t *testing.T) {
	v := Values{}
	v.Set("a", "")
	assert.NotContains(t, v, "a")

	v.Append("ports", "80")
	v.Append("ports", "443")
	v.Append("ports", "80")
	v.Append("ports", "")
	assert.Equal(t, "80,443,80", v["ports"])

	v.Merge(Values{"ports": "8080", "host": "h"})
	assert.Equal(t, "80,443,80,8080", v["ports"])
	assert.Equal(t, "h", v["host"])

	clean := Values{"x": "", "y": "1"}.Clean()
	assert.Equal(t, Values{"y": "1"}, clean)
}
