package ruleset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	rulesPath := filepath.Join(dir, "rules.yaml")
	writeFile(t, rulesPath, `
rules:
  - name: trace
    type: set_headers
    hosts: ["api.example.com"]
    set_headers: {x-trace: "1"}
  - type: respond
    hosts: ["google.com"]
    body: hello
  - name: deny
    type: FAIL
    hosts: ["ads.example.com"]
  - name: fixtures
    type: map
    url: http://hello.com/sub
    path: ./fixtures
`)

	rs, err := Load(rulesPath, nil)
	require.NoError(t, err)
	require.Len(t, rs.Rules, 4)

	assert.Equal(t, "trace", rs.Rules[0].Name())
	assert.Equal(t, TypeSetHeaders, rs.Rules[0].Type())
	assert.Equal(t, "respond-1", rs.Rules[1].Name())
	assert.Equal(t, TypeFail, rs.Rules[2].Type())

	m, ok := rs.Rules[3].(*mapRule)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "fixtures"), m.path)
	assert.Equal(t, "http://hello.com/sub", m.url)
}

func TestLoad_Include(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.yaml"), `
include: ["rules.d/**/*.yaml", "main.yaml"]
rules:
  - name: first
    type: fail
`)
	writeFile(t, filepath.Join(dir, "rules.d", "b.yaml"), `
rules:
  - name: b
    type: fail
`)
	writeFile(t, filepath.Join(dir, "rules.d", "nested", "a.yaml"), `
rules:
  - name: nested-map
    type: map
    url: http://hello.com
    path: content.txt
`)

	rs, err := Load(filepath.Join(dir, "main.yaml"), nil)
	require.NoError(t, err)

	var names []string
	for _, r := range rs.Rules {
		names = append(names, r.Name())
	}
	assert.Equal(t, []string{"first", "b", "nested-map"}, names)

	m := rs.Rules[2].(*mapRule)
	assert.Equal(t, filepath.Join(dir, "rules.d", "nested", "content.txt"), m.path)
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("HTTPINTERCEPT_TEST_HOST", "env.example.com")
	rs, err := Parse([]byte(`
rules:
  - name: env
    type: fail
    hosts: ["${HTTPINTERCEPT_TEST_HOST}"]
`), "", nil)
	require.NoError(t, err)
	r := rs.Rules[0].(*failRule)
	assert.Equal(t, []string{"env.example.com"}, r.filter.hosts)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"unknown type", "rules:\n  - type: teleport\n", ErrUnknownRuleType},
		{"unknown field", "rules:\n  - type: fail\n    colour: red\n", ErrParseRules},
		{"malformed yaml", "rules: [\n", ErrParseRules},
		{"header rule without mutations", "rules:\n  - type: set_headers\n", ErrInvalidRule},
		{"bad host glob", "rules:\n  - type: fail\n    hosts: [\"[\"]\n", ErrInvalidRule},
		{"map without url", "rules:\n  - type: map\n    path: x\n", ErrInvalidRule},
		{"map without path", "rules:\n  - type: map\n    url: http://a\n", ErrInvalidRule},
		{"body and body_file", "rules:\n  - type: respond\n    body: a\n    body_file: b\n", ErrInvalidRule},
		{"missing body_file", "rules:\n  - type: respond\n    body_file: missing.txt\n", ErrReadBodyFile},
		{"bad status", "rules:\n  - type: respond\n    status: 42\n", ErrInvalidRule},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content), t.TempDir(), nil)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.ErrorIs(t, err, ErrLoadRules)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParse_Empty(t *testing.T) {
	rs, err := Parse(nil, "", nil)
	require.NoError(t, err)
	assert.Empty(t, rs.Rules)
}

func TestCompile(t *testing.T) {
	rs, err := Compile([]RuleConfig{
		{Type: TypeRespond, Body: "x"},
		{Type: TypeFail, Message: "no"},
	}, "", nil)
	require.NoError(t, err)
	require.Len(t, rs.Rules, 2)
	assert.Equal(t, "respond-0", rs.Rules[0].Name())
	assert.Equal(t, "fail-1", rs.Rules[1].Name())
}
