package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternMembership(t *testing.T) {
	t.Parallel()

	p := New("Test", []string{"$_GET"}, []string{"clean"}, []string{"run"})
	assert.True(t, p.IsEntryPoint("$_GET"))
	assert.False(t, p.IsEntryPoint("_GET"))
	assert.True(t, p.IsSanitizer("clean"))
	assert.False(t, p.IsSanitizer("run"))
	assert.True(t, p.IsSink("run"))
	assert.False(t, p.IsSink("clean"))
}

func TestPatternValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern *Pattern
		wantErr string
	}{
		{"valid", New("SQLi", []string{"$_GET"}, nil, []string{"mysql_query"}), ""},
		{"no name", New("", []string{"$_GET"}, nil, []string{"mysql_query"}), "no name"},
		{"no entry points", New("SQLi", nil, nil, []string{"mysql_query"}), "no entry points"},
		{"no sinks", New("SQLi", []string{"$_GET"}, nil, nil), "no sinks"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.pattern.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()

	patterns := Default()
	require.Len(t, patterns, 2)
	for _, p := range patterns {
		assert.NoError(t, p.Validate())
	}

	sqli := patterns[0]
	assert.True(t, sqli.IsEntryPoint("$_GET"))
	assert.True(t, sqli.IsSanitizer("mysql_real_escape_string"))
	assert.True(t, sqli.IsSink("mysql_query"))

	xss := patterns[1]
	assert.True(t, xss.IsSink("echo"))
}
