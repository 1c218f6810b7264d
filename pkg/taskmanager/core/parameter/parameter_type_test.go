package parameter

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		typ     Type
		raw     string
		want    any
		wantErr bool
	}{
		{"string identity", String, " a b ", " a b ", false},
		{"integer", Integer, "42", 42, false},
		{"integer negative", Integer, "-7", -7, false},
		{"integer invalid", Integer, "4x", nil, true},
		{"boolean true", Boolean, "TRUE", true, false},
		{"boolean false", Boolean, "false", false, false},
		{"boolean invalid", Boolean, "yes", nil, true},
		{"file no existence check", File, "/does/not/exist.tif", "/does/not/exist.tif", false},
		{"sql fragment", SQL, "schema.table", "schema.table", false},
		{"sql separator rejected", SQL, "t; DROP TABLE x", nil, true},
		{"url without scheme", URL, "example.com/path", nil, true},
		{"url malformed", URL, "http://[::1", nil, true},
		{"url without host", URL, "http:///geoserver", nil, true},
		{"file url without path", URL, "file://", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.typ.Parse(tt.raw, nil)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidValue)
				assert.False(t, tt.typ.Validate(tt.raw, nil))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, tt.typ.Validate(tt.raw, nil))
		})
	}
}

func TestParseURL(t *testing.T) {
	got, err := URL.Parse("http://localhost:9090/geoserver", nil)
	require.NoError(t, err)
	u, ok := got.(*url.URL)
	require.True(t, ok)
	assert.Equal(t, "localhost:9090", u.Host)
}

func TestParseFileURL(t *testing.T) {
	got, err := URL.Parse("file:///data/roads.tif", nil)
	require.NoError(t, err)
	u, ok := got.(*url.URL)
	require.True(t, ok)
	assert.Equal(t, "file", u.Scheme)
	assert.Equal(t, "/data/roads.tif", u.Path)
	assert.True(t, URL.Validate("FILE:/data/roads.tif", nil))
}

func TestDomain(t *testing.T) {
	values, ok := Boolean.Domain(nil)
	assert.True(t, ok)
	assert.Equal(t, []string{"true", "false"}, values)

	for _, typ := range []Type{String, Integer, URL, File, SQL} {
		_, ok := typ.Domain(nil)
		assert.False(t, ok, typ.String())
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("sql")
	require.NoError(t, err)
	assert.Equal(t, KindSQL, k)
	assert.Equal(t, "BOOLEAN", Boolean.String())

	_, err = ParseKind("DATE")
	assert.Error(t, err)
}
