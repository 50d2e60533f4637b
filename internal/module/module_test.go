package module

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDescriptor() Descriptor {
	return Descriptor{
		ID: "VaultModule",
		Build: func(m *Builder) Result {
			owner := m.GetParameter("owner", "0x0000000000000000000000000000000000000001")
			limit := m.GetParameter("limit", 100)
			vault := m.Contract("Vault", owner, "literal", limit)
			return Result{"vault": vault}
		},
	}
}

func TestBuild_Defaults(t *testing.T) {
	plan, err := Build(testDescriptor(), nil)
	require.NoError(t, err)

	assert.Equal(t, "VaultModule", plan.ModuleID)
	require.Len(t, plan.Futures, 1)

	f := plan.Futures[0]
	assert.Equal(t, "VaultModule#Vault", f.ID)
	assert.Equal(t, "Vault", f.Contract)
	assert.Equal(t, []any{"0x0000000000000000000000000000000000000001", "literal", 100}, f.ResolvedArgs())
	assert.Equal(t, ArgParameter, f.Args[0].Kind)
	assert.Equal(t, ArgLiteral, f.Args[1].Kind)
	assert.Same(t, f, plan.Results["vault"])

	for _, p := range plan.Parameters {
		assert.False(t, p.Overridden, p.Name)
	}
}

func TestBuild_Overrides(t *testing.T) {
	params := Parameters{}
	params.Set("VaultModule", "limit", "250")
	params.Set("OtherModule", "owner", "ignored")

	plan, err := Build(testDescriptor(), params)
	require.NoError(t, err)

	args := plan.Futures[0].ResolvedArgs()
	assert.Equal(t, "0x0000000000000000000000000000000000000001", args[0])
	assert.Equal(t, "250", args[2])

	limit := plan.Parameters[1]
	assert.Equal(t, "limit", limit.Name)
	assert.True(t, limit.Overridden)
	assert.Equal(t, 100, limit.Default)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name  string
		build func(m *Builder) Result
		err   error
	}{
		{
			name: "duplicate future",
			build: func(m *Builder) Result {
				m.Contract("Token")
				m.Contract("Token")
				return nil
			},
			err: ErrDuplicateFuture,
		},
		{
			name: "duplicate parameter",
			build: func(m *Builder) Result {
				m.GetParameter("a", 1)
				m.GetParameter("a", 2)
				m.Contract("Token")
				return nil
			},
			err: ErrDuplicateParameter,
		},
		{
			name:  "empty module",
			build: func(m *Builder) Result { return nil },
			err:   ErrEmptyModule,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(Descriptor{ID: "M", Build: tt.build}, nil)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestBuild_UnknownParameter(t *testing.T) {
	params := Parameters{}
	params.Set("VaultModule", "limt", 5)
	params.Set("VaultModule", "limit", 5)

	_, err := Build(testDescriptor(), params)
	require.ErrorIs(t, err, ErrUnknownParameter)
	assert.ErrorContains(t, err, "limt")
	assert.ErrorContains(t, err, "owner, limit")
}

func TestPlan_Describe(t *testing.T) {
	params := Parameters{}
	params.Set("VaultModule", "limit", 5)

	plan, err := Build(testDescriptor(), params)
	require.NoError(t, err)

	s := plan.Describe()
	assert.Equal(t, "VaultModule", s.Module)
	require.Len(t, s.Futures, 1)
	assert.Equal(t, "VaultModule#Vault", s.Futures[0].ID)
	assert.Equal(t, []any{"0x0000000000000000000000000000000000000001", "literal", 5}, s.Futures[0].Args)

	require.Len(t, s.Parameters, 2)
	assert.False(t, s.Parameters[0].Overridden)
	assert.Equal(t, ParameterSummary{Name: "limit", Value: 5, Default: 100, Overridden: true}, s.Parameters[1])
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(testDescriptor(), Descriptor{ID: "AModule"})
	r.Alias("Vault", "VaultModule")

	d, err := r.Lookup("VaultModule")
	require.NoError(t, err)
	assert.Equal(t, "VaultModule", d.ID)

	d, err = r.Lookup("Vault")
	require.NoError(t, err)
	assert.Equal(t, "VaultModule", d.ID)

	_, err = r.Lookup("vaultmodule")
	assert.ErrorIs(t, err, ErrUnknownModule)

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "AModule", all[0].ID)
}

func TestRegistry_Canonicalize(t *testing.T) {
	r := NewRegistry(testDescriptor())
	r.Alias("Vault", "VaultModule")

	params, err := r.Canonicalize(Parameters{
		"Vault":       {"limit": 5},
		"VaultModule": {"owner": "0x02"},
	})
	require.NoError(t, err)
	assert.Equal(t, Parameters{"VaultModule": {"limit": 5, "owner": "0x02"}}, params)

	plan, err := Build(testDescriptor(), params)
	require.NoError(t, err)
	assert.Equal(t, []any{"0x02", "literal", 5}, plan.Futures[0].ResolvedArgs())

	_, err = r.Canonicalize(Parameters{"Vualt": {"limit": 5}})
	assert.ErrorIs(t, err, ErrUnknownModule)

	_, err = r.Canonicalize(Parameters{
		"Vault":       {"limit": 5},
		"VaultModule": {"limit": 6},
	})
	assert.ErrorIs(t, err, ErrDuplicateParameter)
}

func TestLoadParameters(t *testing.T) {
	dir := t.TempDir()

	t.Run("json keeps big numbers exact", func(t *testing.T) {
		path := filepath.Join(dir, "params.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"VaultModule": {"limit": 123456789012345678901234, "owner": "0xabc"}}`), 0644))

		params, err := LoadParameters(path)
		require.NoError(t, err)
		assert.Equal(t, json.Number("123456789012345678901234"), params["VaultModule"]["limit"])
		assert.Equal(t, "0xabc", params["VaultModule"]["owner"])
	})

	t.Run("yaml keeps integers as text", func(t *testing.T) {
		path := filepath.Join(dir, "params.yaml")
		data := "VaultModule:\n" +
			"  limit: 42\n" +
			"  price: 123456789012345678901234\n" +
			"  quoted: \"7\"\n" +
			"  owner: 0x337610d27c682E347C9cD60BD4b3b107C9d34dDd\n" +
			"  ratio: 1.5\n" +
			"  enabled: true\n"
		require.NoError(t, os.WriteFile(path, []byte(data), 0644))

		params, err := LoadParameters(path)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"limit":   "42",
			"price":   "123456789012345678901234",
			"quoted":  "7",
			"owner":   "0x337610d27c682E347C9cD60BD4b3b107C9d34dDd",
			"ratio":   1.5,
			"enabled": true,
		}, params["VaultModule"])
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadParameters(filepath.Join(dir, "nope.json"))
		assert.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"VaultModule": [`), 0644))
		_, err := LoadParameters(path)
		assert.Error(t, err)
	})
}

func TestParseAssignment(t *testing.T) {
	tests := []struct {
		in      string
		module  string
		name    string
		value   string
		wantErr bool
	}{
		{in: "price=1000", module: "Default", name: "price", value: "1000"},
		{in: "Other.owner=0x1", module: "Other", name: "owner", value: "0x1"},
		{in: "empty=", module: "Default", name: "empty", value: ""},
		{in: "novalue", wantErr: true},
		{in: "=1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			mod, name, value, err := ParseAssignment(tt.in, "Default")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.module, mod)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.value, value)
		})
	}
}
