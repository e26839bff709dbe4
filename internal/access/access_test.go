package access

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

func TestChecker_UsesContextProfile(t *testing.T) {
	checker := NewChecker(FullProfile())

	ctx := WithProfile(context.Background(), ReadOnlyProfile())
	require.True(t, checker.Can(ctx, domain.RecordKindOrder, domain.ActionRead))
	require.False(t, checker.Can(ctx, domain.RecordKindOrder, domain.ActionUpdate))

	require.True(t, checker.Can(context.Background(), domain.RecordKindOrderLine, domain.ActionCreate))
}

func TestRequire(t *testing.T) {
	checker := NewChecker(ReadOnlyProfile())

	require.NoError(t, Require(context.Background(), checker, domain.ActionRead, domain.RecordKindCatalogEntry, domain.RecordKindPriceBook))

	err := Require(context.Background(), checker, domain.ActionCreate, domain.RecordKindOrderLine)
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrPermissionDenied))
}

func TestParse_CustomProfile(t *testing.T) {
	registry, err := Parse([]byte(`
default_profile: sales
profiles:
  sales:
    order: [read]
    order_line: [read, create]
    catalog_entry: [read]
    price_book: [read]
`))
	require.NoError(t, err)

	def := registry.Default()
	require.Equal(t, "sales", def.Name)
	require.True(t, def.Allows(domain.RecordKindOrderLine, domain.ActionCreate))
	require.False(t, def.Allows(domain.RecordKindOrderLine, domain.ActionUpdate))
	require.False(t, def.Allows(domain.RecordKindOrder, domain.ActionUpdate))

	_, ok := registry.Lookup(ProfileFull)
	require.True(t, ok, "built-in profiles must stay available")
	require.Equal(t, []string{ProfileFull, ProfileReadOnly, "sales"}, registry.Names())
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("profiles:\n  x:\n    invoice: [read]\n"))
	require.Error(t, err)

	_, err = Parse([]byte("profiles:\n  x:\n    order: [delete]\n"))
	require.Error(t, err)

	_, err = Parse([]byte("default_profile: ghost\n"))
	require.Error(t, err)

	_, err = Parse([]byte("profiles: ["))
	require.Error(t, err)
}

func TestLoadFile_MissingFallsBackToDefaults(t *testing.T) {
	registry, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Equal(t, ProfileFull, registry.Default().Name)
}

func TestLoadFile_ReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_profile: readonly\n"), 0o600))

	registry, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, ProfileReadOnly, registry.Default().Name)
}

func TestProfile_Grants(t *testing.T) {
	grants := FullProfile().Grants()
	require.Equal(t, []domain.Action{domain.ActionCreate, domain.ActionRead, domain.ActionUpdate}, grants[domain.RecordKindOrder])
}
