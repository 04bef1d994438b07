package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/toro/internal/engine"
	"github.com/Veraticus/toro/internal/model"
	"github.com/Veraticus/toro/internal/service"
	"github.com/Veraticus/toro/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeFromFlags(t *testing.T) {
	tests := []struct {
		check   func(t *testing.T, scope service.UpgradeScope)
		flags   map[string]string
		name    string
		wantErr bool
	}{
		{
			name:  "no flags",
			flags: map[string]string{},
			check: func(t *testing.T, scope service.UpgradeScope) {
				t.Helper()
				assert.True(t, scope.IsZero())
			},
		},
		{
			name:  "batch and dates",
			flags: map[string]string{"batch": "7", "desde": "2024-01-01", "hasta": "2024-01-31"},
			check: func(t *testing.T, scope service.UpgradeScope) {
				t.Helper()
				require.NotNil(t, scope.BatchID)
				assert.Equal(t, int64(7), *scope.BatchID)
				require.NotNil(t, scope.Desde)
				require.NotNil(t, scope.Hasta)
				assert.Equal(t, time.January, scope.Desde.Month())
				assert.Equal(t, 31, scope.Hasta.Day())
			},
		},
		{
			name:    "bad date",
			flags:   map[string]string{"desde": "01/02/2024"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{}
			addScopeFlags(cmd)
			for k, v := range tt.flags {
				require.NoError(t, cmd.Flags().Set(k, v))
			}

			scope, err := scopeFromFlags(cmd)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, scope)
		})
	}
}

func TestFilterFromFlags(t *testing.T) {
	cmd := &cobra.Command{}
	addFilterFlags(cmd)

	filter := filterFromFlags(cmd)
	assert.Nil(t, filter.BatchID)
	assert.Nil(t, filter.ConfidenceBelow)

	require.NoError(t, cmd.Flags().Set("confidence-below", "80"))
	require.NoError(t, cmd.Flags().Set("month", "2024-03"))
	require.NoError(t, cmd.Flags().Set("limit", "10"))

	filter = filterFromFlags(cmd)
	require.NotNil(t, filter.ConfidenceBelow)
	assert.Equal(t, 80, *filter.ConfidenceBelow)
	assert.Equal(t, "2024-03", filter.Month)
	assert.Equal(t, 10, filter.Limit)
}

func TestFormattingHelpers(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "Transfe...", truncate("Transferencia por CBU", 10))
	assert.Equal(t, "Débito ...", truncate("Débito automático", 10))

	assert.Equal(t, "-", label("", ""))
	assert.Equal(t, "EGRESOS", label("EGRESOS", ""))
	assert.Equal(t, "EGRESOS/Servicios", label("EGRESOS", "Servicios"))

	_, err := parseID("abc")
	assert.Error(t, err)
	_, err = parseID("0")
	assert.Error(t, err)
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestClassifyCommand(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dbPath := filepath.Join(t.TempDir(), "toro.db")

	ctx := context.Background()
	store, err := storage.NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))

	fecha := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err = store.SaveMovements(ctx, []model.Movement{
		{Fecha: fecha, Descripcion: "PAGO IVA MENSUAL", Monto: decimal.NewFromInt(-1500)},
		{Fecha: fecha, Descripcion: "Compra VISA Débito", Detalle: "EPEC CORDOBA", Monto: decimal.NewFromInt(-800)},
		{Fecha: fecha, Descripcion: "zzz texto sin reglas", Monto: decimal.NewFromInt(-1)},
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"--db", dbPath, "--log-level", "error", "classify", "--json"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.ExecuteContext(ctx))

	var summary engine.Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, 3, summary.Procesados)
	assert.Equal(t, 2, summary.Categorizados)
	assert.Equal(t, 1, summary.SinMatch)
	assert.Equal(t, 1, summary.RefinadosNivel2)
	assert.False(t, summary.DryRun)

	store, err = storage.NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	movements, err := store.GetMovements(ctx, service.MovementFilter{})
	require.NoError(t, err)
	require.Len(t, movements, 3)
	assert.Equal(t, "Impuestos-IVA", movements[0].Subcategoria)
	assert.Equal(t, "Servicios_Electricidad", movements[1].Subcategoria)
	assert.Equal(t, model.FuenteCascade, movements[1].Fuente)
	assert.Equal(t, model.CategoryOtros, movements[2].Categoria)
}
