package learned

import (
	"context"
	"testing"

	"github.com/Veraticus/toro/internal/common"
	"github.com/Veraticus/toro/internal/model"
	"github.com/Veraticus/toro/internal/service"
	"github.com/Veraticus/toro/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivePattern(t *testing.T) {
	tests := []struct {
		name string
		desc string
		want string
		n    int
	}{
		{name: "first five words", desc: "COMPRA VISA DEBITO COMERCIO PEDIDOSYA ENTREGA 123", n: 5, want: "COMPRA VISA DEBITO COMERCIO PEDIDOSYA"},
		{name: "noise and spacing", desc: "  Compra   VISA!!!  ", n: 5, want: "COMPRA VISA"},
		{name: "accents stripped", desc: "Compra VISA Débito", n: 5, want: "COMPRA VISA DEBITO"},
		{name: "custom width", desc: "TRANSFERENCIA RECIBIDA DE JUAN", n: 2, want: "TRANSFERENCIA RECIBIDA"},
		{name: "default width", desc: "A B C D E F G", n: 0, want: "A B C D E"},
		{name: "empty", desc: "", n: 5, want: ""},
		{name: "punctuation only", desc: "***", n: 5, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DerivePattern(tt.desc, tt.n))
		})
	}
}

func TestStore_ObtainOrCreate(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	store := NewStore(db.Storage)

	rule, err := store.ObtainOrCreate(ctx, "FARMACIA DEL PUEBLO", "EGRESOS", "Salud")
	require.NoError(t, err)
	assert.Equal(t, InitialConfidence, rule.Confidence)
	assert.Equal(t, 1, rule.TimesUsed)
	assert.NotZero(t, rule.ID)

	rule, err = store.ObtainOrCreate(ctx, "FARMACIA DEL PUEBLO", "EGRESOS", "Salud-Farmacia")
	require.NoError(t, err)
	assert.Equal(t, 60, rule.Confidence)
	assert.Equal(t, 2, rule.TimesUsed)
	assert.Equal(t, "Salud-Farmacia", rule.Subcategoria, "latest correction wins")

	stored, err := db.Storage.GetLearnedRule(ctx, "FARMACIA DEL PUEBLO")
	require.NoError(t, err)
	assert.Equal(t, 60, stored.Confidence)
	assert.Equal(t, 2, stored.TimesUsed)

	for range 10 {
		rule, err = store.ObtainOrCreate(ctx, "FARMACIA DEL PUEBLO", "EGRESOS", "Salud")
		require.NoError(t, err)
	}
	assert.Equal(t, 100, rule.Confidence)
	assert.Equal(t, 12, rule.TimesUsed)

	_, err = store.ObtainOrCreate(ctx, "  ", "EGRESOS", "Salud")
	assert.ErrorIs(t, err, ErrEmptyPattern)
}

func seedRules(t *testing.T, storage service.Storage, rules ...model.LearnedRule) {
	t.Helper()
	for i := range rules {
		require.NoError(t, storage.SaveLearnedRule(context.Background(), &rules[i]))
	}
}

func TestStore_ObtainOrCreateCanonicalizesPattern(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)

	rule, err := NewStore(db.Storage).ObtainOrCreate(ctx, "Compra VISA Débito", "EGRESOS", "Gastos_Compras")
	require.NoError(t, err)
	assert.Equal(t, "COMPRA VISA DEBITO", rule.Pattern)

	again, err := NewStore(db.Storage).ObtainOrCreate(ctx, "compra visa debito", "EGRESOS", "Gastos_Compras")
	require.NoError(t, err)
	assert.Equal(t, rule.ID, again.ID, "case and accents map onto the same rule")
	assert.Equal(t, 2, again.TimesUsed)

	rules, err := db.Storage.GetLearnedRules(ctx)
	require.NoError(t, err)
	assert.Len(t, rules, 1)

	store, err := Open(ctx, db.Storage)
	require.NoError(t, err)
	hit, ok := store.Lookup("Compra VISA Débito PEDIDOSYA")
	require.True(t, ok)
	assert.Equal(t, rule.ID, hit.ID)

	_, err = NewStore(db.Storage).ObtainOrCreate(ctx, " *** ", "EGRESOS", "")
	assert.ErrorIs(t, err, ErrEmptyPattern)
}

func TestStore_LookupOrder(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	seedRules(t, db.Storage,
		model.LearnedRule{Pattern: "COMPRA VISA", Categoria: "EGRESOS", Subcategoria: "Compras", Confidence: 60, TimesUsed: 1},
		model.LearnedRule{Pattern: "COMPRA VISA DEBITO", Categoria: "EGRESOS", Subcategoria: "Tarjeta", Confidence: 80, TimesUsed: 1},
		model.LearnedRule{Pattern: "VISA", Categoria: "BANCARIO", Subcategoria: "Tarjeta", Confidence: 80, TimesUsed: 5},
	)

	store, err := Open(ctx, db.Storage)
	require.NoError(t, err)
	assert.Equal(t, 3, store.Len())

	rule, ok := store.Lookup("Compra VISA Débito farmacia")
	require.True(t, ok)
	assert.Equal(t, "VISA", rule.Pattern, "higher use count wins a confidence tie")

	rule, ok = store.Lookup("compra visa")
	require.True(t, ok)
	assert.Equal(t, "VISA", rule.Pattern)

	_, ok = store.Lookup("TRANSFERENCIA RECIBIDA")
	assert.False(t, ok)

	_, ok = store.Lookup("")
	assert.False(t, ok)
}

func TestStore_LookupTieBreaksOnID(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	seedRules(t, db.Storage,
		model.LearnedRule{Pattern: "PAGO SERVICIO", Categoria: "EGRESOS", Subcategoria: "Servicios", Confidence: 70, TimesUsed: 2},
		model.LearnedRule{Pattern: "PAGO", Categoria: "EGRESOS", Subcategoria: "Varios", Confidence: 70, TimesUsed: 2},
	)

	store, err := Open(ctx, db.Storage)
	require.NoError(t, err)

	rule, ok := store.Lookup("PAGO SERVICIO LUZ")
	require.True(t, ok)
	assert.Equal(t, "PAGO SERVICIO", rule.Pattern)
}

func TestStore_ApplyAndFlush(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	seedRules(t, db.Storage,
		model.LearnedRule{Pattern: "PEDIDOSYA", Categoria: "EGRESOS", Subcategoria: "Delivery", Confidence: 50, TimesUsed: 1},
	)

	store, err := Open(ctx, db.Storage)
	require.NoError(t, err)

	rule, ok := store.Lookup("COMPRA PEDIDOSYA 123")
	require.True(t, ok)

	confident := testutil.NewMovement("COMPRA PEDIDOSYA 123").Classified("OTROS", "Sin_Clasificar", 95, model.FuenteCascade).Build()
	store.Apply(rule, &confident)
	assert.Equal(t, "EGRESOS", confident.Categoria)
	assert.Equal(t, "Delivery", confident.Subcategoria)
	assert.Equal(t, 95, confident.Confianza, "movement confidence never decreases")
	assert.Equal(t, model.FuenteLearnedRule, confident.Fuente)
	assert.Equal(t, 51, rule.Confidence)
	assert.Equal(t, 2, rule.TimesUsed)

	fresh := testutil.NewMovement("COMPRA PEDIDOSYA 456").Build()
	rule, ok = store.Lookup(fresh.Descripcion)
	require.True(t, ok)
	store.Apply(rule, &fresh)
	assert.Equal(t, 51, fresh.Confianza)
	assert.Equal(t, 52, rule.Confidence)
	assert.Equal(t, 3, rule.TimesUsed)
	assert.Equal(t, 1, store.Dirty())

	stored, err := db.Storage.GetLearnedRule(ctx, "PEDIDOSYA")
	require.NoError(t, err)
	assert.Equal(t, 50, stored.Confidence, "nothing is written before Flush")

	require.NoError(t, store.Flush(ctx))
	assert.Zero(t, store.Dirty())

	stored, err = db.Storage.GetLearnedRule(ctx, "PEDIDOSYA")
	require.NoError(t, err)
	assert.Equal(t, 52, stored.Confidence)
	assert.Equal(t, 3, stored.TimesUsed)
}

func TestStore_ApplyCapsConfidence(t *testing.T) {
	db := testutil.SetupTestDB(t)
	seedRules(t, db.Storage,
		model.LearnedRule{Pattern: "EPEC", Categoria: "GASTOS", Subcategoria: "Servicios-Luz", Confidence: 100, TimesUsed: 40},
	)

	store, err := Open(context.Background(), db.Storage)
	require.NoError(t, err)

	rule, ok := store.Lookup("PAGO EPEC")
	require.True(t, ok)
	m := testutil.NewMovement("PAGO EPEC").Build()
	store.Apply(rule, &m)
	assert.Equal(t, 100, rule.Confidence)
	assert.Equal(t, 41, rule.TimesUsed)
	assert.Equal(t, 100, m.Confianza)
}

func TestAdmin_RememberAndForget(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	admin := NewAdmin(db.Storage, 0)

	rule, err := admin.Remember(ctx, "ana", "Compra VISA Débito Farmacia Central Sucursal 9", "EGRESOS", "Salud")
	require.NoError(t, err)
	assert.Equal(t, "COMPRA VISA DEBITO FARMACIA CENTRAL", rule.Pattern)
	assert.Equal(t, 50, rule.Confidence)

	rule, err = admin.Remember(ctx, "ana", "COMPRA VISA DEBITO FARMACIA CENTRAL 10", "EGRESOS", "Salud-Farmacia")
	require.NoError(t, err)
	assert.Equal(t, 60, rule.Confidence)
	assert.Equal(t, 2, rule.TimesUsed)

	rules, err := admin.List(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)

	entries := db.AuditEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, ActionLearnRule, entries[0].Action)
	assert.Equal(t, "ana", entries[0].Actor)
	assert.Equal(t, AuditEntity, entries[0].Entity)
	assert.EqualValues(t, 50, entries[0].Before["confidence"])
	assert.EqualValues(t, 60, entries[0].After["confidence"])
	assert.Nil(t, entries[1].Before, "first correction has no prior state")

	require.NoError(t, admin.Forget(ctx, "ana", "compra visa débito farmacia central"))

	rules, err = admin.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)

	entries = db.AuditEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, ActionForgetRule, entries[0].Action)
	assert.Nil(t, entries[0].After)

	err = admin.Forget(ctx, "ana", "NO EXISTE")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Len(t, db.AuditEntries(), 3, "failed forget leaves no audit entry")
}

func TestAdmin_RememberEmptyPattern(t *testing.T) {
	db := testutil.SetupTestDB(t)
	admin := NewAdmin(db.Storage, 5)

	_, err := admin.Remember(context.Background(), "ana", "!!!", "EGRESOS", "Varios")
	require.ErrorIs(t, err, ErrEmptyPattern)

	var userErr *common.UserError
	assert.ErrorAs(t, err, &userErr)
	assert.Empty(t, db.AuditEntries())
}
