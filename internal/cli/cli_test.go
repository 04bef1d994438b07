package cli

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"
	"testing"

	"github.com/Veraticus/toro/internal/engine"
	"github.com/Veraticus/toro/internal/model"
	"github.com/Veraticus/toro/internal/storage"
	"github.com/Veraticus/toro/internal/upgrade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonBlockingReader_ReadLine(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		expectedValue string
		expectError   bool
	}{
		{name: "successful read", input: "test input\n", expectedValue: "test input"},
		{name: "read with extra whitespace", input: "  test input  \n", expectedValue: "test input"},
		{name: "empty line", input: "\n", expectedValue: ""},
		{name: "last line without newline", input: "yes", expectedValue: "yes"},
		{name: "no input", input: "", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nbr := NewNonBlockingReader(strings.NewReader(tt.input))
			result, err := nbr.ReadLine(context.Background())

			if tt.expectError {
				assert.ErrorIs(t, err, io.EOF)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedValue, result)
		})
	}
}

func TestNonBlockingReader_Cancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewNonBlockingReader(pr).ReadLine(ctx)
	assert.ErrorIs(t, err, ErrInputCancelled)
}

func TestNewNonBlockingReader_NilPanics(t *testing.T) {
	assert.Panics(t, func() { NewNonBlockingReader(nil) })
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{input: "y\n", want: true},
		{input: "YES\n", want: true},
		{input: "sí\n", want: true},
		{input: "n\n", want: false},
		{input: "\n", want: false},
		{input: "", want: false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			ok, err := Confirm(context.Background(), NewNonBlockingReader(strings.NewReader(tt.input)), &out, "Apply?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.Contains(t, out.String(), "Apply? [y/N]")
		})
	}
}

func TestInterruptHandler_NotInterrupted(t *testing.T) {
	var out bytes.Buffer
	h := NewInterruptHandler(&out)

	ctx, stop := h.HandleInterrupts(context.Background())
	select {
	case <-ctx.Done():
		t.Fatal("context should not be canceled before a signal")
	default:
	}

	stop()
	<-ctx.Done()
	assert.False(t, h.WasInterrupted())
	assert.Empty(t, out.String())
}

func TestInterruptHandler_Interrupt(t *testing.T) {
	var out bytes.Buffer
	h := NewInterruptHandler(&out)

	h.interrupt()
	h.interrupt()
	assert.True(t, h.WasInterrupted())
	assert.Equal(t, 1, strings.Count(out.String(), "Interrupted!"))
	assert.Contains(t, out.String(), "rolled back")
}

func TestProgress(t *testing.T) {
	var out bytes.Buffer
	p := NewProgress(&out, "Classifying")

	p.Update(0, 0)
	assert.Empty(t, out.String())

	for i := 1; i <= 3; i++ {
		p.Update(i, 3)
	}
	p.Finish()
	assert.Contains(t, out.String(), "3/3")
}

func TestRenderSummary(t *testing.T) {
	s := &engine.Summary{
		Procesados:      6,
		Categorizados:   4,
		SinMatch:        1,
		RefinadosNivel2: 1,
		Preservados:     1,
		Porcentajes:     engine.Porcentajes{Categorizados: 66.67, Refinados: 16.67},
		TopCategorias:   []engine.Count{{Key: "EGRESOS", Count: 2}},
		TopSubcategorias: []engine.Count{
			{Key: "EGRESOS:Servicios_Electricidad", Count: 1},
		},
		DryRun: true,
	}

	out := RenderSummary(s)
	assert.Contains(t, out, "Procesados: 6")
	assert.Contains(t, out, "66.67%")
	assert.Contains(t, out, "EGRESOS:Servicios_Electricidad")
	assert.Contains(t, out, "dry run")
}

func TestRenderSimulationAndUpgrade(t *testing.T) {
	sim := &upgrade.Simulation{
		From:  "v1",
		To:    "v2",
		Total: 3,
		Impacts: []upgrade.MappingImpact{
			{Mapping: model.UpgradeMapping{FromCat: "EGRESOS", ToCat: "GASTOS", ToSub: "Varios", Action: model.ActionMove}, Affected: 3},
		},
	}
	out := RenderSimulation(sim)
	assert.Contains(t, out, "Total afectados: 3")
	assert.Contains(t, out, "EGRESOS:*")
	assert.Contains(t, out, "GASTOS:Varios")

	res := &upgrade.ApplyResult{
		Procesados:   3,
		Actualizados: 2,
		Preservados:  1,
		AuditID:      "abc",
		Snapshot:     &storage.SnapshotInfo{ID: "auto-upgrade-1"},
	}
	out = RenderUpgrade("v1", "v2", res)
	assert.Contains(t, out, "Actualizados: 2")
	assert.Contains(t, out, "auto-upgrade-1")
}

func TestFormatConfidenceAndFuente(t *testing.T) {
	for _, c := range []int{100, HighConfidence, 70, LowConfidence, 0} {
		assert.Contains(t, FormatConfidence(c), strconv.Itoa(c))
	}

	assert.Contains(t, FormatFuente(model.FuenteManual), LockIcon)
	assert.Contains(t, FormatFuente(model.FuenteManual), "manual")
	assert.Contains(t, FormatFuente(model.FuenteUnset), "unset")
	assert.Equal(t, "cascada", FormatFuente(model.FuenteCascade))
}
