package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 6, 1, 15, 30, 0, 0, time.UTC)

func TestDaysRemaining(t *testing.T) {
	tests := []struct {
		name     string
		validade time.Time
		want     int
	}{
		{"expires today", now, 0},
		{"expires tomorrow", now.AddDate(0, 0, 1), 1},
		{"expires in thirty days", now.AddDate(0, 0, 30), 30},
		{"expired yesterday", now.AddDate(0, 0, -1), -1},
		{"long expired", now.AddDate(0, 0, -45), -45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Product{Validade: tt.validade}
			assert.Equal(t, tt.want, p.DaysRemaining(now))
		})
	}
}

func TestDaysRemainingIgnoresTimeOfDay(t *testing.T) {
	// 23:59 tomorrow is still one whole calendar day away from 00:01
	// today.
	early := time.Date(2024, 6, 1, 0, 1, 0, 0, time.UTC)
	p := Product{Validade: time.Date(2024, 6, 2, 23, 59, 0, 0, time.UTC)}
	assert.Equal(t, 1, p.DaysRemaining(early))
}

func TestNormalizeClearsTreatmentFieldsOnActive(t *testing.T) {
	treatedAt := now
	p := Product{
		Status:        StatusActive,
		TreatmentType: TreatmentSold,
		TreatmentDate: &treatedAt,
	}
	p.Normalize()
	assert.Empty(t, p.TreatmentType)
	assert.Nil(t, p.TreatmentDate)
}

func TestNormalizeDefaultsStatus(t *testing.T) {
	p := Product{}
	p.Normalize()
	assert.Equal(t, StatusActive, p.Status)
}

func TestValidate(t *testing.T) {
	treatedAt := now
	valid := Product{
		Descricao:   "Leite",
		CodProd:     "001",
		CodAuxiliar: "789001",
		Lote:        "L1",
		Quantidade:  10,
		Validade:    now.AddDate(0, 0, 30),
		Status:      StatusActive,
	}
	require.NoError(t, valid.Validate())

	missingName := valid
	missingName.Descricao = ""
	assert.Error(t, missingName.Validate())

	negative := valid
	negative.Quantidade = -1
	assert.Error(t, negative.Validate())

	treatedWithoutDate := valid
	treatedWithoutDate.Status = StatusTreated
	treatedWithoutDate.TreatmentType = TreatmentSold
	assert.Error(t, treatedWithoutDate.Validate())

	treated := valid
	treated.Status = StatusTreated
	treated.TreatmentType = TreatmentReturned
	treated.TreatmentDate = &treatedAt
	assert.NoError(t, treated.Validate())

	badType := treated
	badType.TreatmentType = "donated"
	assert.Error(t, badType.Validate())
}

func TestValidTreatmentType(t *testing.T) {
	assert.True(t, ValidTreatmentType(TreatmentSold))
	assert.True(t, ValidTreatmentType(TreatmentExchanged))
	assert.True(t, ValidTreatmentType(TreatmentReturned))
	assert.True(t, ValidTreatmentType(TreatmentExpired))
	assert.False(t, ValidTreatmentType("donated"))
	assert.False(t, ValidTreatmentType(""))
}
