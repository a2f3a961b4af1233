package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medialert/medialert-engine/pkg/models"
)

func TestEPSService_ListActive(t *testing.T) {
	list := []*models.EPS{{ID: 1, Name: "Aliansalud", Status: models.EPSStatusActive}}
	svc := NewEPSService(&mockEPSRepository{list: list}, zap.NewNop())

	got, err := svc.ListActive(adminContext(1))
	require.NoError(t, err)
	assert.Equal(t, list, got)
}

func TestEPSService_ListActive_Error(t *testing.T) {
	svc := NewEPSService(&mockEPSRepository{err: errors.New("connection reset")}, zap.NewNop())

	_, err := svc.ListActive(adminContext(1))
	assert.Error(t, err)
}
