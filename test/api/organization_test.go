package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/trace-api/internal/model"
	apperrors "github.com/jwalitptl/trace-api/pkg/errors"
)

func TestRegisterOrganization(t *testing.T) {
	e := newEnv()

	rec, resp := e.request(t, http.MethodPost, "/organizations", "", map[string]interface{}{
		"name":          "Meditech Supplies",
		"type":          "DISTRIBUTOR",
		"contact_email": "ops@meditech.example",
		"contact_phone": "+15550001111",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.True(t, resp.Success)

	var org model.Organization
	require.NoError(t, json.Unmarshal(resp.Data, &org))
	assert.Equal(t, model.OrgStatusPendingApproval, org.Status)
	assert.Equal(t, "Meditech Supplies", e.s.orgs[org.ID].Name)
}

func TestRegisterOrganizationRejectsUnknownType(t *testing.T) {
	e := newEnv()

	rec, resp := e.request(t, http.MethodPost, "/organizations", "", map[string]interface{}{
		"name":          "Pharmacy Plus",
		"type":          "PHARMACY",
		"contact_email": "ops@pharmacy.example",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, int(apperrors.ErrValidation), resp.Error.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	e := newEnv()

	rec, _ := e.request(t, http.MethodGet, "/organizations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = e.request(t, http.MethodGet, "/organizations", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetOrganization(t *testing.T) {
	e := newEnv()
	mfr := e.s.addOrg(model.OrgTypeManufacturer, model.OrgStatusActive)

	rec, resp := e.request(t, http.MethodGet, "/organizations/"+mfr.ID.String(), e.token(t, mfr), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)

	var org model.Organization
	require.NoError(t, json.Unmarshal(resp.Data, &org))
	assert.Equal(t, mfr.ID, org.ID)
}
