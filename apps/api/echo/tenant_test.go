package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/askante/core/tenant"
)

func TestTenantApi_unpaidInvoice(t *testing.T) {
	app := setup(t)

	rec := app.do(httpTest{path: "/api/invoices/organization", token: getToken(t, app.conf, admin)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Results *tenant.Invoice `json:"results"`
	}
	decode(t, rec, &resp)
	require.NotNil(t, resp.Results)
	assert.Equal(t, unpaid.ID, resp.Results.ID)

	tt := httpTest{
		path: "/api/invoices/organization", token: getToken(t, app.conf, superuser),
		wantCode: http.StatusOK, wantData: []byte(`{"err":false,"msg":"Success","results":null}`),
	}
	checkCodeAndData(t, tt, app.do(tt))
}

func TestTenantApi_isolation(t *testing.T) {
	app := setup(t)
	adminToken := getToken(t, app.conf, admin)

	tests := []struct {
		name      string
		path      string
		token     string
		wantCode  int
		wantCount int
	}{
		{name: "superuser sees every organization", path: "/api/organizations", token: getToken(t, app.conf, superuser), wantCode: http.StatusOK, wantCount: 2},
		{name: "superuser narrows to one organization", path: "/api/organizations?organization=2", token: getToken(t, app.conf, superuser), wantCode: http.StatusOK, wantCount: 1},
		{name: "own institutions", path: "/api/institutions", token: adminToken, wantCode: http.StatusOK, wantCount: 1},
		{name: "organization parameter never widens", path: "/api/institutions?organization=2", token: adminToken, wantCode: http.StatusOK, wantCount: 0},
		{name: "other tenant's institutions", path: "/api/institutions", token: getToken(t, app.conf, student), wantCode: http.StatusOK, wantCount: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(httpTest{path: tt.path, token: tt.token})
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			var page struct {
				Count int `json:"count"`
			}
			decode(t, rec, &page)
			assert.Equal(t, tt.wantCount, page.Count)
		})
	}

	tt := httpTest{
		path: "/api/organizations/2", token: adminToken,
		wantCode: http.StatusNotFound, wantData: errBody(t, "Organization not found."),
	}
	checkCodeAndData(t, tt, app.do(tt))
}
