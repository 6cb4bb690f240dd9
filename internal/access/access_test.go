package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/ticket-gate/internal/model"
)

func TestAllowed(t *testing.T) {
	cases := []struct {
		role   string
		action string
		want   bool
	}{
		{model.RoleAdmin, ScanTicket, true},
		{model.RoleAdmin, CreateUser, true},
		{model.RoleAdmin, "made_up_action", true},
		{model.RoleSubadmin, Export, true},
		{model.RoleSubadmin, DeleteTicket, true},
		{model.RoleSubadmin, CreateUser, false},
		{model.RoleSubadmin, ScanTicket, false},
		{model.RoleEditor, EditTicket, true},
		{model.RoleEditor, DeleteTicket, false},
		{model.RoleScanner, ScanTicket, true},
		{model.RoleScanner, Export, false},
		{model.RoleScanner, DeleteTicket, false},
		{"", ScanTicket, false},
		{"guest", ScanTicket, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Allowed(tc.role, tc.action), "%s/%s", tc.role, tc.action)
	}
}

func TestAuthorize(t *testing.T) {
	assert.ErrorIs(t, Authorize(model.Actor{}, ScanTicket), ErrUnauthenticated)
	assert.ErrorIs(t, Authorize(model.Actor{ID: 7, Role: model.RoleScanner}, Export), ErrForbidden)
	assert.NoError(t, Authorize(model.Actor{ID: 7, Role: model.RoleScanner}, ScanTicket))
	assert.NoError(t, Authorize(model.Actor{ID: 1, Role: model.RoleAdmin}, DeleteTicket))
}

func TestActions(t *testing.T) {
	assert.Equal(t, []string{ScanTicket}, Actions(model.RoleScanner))
	assert.Equal(t, []string{EditTicket, ViewEvents}, Actions(model.RoleEditor))
	assert.Empty(t, Actions(model.RoleAdmin))
}
