package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCan(t *testing.T) {
	tests := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleOwner, EventDelete, true},
		{RoleOwner, WebhookManage, true},
		{RoleAdmin, EventDelete, true},
		{RoleAdmin, WebhookManage, true},
		{RoleMember, EventRead, true},
		{RoleMember, EventDelete, false},
		{RoleMember, WebhookManage, false},
		{RoleViewer, EventRead, true},
		{RoleViewer, ChannelManage, false},
		{Role("guest"), EventRead, false},
		{RoleOwner, Action("billing.manage"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.action), func(t *testing.T) {
			assert.Equal(t, tt.want, Can(tt.role, tt.action))
		})
	}
}

func TestValidRole(t *testing.T) {
	assert.True(t, ValidRole(RoleMember))
	assert.False(t, ValidRole(Role("")))
}
