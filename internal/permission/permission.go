// Package permission maps organization roles to the actions they may perform.
package permission

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

type Action string

const (
	EventRead     Action = "event.read"
	EventDelete   Action = "event.delete"
	WebhookManage Action = "webhook.manage"
	ChannelManage Action = "channel.manage"
	PushSubscribe Action = "push.subscribe"
)

var grants = map[Role]map[Action]bool{
	RoleOwner: {
		EventRead:     true,
		EventDelete:   true,
		WebhookManage: true,
		ChannelManage: true,
		PushSubscribe: true,
	},
	RoleAdmin: {
		EventRead:     true,
		EventDelete:   true,
		WebhookManage: true,
		ChannelManage: true,
		PushSubscribe: true,
	},
	RoleMember: {
		EventRead:     true,
		ChannelManage: true,
		PushSubscribe: true,
	},
	RoleViewer: {
		EventRead:     true,
		PushSubscribe: true,
	},
}

// Can reports whether role may perform action. Unknown roles may do nothing.
func Can(role Role, action Action) bool {
	return grants[role][action]
}

func ValidRole(role Role) bool {
	_, ok := grants[role]
	return ok
}
