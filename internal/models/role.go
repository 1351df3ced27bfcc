package models

// Role defines what a connected channel is allowed to do in a live game.
type Role string

const (
	// RoleAny marks commands every connected channel may issue.
	RoleAny      Role = ""
	RoleOperator Role = "operator"
	RoleTeam     Role = "team"
)
