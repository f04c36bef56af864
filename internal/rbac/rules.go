package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"quiz:view",
		"quiz:list",
		"attempt:submit",
		"eligibility:check",
		"leaderboard:view",
		"retest:create",
	},
	"teacher": {
		"quiz:create",
		"quiz:view",
		"quiz:list",
		"eligibility:check",
		"leaderboard:view",
		"retest:resolve",
		"retest:list",
		"users:bulk_upsert",
		"users:list",
	},
	"admin": {
		"*", // everything
	},
}
