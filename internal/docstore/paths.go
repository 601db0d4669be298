package docstore

// Document layout for a dashboard user. Everything lives under
// users/{uid}/whatsapp so that one file can hold several profiles.

// UserRoot is the subtree owned by one user.
func UserRoot(uid string) string { return "users/" + uid + "/whatsapp" }

// ConfigPath holds the bot configuration document.
func ConfigPath(uid string) string { return UserRoot(uid) + "/config" }

// ConfigFieldPath addresses one top-level field of the configuration.
func ConfigFieldPath(uid, field string) string { return ConfigPath(uid) + "/" + field }

// RulesPath holds the keyword rules keyed by rule id.
func RulesPath(uid string) string { return UserRoot(uid) + "/rules" }

// RulePath addresses a single rule.
func RulePath(uid, id string) string { return RulesPath(uid) + "/" + id }

// OrderPath addresses the stored copy of an order.
func OrderPath(uid, id string) string { return UserRoot(uid) + "/orders/" + id }

// DeletedOrdersPath holds one tombstone per order removed from the dashboard.
func DeletedOrdersPath(uid string) string { return UserRoot(uid) + "/deletedOrders" }

// DeletedOrderPath addresses the tombstone of one order.
func DeletedOrderPath(uid, id string) string { return DeletedOrdersPath(uid) + "/" + id }
