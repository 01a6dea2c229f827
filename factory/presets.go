package factory

// =============================================================================
// DEFAULT COACHING CATALOG
// =============================================================================

// DefaultCatalogJSON returns the catalog new organizations are seeded with.
func DefaultCatalogJSON() string {
	return `[
  {"id": "first-task", "name": "First Step", "description": "Complete your first task",
   "icon": "footprints", "reward_points": 10, "metric": "tasks_completed", "threshold": 1, "sort_order": 10},
  {"id": "tasks-10", "name": "Getting Things Done", "description": "Complete 10 tasks",
   "icon": "check-circle", "reward_points": 50, "metric": "tasks_completed", "threshold": 10, "sort_order": 20},
  {"id": "tasks-50", "name": "Execution Machine", "description": "Complete 50 tasks",
   "icon": "rocket", "reward_points": 200, "metric": "tasks_completed", "threshold": 50, "sort_order": 30},
  {"id": "streak-3", "name": "On a Roll", "description": "Check in 3 days in a row",
   "icon": "flame", "reward_points": 15, "metric": "checkin_streak", "threshold": 3, "sort_order": 40},
  {"id": "streak-7", "name": "Week Warrior", "description": "Check in 7 days in a row",
   "icon": "calendar", "reward_points": 40, "metric": "checkin_streak", "threshold": 7, "sort_order": 50},
  {"id": "streak-30", "name": "Unstoppable", "description": "Check in 30 days in a row",
   "icon": "trophy", "reward_points": 150, "metric": "checkin_streak", "threshold": 30, "sort_order": 60},
  {"id": "gems-100", "name": "Gem Collector", "description": "Earn 100 gems",
   "icon": "gem", "reward_points": 0, "metric": "currency_earned", "threshold": 100, "sort_order": 70},
  {"id": "gems-500", "name": "Treasure Keeper", "description": "Earn 500 gems",
   "icon": "crown", "reward_points": 25, "metric": "currency_earned", "threshold": 500, "sort_order": 80},
  {"id": "first-message", "name": "Say Hello", "description": "Send your first message to your coach",
   "icon": "message", "reward_points": 5, "metric": "messages_sent", "threshold": 1, "sort_order": 90},
  {"id": "messages-25", "name": "In Constant Contact", "description": "Send 25 messages",
   "icon": "messages", "reward_points": 30, "metric": "messages_sent", "threshold": 25, "sort_order": 100},
  {"id": "coach-pick", "name": "Coach's Pick", "description": "Awarded by your coach",
   "icon": "star", "reward_points": 100, "metric": "manual", "sort_order": 110}
]`
}
