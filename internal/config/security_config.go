package config

type SecurityLevel int

const (
	SecurityPublic SecurityLevel = iota // No authentication
	SecurityAccess                      // Access token required
	SecurityOwner                       // Access token with the OWNER role required
)

// EndpointSecurityConfig maps HTTP route names to their required security level
var EndpointSecurityConfig = map[string]SecurityLevel{
	// Public
	"Health":        SecurityPublic,
	"ListOpenSlots": SecurityPublic,

	// Rentals - Access Protected
	"ReserveRental": SecurityAccess,
	"ListRentals":   SecurityAccess,
	"GetRental":     SecurityAccess,
	"MarkReturned":  SecurityAccess,

	// Rentals - Owner Protected
	"ConfirmReturn":       SecurityOwner,
	"UpdateBillingStatus": SecurityOwner,
	"RescheduleRental":    SecurityOwner,

	// Availability - Owner Protected
	"GetWeeklyTemplate":   SecurityOwner,
	"SetWeeklyTemplate":   SecurityOwner,
	"GetOwnerSettings":    SecurityOwner,
	"SetAutoConfirm":      SecurityOwner,
	"CreateScheduleBlock": SecurityOwner,
	"ListScheduleBlocks":  SecurityOwner,
	"DeleteScheduleBlock": SecurityOwner,
	"GenerateSlots":       SecurityOwner,
	"CreateSlot":          SecurityOwner,

	// Fittings - Access Protected
	"BookFitting":       SecurityAccess,
	"ListFittings":      SecurityAccess,
	"GetFitting":        SecurityAccess,
	"TransitionFitting": SecurityAccess,

	// Notifications - Access Protected
	"GetNotifications":     SecurityAccess,
	"MarkNotificationRead": SecurityAccess,
}

// GetSecurityLevel returns the security level for a given route name
func GetSecurityLevel(route string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[route]; exists {
		return level
	}
	// Default to access for unknown routes
	return SecurityAccess
}
