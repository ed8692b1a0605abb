package realtime

import "cabride/internal/domain"

// DriversGroup is joined by every connected driver.
const DriversGroup = "drivers"

// UserGroup is the per-customer group.
func UserGroup(userID string) string { return "user_" + userID }

// DriverGroup is the per-driver group.
func DriverGroup(driverID string) string { return "driver_" + driverID }

// VehicleGroup is joined by drivers of one vehicle type.
func VehicleGroup(vt domain.VehicleType) string { return string(vt) }

// RideGroup is joined on demand by participants viewing one ride.
func RideGroup(rideID string) string { return rideID }
