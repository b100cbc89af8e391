package users

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsAtLeast checks if this role meets the minimum required level
func (r UserRole) IsAtLeast(minRole UserRole) bool {
	roleHierarchy := map[UserRole]int{
		RoleUser:  0,
		RoleAdmin: 1,
	}

	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleUser,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, role.IsValid()
}

// IsValid checks if the user type is part of the closed enumeration
func (t UserType) IsValid() bool {
	switch t {
	case UserTypeDeveloper, UserTypeManager, UserTypeEmployee,
		UserTypeDesigner, UserTypeQA, UserTypeHR:
		return true
	default:
		return false
	}
}

// GetAllUserTypes returns the closed user type enumeration
func GetAllUserTypes() []UserType {
	return []UserType{
		UserTypeDeveloper,
		UserTypeManager,
		UserTypeEmployee,
		UserTypeDesigner,
		UserTypeQA,
		UserTypeHR,
	}
}

// ParseUserType safely parses a string into a UserType
func ParseUserType(s string) (UserType, bool) {
	t := UserType(s)
	return t, t.IsValid()
}

// IsValid checks the status enumeration
func (s UserStatus) IsValid() bool {
	switch s {
	case UserStatusActive, UserStatusInactive:
		return true
	default:
		return false
	}
}

// ParseStatus safely parses a string into a UserStatus
func ParseStatus(s string) (UserStatus, bool) {
	status := UserStatus(s)
	return status, status.IsValid()
}
