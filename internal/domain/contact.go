package domain

// Contact is a user eligible as a chat counterpart under the active filter.
type Contact struct {
	ID   string
	Name string
	Role Role
}

func ContactFromUser(u User) Contact {
	return Contact{ID: u.ID, Name: u.Name, Role: u.Role}
}
