package core

import "github.com/echotwin/echotwin/internal/vectorstore"

// Scope is the unit of quota accounting and vector-namespace isolation:
// either a user's personal profile, or one of their projects.
type Scope struct {
	UID       string
	ProjectID string // empty for profile scope
}

func ProfileScope(uid string) Scope {
	return Scope{UID: uid}
}

func ProjectScope(uid, projectID string) Scope {
	return Scope{UID: uid, ProjectID: projectID}
}

func (s Scope) IsProject() bool {
	return s.ProjectID != ""
}

// Namespace returns the vector-store partition key for this scope. Every
// vector operation for the scope must carry exactly this key.
func (s Scope) Namespace() string {
	if s.IsProject() {
		return vectorstore.ProjectNamespace(s.ProjectID)
	}
	return vectorstore.ProfileNamespace(s.UID)
}
