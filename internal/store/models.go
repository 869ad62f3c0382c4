package store

import "time"

// Profile holds the structured personality and work-style fields embedded
// verbatim into the answering system prompt. All fields are free-form text.
type Profile struct {
	Bio                string `json:"bio"`
	Personality        string `json:"personality"`
	WorkStyle          string `json:"workStyle"`
	CommunicationStyle string `json:"communicationStyle"`
	Interests          string `json:"interests"`
	WritingSample      string `json:"writingSample"`
}

type User struct {
	UID      string  `json:"uid"`
	Username string  `json:"username"` // derived from email, unique
	Email    string  `json:"email"`
	PhotoURL string  `json:"photoURL"`
	Profile  Profile `json:"profile"`

	IsPro bool `json:"isPro"`

	ProjectLimit          int64 `json:"projectLimit"`
	ProfileCharacterLimit int64 `json:"profileCharacterLimit"`
	ProjectCharacterLimit int64 `json:"projectCharacterLimit"`

	// Counters are mutated only through the quota ledger, as single atomic
	// deltas. ProfileCharactersUsed never exceeds ProfileCharacterLimit
	// after a successful write; same per project entry.
	ProfileCharactersUsed int64            `json:"profileCharactersUsed"`
	ProjectCharactersUsed map[string]int64 `json:"projectCharactersUsed"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Project struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"ownerId"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	SystemPrompt string    `json:"systemPrompt"` // optional override for answering
	IsPublic     bool      `json:"isPublic"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

const (
	KindConversation = "conversation"
	KindFile         = "file"
)

// ContentItem is a stored unit of ingested text. CharacterCount is fixed at
// creation (len of the extracted text) and is the amount released from the
// owning scope's counter when the item is deleted.
type ContentItem struct {
	ID             string    `json:"id"`
	UID            string    `json:"uid"`
	ProjectID      string    `json:"projectId,omitempty"` // empty for profile scope
	Kind           string    `json:"kind"`
	Text           string    `json:"text"`
	CharacterCount int64     `json:"characterCount"`
	Filename       string    `json:"filename,omitempty"`
	MimeType       string    `json:"mimeType,omitempty"`
	IsWritingSample bool     `json:"isWritingSample,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// AuthCode is a single-use OAuth authorization code bound to a redirect URI
// and a PKCE challenge, with the bearer credential it will be exchanged for.
type AuthCode struct {
	Code            string    `json:"code"`
	UID             string    `json:"uid"`
	RedirectURI     string    `json:"redirectUri"`
	Challenge       string    `json:"challenge"`
	ChallengeMethod string    `json:"challengeMethod"`
	Token           string    `json:"-"`
	CreatedAt       time.Time `json:"createdAt"`
}
