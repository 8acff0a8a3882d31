package models

// SourceKind discriminates the tracked-source variants.
type SourceKind string

const (
	SourceCompetitor SourceKind = "competitor"
	SourceHashtag    SourceKind = "hashtag"
)

// IsValidSourceKind checks if the given kind is a known variant.
func IsValidSourceKind(k SourceKind) bool {
	return k == SourceCompetitor || k == SourceHashtag
}

// Competitor is a tracked competitor account under a project.
type Competitor struct {
	ID         int64  `json:"id"`
	ProjectID  int64  `json:"project_id"`
	Username   string `json:"username"`
	ProfileURL string `json:"profile_url"`
	IsActive   bool   `json:"is_active"`
}

// Hashtag is a tracked hashtag under a project.
type Hashtag struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Tag       string `json:"tag"`
	IsActive  bool   `json:"is_active"`
}

// TrackedSource is the kind-tagged view of either variant, used for
// listings and for the denormalized (kind, id) reference on content items.
type TrackedSource struct {
	Kind      SourceKind `json:"kind"`
	ID        int64      `json:"id"`
	ProjectID int64      `json:"project_id"`
	Label     string     `json:"label"` // username or tag text
	IsActive  bool       `json:"is_active"`
}
