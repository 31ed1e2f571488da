package models

// ProfileStatus is the scraped account state of a target profile.
type ProfileStatus string

const (
	ProfileVerified   ProfileStatus = "Verified"
	ProfileUnverified ProfileStatus = "Unverified"
	ProfileSuspended  ProfileStatus = "Suspended"
	ProfileUnknown    ProfileStatus = "Unknown"
)

// Profile holds the fields scraped from a target's profile page. It is
// read-only after the scrape; individual fields may be empty when the page
// variant does not expose them.
type Profile struct {
	Nick      string        `json:"nick"`
	Name      string        `json:"name"`
	Status    ProfileStatus `json:"status"`
	City      string        `json:"city,omitempty"`
	Gender    string        `json:"gender,omitempty"`
	Posts     int           `json:"posts"`
	Followers int           `json:"followers"`
	URL       string        `json:"url"`
}
