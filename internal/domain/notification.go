package domain

// Notification variants.
const (
	VariantDefault     = "default"
	VariantDestructive = "destructive"
)

// Notification is the user-visible toast emitted after a download attempt.
type Notification struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Variant     string `json:"variant"`
}

// DownloadStarted is shown when the installer was received and saved.
var DownloadStarted = Notification{
	Title:       "Download Started",
	Description: "Your download has begun. Please check your downloads folder.",
	Variant:     VariantDefault,
}

// DownloadFailed is shown for any failed attempt.
var DownloadFailed = Notification{
	Title:       "Download Failed",
	Description: "There was an error starting your download. Please try again.",
	Variant:     VariantDestructive,
}
