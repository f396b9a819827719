package domain

import "fmt"

const (
	// InstallerFileName is the fixed name of the served installer, both on
	// disk and in the Content-Disposition header.
	InstallerFileName = "framehub_0.1.0_x64_en-US.msi"

	// InstallerContentType is the MIME type sent with the installer.
	InstallerContentType = "application/x-msi"

	// DefaultPublicDir is the directory, relative to the working directory,
	// that holds the installer.
	DefaultPublicDir = "public"

	// DownloadPath is the primary download route.
	DownloadPath = "/api/download-msi"

	// DownloadAliasPath serves the same installer under a short route.
	DownloadAliasPath = "/download"
)

// ContentDisposition returns the attachment header value for the installer.
func ContentDisposition() string {
	return fmt.Sprintf("attachment; filename=%s", InstallerFileName)
}
