// Package domain holds the static content and constants shared by the
// landing page, the download endpoint, and the download client.
package domain

// FrameworkDescriptor is one entry of the framework list shown on the
// landing page.
type FrameworkDescriptor struct {
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

// FeatureCard is one of the product feature tiles under the hero section.
type FeatureCard struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// PlaceholderIcon is served from the embedded static assets.
const PlaceholderIcon = "/static/placeholder.svg"

var frameworks = [...]FrameworkDescriptor{
	{Name: "Next.js", Icon: PlaceholderIcon, Description: "The React Framework for Production"},
	{Name: "Nuxt.js", Icon: PlaceholderIcon, Description: "The Intuitive Vue Framework"},
	{Name: "SvelteKit", Icon: PlaceholderIcon, Description: "The fastest way to build Svelte apps"},
	{Name: "Remix", Icon: PlaceholderIcon, Description: "Full stack web framework"},
	{Name: "Astro", Icon: PlaceholderIcon, Description: "The all-in-one web framework"},
	{Name: "Gatsby", Icon: PlaceholderIcon, Description: "The fastest frontend for the headless web"},
}

var features = [...]FeatureCard{
	{Title: "Multiple Frameworks", Description: "Support for popular frameworks like Next.js, React, Vue, and more.", Icon: "🎨"},
	{Title: "Custom Configuration", Description: "Tailor your project setup with easy-to-use configuration options.", Icon: "⚙️"},
	{Title: "Quick Start", Description: "Generate and run your project with just a few clicks.", Icon: "🚀"},
}

// Frameworks returns the framework list in display order. The returned
// slice is a copy; the table itself never changes.
func Frameworks() []FrameworkDescriptor {
	out := make([]FrameworkDescriptor, len(frameworks))
	copy(out, frameworks[:])
	return out
}

// Features returns the feature cards in display order.
func Features() []FeatureCard {
	out := make([]FeatureCard, len(features))
	copy(out, features[:])
	return out
}

// Site copy used by the page template.
const (
	ProductName  = "Framework Chooser"
	HeroTagline  = "Select, configure, and initialize your preferred web development framework with ease. Start building your next project in minutes!"
	ListHeading  = "Available Full-Stack Frameworks"
	CopyrightTag = "© 2023 Framework Chooser. All rights reserved."
)
