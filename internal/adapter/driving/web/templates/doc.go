// Package templates holds the page shell shared by every web surface.
package templates

//go:generate go tool templ generate
