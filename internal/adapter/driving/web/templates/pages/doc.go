// Package pages holds the surfaces the presentation gate can show.
package pages
