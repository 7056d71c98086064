package driven

// PresentationGate selects the visible UI surface. The core only issues
// directives; it never reads visual state back.
type PresentationGate interface {
	ShowCredentialPrompt()
	ShowMainSurface()
}
