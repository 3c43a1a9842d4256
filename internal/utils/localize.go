package utils // package utils provides small helpers shared across the gateway

// Localizer translates user-visible text. The gateway itself ships no
// translation tables; platforms embedding it supply their own function.
type Localizer func(text string) string

// NewLocalizer returns the localize function for the active locale: the
// identity function when the active locale equals the default, otherwise
// the provided translate function.
func NewLocalizer(activeLocale, defaultLocale string, translate Localizer) Localizer {
	if activeLocale == defaultLocale || translate == nil {
		return func(s string) string { return s }
	}
	return translate
}
