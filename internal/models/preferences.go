package models

import validation "github.com/go-ozzo/ozzo-validation/v4"

// Layout of the plugin panel.
type Layout string

const (
	LayoutPortrait  Layout = "portrait"
	LayoutLandscape Layout = "landscape"
)

// Theme of the plugin panel.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Preferences is the singleton settings record.
type Preferences struct {
	Layout   Layout `json:"layout"`
	Theme    Theme  `json:"theme"`
	Autosave bool   `json:"autosave"`
}

// DefaultPreferences is materialised on first read.
func DefaultPreferences() Preferences {
	return Preferences{
		Layout:   LayoutPortrait,
		Theme:    ThemeLight,
		Autosave: true,
	}
}

// Validate checks the enum fields.
func (p Preferences) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Layout, validation.Required, validation.In(LayoutPortrait, LayoutLandscape)),
		validation.Field(&p.Theme, validation.Required, validation.In(ThemeLight, ThemeDark)),
	)
}

// Size is a panel geometry in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Panel geometry per layout.
var (
	PortraitSize  = Size{Width: 320, Height: 480}
	LandscapeSize = Size{Width: 600, Height: 400}
)

// Smallest panel a user resize may produce per layout. The host bounds
// still apply on top.
var (
	PortraitMinSize  = Size{Width: 280, Height: 400}
	LandscapeMinSize = Size{Width: 580, Height: 300}
)

// PanelSize returns the default panel geometry for the layout.
func (l Layout) PanelSize() Size {
	if l == LayoutLandscape {
		return LandscapeSize
	}
	return PortraitSize
}

// MinPanelSize returns the resize floor for the layout.
func (l Layout) MinPanelSize() Size {
	if l == LayoutLandscape {
		return LandscapeMinSize
	}
	return PortraitMinSize
}
