//go:build !ebiten

package ui

import "bedform/internal/core"

// HUD is a no-op placeholder for headless builds.
type HUD struct{}

// NewHUD returns nil in the headless build.
func NewHUD(core.Sim) *HUD { return nil }

// Update is a no-op in headless builds.
func (h *HUD) Update() {}

// Draw is a no-op placeholder.
func (h *HUD) Draw(any) {}
