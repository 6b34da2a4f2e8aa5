package window

import (
	"context"

	"github.com/ternarybob/promptline/internal/model"
	"github.com/ternarybob/promptline/internal/settings"
)

// DefaultWorkArea is used when the caller does not report a display.
var DefaultWorkArea = model.Rect{X: 0, Y: 0, Width: 1440, Height: 900}

// Display describes the screen the window is shown on.
type Display struct {
	Cursor   model.Point `json:"cursor"`
	WorkArea model.Rect  `json:"workArea"`
}

// repositionOnReuse reports whether a reused window moves on every show.
func repositionOnReuse(mode string) bool {
	switch mode {
	case settings.PositionCursor, settings.PositionActiveWindowCenter, settings.PositionActiveTextField:
		return true
	}
	return false
}

// calculateBounds places a width x height window according to mode.
// Modes that depend on native probes fall back to the active window center
// and then to the work area center.
func (m *Manager) calculateBounds(ctx context.Context, w settings.Window, d Display) model.Rect {
	area := d.WorkArea
	if area.Empty() {
		area = DefaultWorkArea
	}

	switch w.Position {
	case settings.PositionCursor:
		r := model.Rect{
			X:      d.Cursor.X - w.Width/2,
			Y:      d.Cursor.Y - w.Height/2,
			Width:  w.Width,
			Height: w.Height,
		}
		return clampTo(r, area)

	case settings.PositionActiveTextField:
		if tf := m.native.TextFieldBounds(ctx); tf.IsOk() && !tf.Value().Empty() {
			return clampTo(alignToTextField(tf.Value(), w.Width, w.Height), area)
		} else if !tf.IsOk() {
			m.logger.Debug().Str("reason", tf.Reason()).Msg("Text field bounds unavailable")
		}
		return m.activeWindowCenter(ctx, w, area)

	case settings.PositionActiveWindowCenter:
		return m.activeWindowCenter(ctx, w, area)
	}

	return centerIn(area, w.Width, w.Height)
}

func (m *Manager) activeWindowCenter(ctx context.Context, w settings.Window, area model.Rect) model.Rect {
	wb := m.native.ActiveWindowBounds(ctx)
	if !wb.IsOk() || wb.Value().Empty() {
		if !wb.IsOk() {
			m.logger.Debug().Str("reason", wb.Reason()).Msg("Active window bounds unavailable")
		}
		return centerIn(area, w.Width, w.Height)
	}
	return clampTo(centerIn(wb.Value(), w.Width, w.Height), area)
}

// alignToTextField centers the window over a text field larger than the
// window, and aligns it to the field's top-left corner otherwise.
func alignToTextField(tf model.Rect, width, height int) model.Rect {
	r := model.Rect{X: tf.X, Y: tf.Y, Width: width, Height: height}
	if tf.Width > width {
		r.X = tf.X + (tf.Width-width)/2
	}
	if tf.Height > height {
		r.Y = tf.Y + (tf.Height-height)/2
	}
	return r
}

func centerIn(area model.Rect, width, height int) model.Rect {
	c := area.Center()
	return model.Rect{X: c.X - width/2, Y: c.Y - height/2, Width: width, Height: height}
}

// clampTo moves r inside area. A window larger than the area is pinned to
// the area's origin.
func clampTo(r, area model.Rect) model.Rect {
	if r.X+r.Width > area.X+area.Width {
		r.X = area.X + area.Width - r.Width
	}
	if r.Y+r.Height > area.Y+area.Height {
		r.Y = area.Y + area.Height - r.Height
	}
	if r.X < area.X {
		r.X = area.X
	}
	if r.Y < area.Y {
		r.Y = area.Y
	}
	return r
}
